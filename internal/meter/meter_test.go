package meter

import "testing"

func TestUpdateConvergesTowardSample(t *testing.T) {
	s := New(0.5)
	for i := 0; i < 20; i++ {
		s.Update(1.0)
	}
	if v := s.Value(); v < 0.99 {
		t.Fatalf("Value() = %v, want close to 1.0 after repeated updates", v)
	}
}

func TestResetZeroes(t *testing.T) {
	s := New(DefaultAlpha)
	s.Update(1.0)
	s.Reset()
	if v := s.Value(); v != 0 {
		t.Fatalf("Value() after Reset = %v, want 0", v)
	}
}

func TestUpdateDecaysTowardZero(t *testing.T) {
	s := New(0.5)
	s.Update(1.0)
	for i := 0; i < 20; i++ {
		s.Update(0.0)
	}
	if v := s.Value(); v > 0.01 {
		t.Fatalf("Value() = %v, want close to 0 after decay", v)
	}
}
