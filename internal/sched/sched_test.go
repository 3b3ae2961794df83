package sched

import "testing"

func TestTickEmitsAtIdealInterval(t *testing.T) {
	s := New(10, 50, 2)
	s.Start(0)

	count := 0
	for now := 0.0; now <= 100; now += 10 {
		s.Tick(now, func() { count++ })
	}
	if count != 10 {
		t.Fatalf("count = %d, want 10", count)
	}
}

func TestTickCatchesUpBoundedByMaxPerTick(t *testing.T) {
	s := New(10, 1000, 2)
	s.Start(0)

	count := 0
	s.Tick(35, func() { count++ })
	if count != 2 {
		t.Fatalf("count = %d, want 2 (bounded by maxPerTick)", count)
	}
}

func TestTickResetsOnLargeArrears(t *testing.T) {
	s := New(10, 50, 2)
	s.Start(0)

	count := 0
	s.Tick(1000, func() { count++ })
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	// After the reset, the next tick should not try to catch up on the
	// 980ms of arrears that were discarded.
	count = 0
	s.Tick(1010, func() { count++ })
	if count != 1 {
		t.Fatalf("count = %d, want 1 after reset", count)
	}
}

func TestScheduler60sJitteredRun(t *testing.T) {
	fps := 25.0
	interval := 1000.0 / (fps * 4)
	s := New(interval, 50, 2)
	s.Start(0)

	count := 0
	now := 0.0
	jitter := 0.5
	sign := 1.0
	for now < 60000 {
		s.Tick(now, func() { count++ })
		step := 1.0 + sign*jitter
		now += step
		sign = -sign
	}

	want := int(60 * fps * 4)
	if diff := count - want; diff < -1 || diff > 1 {
		t.Fatalf("count = %d, want %d +/-1", count, want)
	}
}
