package audioio

import "testing"

func TestInterleaveDeinterleaveRoundTrip(t *testing.T) {
	channels := [][]float32{
		{0.1, 0.2, 0.3},
		{-0.1, -0.2, -0.3},
	}
	raw := interleave(channels)
	got := deinterleave(raw, len(channels))

	for c := range channels {
		for i := range channels[c] {
			if got[c][i] != channels[c][i] {
				t.Fatalf("channel %d sample %d = %v, want %v", c, i, got[c][i], channels[c][i])
			}
		}
	}
}
