package mtc

import (
	"testing"

	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

func TestEncoderQFCadenceAt25fps(t *testing.T) {
	e := NewEncoder()
	e.SetRate(tc.Rate25)
	e.SetTimecode(tc.TC{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4})
	e.Start(0)

	var indices []int
	for now := 0.0; now <= 2000; now += 1 {
		for _, msg := range e.Tick(now) {
			if msg[0] == 0xF1 {
				indices = append(indices, int(msg[1]>>4))
			}
		}
	}

	want := 200
	if len(indices) != want {
		t.Fatalf("emitted %d QF messages, want %d", len(indices), want)
	}
	for i, idx := range indices {
		if idx != i%8 {
			t.Fatalf("index %d: got %d, want %d", i, idx, i%8)
		}
	}
}

func TestDecodeFullFrameImmediate(t *testing.T) {
	d := NewDecoder()
	want := tc.TC{Hours: 5, Minutes: 6, Seconds: 7, Frames: 8}
	hr := (tc.Rate25.WireCode() << 5) | want.Hours
	d.FullFrame(hr, want.Minutes, want.Seconds, want.Frames)

	if got := d.CurrentTimecode(); got != want {
		t.Fatalf("CurrentTimecode() = %v, want %v", got, want)
	}
	if !d.IsReceiving() {
		t.Fatal("expected receiving after full frame")
	}
	rate, ok := d.DetectedRate()
	if !ok || rate != tc.Rate25 {
		t.Fatalf("DetectedRate() = %v, %v", rate, ok)
	}
}

func TestDecodeQFStreamConverges(t *testing.T) {
	e := NewEncoder()
	e.SetRate(tc.Rate25)
	start := tc.TC{Hours: 0, Minutes: 0, Seconds: 10, Frames: 0}
	e.SetTimecode(start)
	e.Start(0)

	d := NewDecoder()

	// Drive one full 8-QF cycle (two frames of real time) worth of
	// ticks; the encoder's target stays at start.
	now := 0.0
	for i := 0; i <= 80; i++ { // at 25fps a QF goes out every 10ms, index 7 at 80ms
		for _, msg := range e.Tick(now) {
			if msg[0] == 0xF1 {
				d.QuarterFrame(msg[1])
			}
		}
		now++
	}

	want := tc.IncrementFrame(tc.IncrementFrame(start, tc.Rate25), tc.Rate25)
	got := d.CurrentTimecode()
	if got != want {
		t.Fatalf("converged to %v, want %v", got, want)
	}
}
