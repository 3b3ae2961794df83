package handler

import (
	"testing"
	"time"

	"github.com/fiverecords/SuperTimecodeConverter/internal/ring"
	"github.com/fiverecords/SuperTimecodeConverter/internal/status"
)

func TestStatusBoxSetGet(t *testing.T) {
	var b statusBox
	b.set(status.New(status.Running, "dev0"))
	got := b.get()
	if got.Kind != status.Running || got.Detail != "dev0" {
		t.Fatalf("get() = %+v, want Running/dev0", got)
	}
}

func TestOutTickerStartStopIdempotent(t *testing.T) {
	var tk outTicker
	count := 0
	tk.start(func(nowMS float64) { count++ })
	if !tk.isRunning() {
		t.Fatal("isRunning() = false after start")
	}
	// starting again while running must be a no-op, not a second goroutine.
	tk.start(func(nowMS float64) { count++ })
	time.Sleep(5 * time.Millisecond)
	tk.stop()
	if tk.isRunning() {
		t.Fatal("isRunning() = true after stop")
	}
	// stopping again must not panic on an already-closed channel.
	tk.stop()
}

func TestAudioThruPlaysSilenceWithNoSource(t *testing.T) {
	h := NewAudioThru()
	channels := [][]float32{{1, 1, 1, 1}}
	h.onPlayback(channels)
	for i, v := range channels[0] {
		if v != 0 {
			t.Fatalf("channels[0][%d] = %v, want 0 with no source attached", i, v)
		}
	}
}

func TestAudioThruPlaysFromRing(t *testing.T) {
	h := NewAudioThru()
	r := ring.New()
	r.Write([]float32{0.5, 0.25, 0.125, 0.0625})
	h.SetSource(r)

	out := make([][]float32, 1)
	out[0] = make([]float32, 4)
	h.onPlayback(out)
	want := []float32{0.5, 0.25, 0.125, 0.0625}
	for i := range want {
		if out[0][i] != want[i] {
			t.Fatalf("out[0][%d] = %v, want %v", i, out[0][i], want[i])
		}
	}
}

func TestAudioThruStopNullsSourceBeforeReturning(t *testing.T) {
	h := NewAudioThru()
	r := ring.New()
	r.Write([]float32{1, 1, 1, 1})
	h.SetSource(r)
	h.Stop()

	out := make([][]float32, 1)
	out[0] = make([]float32, 4)
	h.onPlayback(out)
	for i, v := range out[0] {
		if v != 0 {
			t.Fatalf("out[0][%d] = %v, want 0 after Stop nulled the source", i, v)
		}
	}
}

func TestConflictStatusText(t *testing.T) {
	s := ConflictStatus("Engine 2 LTC-in")
	if got, want := s.Text(), "CONFLICT: same device as Engine 2 LTC-in"; got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}
