package ltc

import (
	"testing"

	"github.com/fiverecords/SuperTimecodeConverter/internal/ring"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

// runChunked feeds total samples of encoder output into the decoder in
// small chunks and returns every distinct timecode the decoder
// reported, in the order it first reported them, starting from the
// first accepted frame.
func runChunked(t *testing.T, enc *Encoder, dec *Decoder, totalSamples, chunk int) []tc.TC {
	t.Helper()
	var seen []tc.TC
	var last tc.TC
	have := false

	buf := make([]float32, chunk)
	for n := 0; n < totalSamples; n += chunk {
		c := chunk
		if n+c > totalSamples {
			c = totalSamples - n
		}
		enc.Process(buf[:c])
		dec.Process(buf[:c])
		if !dec.haveLastAccepted {
			continue
		}

		cur := dec.CurrentTimecode()
		if !have || cur != last {
			seen = append(seen, cur)
			last = cur
			have = true
		}
	}
	return seen
}

func TestSyncWordWrap(t *testing.T) {
	sampleRate := 48000.0
	enc := NewEncoder(sampleRate)
	enc.SetRate(tc.Rate30)
	enc.SetTimecode(tc.TC{Hours: 23, Minutes: 59, Seconds: 59, Frames: 29})

	dec := NewDecoder(sampleRate)

	framesSamples := int(sampleRate/30.0) + 1
	seen := runChunked(t, enc, dec, framesSamples*4, 64)

	wrapIdx := -1
	for i, v := range seen {
		if v == (tc.TC{}) {
			wrapIdx = i
			break
		}
	}
	if wrapIdx <= 0 {
		t.Fatalf("never observed wrap to 00:00:00:00 in sequence %v", seen)
	}
	if seen[wrapIdx-1] != (tc.TC{Hours: 23, Minutes: 59, Seconds: 59, Frames: 29}) {
		t.Fatalf("frame before wrap = %v, want 23:59:59:29", seen[wrapIdx-1])
	}
}

func TestEncodeDecodeRateConvergence(t *testing.T) {
	sampleRate := 48000.0
	rates := []tc.Rate{tc.Rate24, tc.Rate25, tc.Rate2997DF, tc.Rate30}

	for _, r := range rates {
		enc := NewEncoder(sampleRate)
		enc.SetRate(r)
		enc.SetTimecode(tc.TC{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4})
		dec := NewDecoder(sampleRate)

		framesSamples := int(sampleRate/r.Numeric()) + 1
		runChunked(t, enc, dec, framesSamples*8, 64)

		got, ok := dec.DetectedRate()
		if !ok {
			t.Errorf("rate %v: never converged", r)
			continue
		}
		if got != r {
			t.Errorf("rate %v: detected %v", r, got)
		}
	}
}

func TestDecoderConsecutiveFramesIncrementByOne(t *testing.T) {
	sampleRate := 48000.0
	enc := NewEncoder(sampleRate)
	enc.SetRate(tc.Rate25)
	enc.SetTimecode(tc.TC{Hours: 10, Minutes: 0, Seconds: 0, Frames: 0})
	dec := NewDecoder(sampleRate)

	// The encoder snaps back to a target more than one frame behind it,
	// so the target follows the encoder's own position, as a live
	// upstream source would.
	framesSamples := int(sampleRate/25.0) + 1
	var seen []tc.TC
	for n := 0; n < framesSamples*6; n += 64 {
		if enc.initialized {
			enc.SetTimecode(enc.CurrentTimecode())
		}
		for _, v := range runChunked(t, enc, dec, 64, 64) {
			if len(seen) == 0 || seen[len(seen)-1] != v {
				seen = append(seen, v)
			}
		}
	}

	if len(seen) < 3 {
		t.Fatalf("too few distinct frames observed: %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		want := tc.IncrementFrame(seen[i-1], tc.Rate25)
		if seen[i] != want {
			t.Fatalf("frame %d: got %v, want %v (after %v)", i, seen[i], want, seen[i-1])
		}
	}
}

func TestDecoderLivenessAndRejection(t *testing.T) {
	dec := NewDecoder(48000)
	if dec.IsReceiving() {
		t.Fatal("fresh decoder should not be receiving")
	}

	// Feed pure silence: no edges, never a sync word, never receiving.
	silence := make([]float32, 48000)
	dec.Process(silence)
	if dec.IsReceiving() {
		t.Fatal("silence should not produce a receiving decoder")
	}
}

func TestPassthroughWritesIntoRing(t *testing.T) {
	dec := NewDecoder(48000)
	buf := ring.New()

	in := []float32{0.1, -0.2, 0.3}
	dec.Passthrough(in, 2.0, buf)

	out := make([]float32, 3)
	buf.Read(out)
	for i, want := range in {
		if got := out[i]; got != want*2 {
			t.Errorf("sample %d = %v, want %v", i, got, want*2)
		}
	}
	if dec.PeakLevel() <= 0 {
		t.Fatalf("PeakLevel() = %v, want > 0", dec.PeakLevel())
	}
}
