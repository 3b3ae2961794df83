package ltc

import (
	"math"
	"sync/atomic"

	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

// Encoder produces a monophonic float32 LTC signal from a target
// Timecode. It free-runs, auto-incrementing its own position every
// frame and snapping to the externally supplied target whenever the
// two drift apart by more than one frame.
type Encoder struct {
	SampleRate float64
	Gain       float64

	initialized bool
	current     tc.TC
	rate        tc.Rate

	targetPacked atomic.Uint64
	haveTarget   atomic.Bool
	rateWord     atomic.Uint32

	frame [80]byte

	bitCursor  int
	halfCursor int
	frac       float64
	level      float64

	paused atomic.Bool
}

// NewEncoder returns an Encoder for a device running at sampleRate.
func NewEncoder(sampleRate float64) *Encoder {
	e := &Encoder{SampleRate: sampleRate, Gain: 1, level: 1}
	e.rateWord.Store(uint32(tc.Rate30) + 1)
	return e
}

// SetRate changes the frame rate used for subsequent frame loads.
func (e *Encoder) SetRate(r tc.Rate) {
	e.rateWord.Store(uint32(r) + 1)
}

// SetTimecode publishes a new target. The first Process call after a
// target has been set seeds the encoder's own running position from it.
func (e *Encoder) SetTimecode(t tc.TC) {
	e.targetPacked.Store(t.Pack())
	e.haveTarget.Store(true)
}

// CurrentTimecode returns the timecode of the frame currently being
// emitted.
func (e *Encoder) CurrentTimecode() tc.TC {
	return e.current
}

func (e *Encoder) rateNow() tc.Rate {
	return tc.Rate(e.rateWord.Load() - 1)
}

// SetPaused mutes the output. Unlike SetTimecode gaps, a paused
// Encoder does not free-run: it holds its bit position and emits
// silence until resumed, so an inactive input produces an actual zero
// signal rather than a stale auto-incrementing one.
func (e *Encoder) SetPaused(p bool) {
	e.paused.Store(p)
}

// IsPaused reports the current pause state.
func (e *Encoder) IsPaused() bool {
	return e.paused.Load()
}

// Process fills out with one callback's worth of samples.
func (e *Encoder) Process(out []float32) {
	if e.paused.Load() {
		for i := range out {
			out[i] = 0
		}
		return
	}
	if !e.initialized {
		if !e.haveTarget.Load() {
			for i := range out {
				out[i] = 0
			}
			return
		}
		e.current = tc.Unpack(e.targetPacked.Load())
		e.rate = e.rateNow()
		e.loadFrame()
		e.bitCursor = 79
		e.initialized = true
	}

	amplitude := 0.8 * clamp(e.Gain, 0, 2)
	samplesPerHalfBit := e.SampleRate / (e.rate.Numeric() * 160)

	for i := range out {
		out[i] = float32(e.level * amplitude)
		e.frac++
		for e.frac >= samplesPerHalfBit {
			e.frac -= samplesPerHalfBit
			e.advanceHalfCell(samplesPerHalfBit)
		}
	}
}

// advanceHalfCell walks frame[] from bit 79 down to bit 0, so the sync
// word goes out before the BCD fields. The decoder's shift register
// expects exactly that order: it's what lands the sync word at the top
// of the 16-bit half and each BCD bit at the matching position of the
// 64-bit half once a frame boundary lines up.
func (e *Encoder) advanceHalfCell(samplesPerHalfBit float64) {
	if e.halfCursor == 0 {
		e.halfCursor = 1
		if e.frame[e.bitCursor] == 1 {
			e.level = -e.level
		}
		return
	}

	e.halfCursor = 0
	e.level = -e.level
	e.bitCursor--
	if e.bitCursor < 0 {
		e.bitCursor = 79
		e.nextFrame()
	}
}

func (e *Encoder) nextFrame() {
	e.rate = e.rateNow()
	e.current = tc.IncrementFrame(e.current, e.rate)

	target := tc.Unpack(e.targetPacked.Load())
	if frameDistance(e.current, target, e.rate) > 1 {
		e.current = target
	}
	e.loadFrame()
}

func (e *Encoder) loadFrame() {
	e.frame = buildFrame(e.current, e.rate)
}

func frameDistance(a, b tc.TC, rate tc.Rate) float64 {
	const dayMS = int64(24 * 3600 * 1000)
	diff := tc.TCToWallClockMS(b, rate) - tc.TCToWallClockMS(a, rate)
	diff = ((diff % dayMS) + dayMS) % dayMS
	if diff > dayMS/2 {
		diff -= dayMS
	}
	frameMS := 1000.0 / rate.Numeric()
	return math.Round(absf(float64(diff)) / frameMS)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var syncWordBits = [16]byte{0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1}

func buildFrame(t tc.TC, rate tc.Rate) [80]byte {
	var f [80]byte

	setBits(&f, 0, 4, t.Frames%10)
	setBits(&f, 8, 2, t.Frames/10)
	if rate.IsDropFrame() {
		f[10] = 1
	}

	setBits(&f, 16, 4, t.Seconds%10)
	setBits(&f, 24, 3, t.Seconds/10)

	setBits(&f, 32, 4, t.Minutes%10)
	setBits(&f, 40, 3, t.Minutes/10)

	setBits(&f, 48, 4, t.Hours%10)
	setBits(&f, 56, 2, t.Hours/10)

	f[27] = ones(f[0:27]) & 1
	f[59] = ones(f[32:59]) & 1

	copy(f[64:80], syncWordBits[:])

	return f
}

func setBits(f *[80]byte, start, n int, value uint8) {
	for i := 0; i < n; i++ {
		f[start+i] = (value >> i) & 1
	}
}

func ones(bits []byte) byte {
	var n byte
	for _, b := range bits {
		n += b
	}
	return n
}
