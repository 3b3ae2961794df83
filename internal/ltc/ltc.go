// Package ltc implements the biphase-mark-modulated SMPTE 12-1 Linear
// Timecode codec: a streaming decoder that turns a float32 audio signal
// into timecode and a streaming encoder that does the reverse.
package ltc

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/fiverecords/SuperTimecodeConverter/internal/ring"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

const (
	syncWord           = 0xBFFC
	hysteresis         = 0.05
	bitPeriodEWMA      = 0.05
	livenessWindowMS   = 150
	consecutiveForGood = 3
)

// Decoder recovers timecode from a monophonic float32 sample stream.
// All mutating state is touched only from the audio callback thread
// that calls Process; readers on other threads use the exported
// getters, which are backed by atomics.
type Decoder struct {
	SampleRate float64
	Gain       float64

	clock func() int64

	high           bool
	haveEdge       bool
	sampleCount    int64
	lastEdgeSample int64

	bitPeriod    float64
	pendingHalf  bool
	pendingDelta float64

	regLo uint64
	regHi uint32

	consecutiveGood    int
	haveLastAccepted   bool
	lastAcceptedSample int64

	currentPacked    atomic.Uint64
	rateWord         atomic.Uint32 // 0 = unknown, else uint32(rate)+1
	lastAcceptedAtMS atomic.Int64
	peakBits         atomic.Uint64

	passScratch []float32
}

// NewDecoder returns a Decoder for a device running at sampleRate.
func NewDecoder(sampleRate float64) *Decoder {
	return &Decoder{
		SampleRate: sampleRate,
		Gain:       1,
		clock:      func() int64 { return time.Now().UnixMilli() },
		bitPeriod:  sampleRate / 2160,
	}
}

// Process runs the hysteresis comparator and biphase-mark decoder over
// one callback's worth of samples from the decode channel.
func (d *Decoder) Process(primary []float32) {
	for _, s := range primary {
		d.sampleCount++
		d.step(float64(s) * d.Gain)
	}
}

func (d *Decoder) step(level float64) {
	edge := 0 // 0 = none, 1 = rising, -1 = falling
	if !d.high && level > hysteresis {
		d.high = true
		edge = 1
	} else if d.high && level < -hysteresis {
		d.high = false
		edge = -1
	}
	if edge == 0 {
		return
	}
	if !d.haveEdge {
		d.haveEdge = true
		d.lastEdgeSample = d.sampleCount
		return
	}
	interval := float64(d.sampleCount - d.lastEdgeSample)
	d.lastEdgeSample = d.sampleCount
	d.classify(interval)
}

func (d *Decoder) classify(interval float64) {
	halfBit := d.bitPeriod / 2
	lower := 0.4 * halfBit
	upper := 1.8 * d.bitPeriod
	if interval < lower || interval > upper {
		d.pendingHalf = false
		return
	}

	if interval < 0.75*d.bitPeriod {
		if !d.pendingHalf {
			d.pendingHalf = true
			d.pendingDelta = interval
			return
		}
		d.pendingHalf = false
		d.bitPeriod = d.bitPeriod*(1-bitPeriodEWMA) + (2 * interval * bitPeriodEWMA)
		d.emitBit(1)
		return
	}

	d.pendingHalf = false
	d.bitPeriod = d.bitPeriod*(1-bitPeriodEWMA) + interval*bitPeriodEWMA
	d.emitBit(0)
}

func (d *Decoder) emitBit(bit uint64) {
	overflow := (d.regLo >> 63) & 1
	d.regLo = (d.regLo << 1) | bit
	d.regHi = ((d.regHi << 1) | uint32(overflow)) & 0xFFFF
	if d.regHi == syncWord {
		d.tryAcceptFrame()
	}
}

func (d *Decoder) tryAcceptFrame() {
	hours, minutes, seconds, frames, dropFlag, ok := decodeFields(d.regLo)
	if !ok {
		d.consecutiveGood = 0
		return
	}
	d.consecutiveGood++

	spacing := int64(0)
	if d.haveLastAccepted {
		spacing = d.sampleCount - d.lastAcceptedSample
	}
	d.lastAcceptedSample = d.sampleCount
	d.haveLastAccepted = true

	t := tc.TC{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}
	d.currentPacked.Store(t.Pack())
	d.lastAcceptedAtMS.Store(d.clock())

	if spacing > 0 && d.consecutiveGood >= consecutiveForGood {
		fps := d.SampleRate / float64(spacing)
		d.rateWord.Store(uint32(classifyRate(fps, dropFlag)) + 1)
	}
}

func decodeFields(regLo uint64) (hours, minutes, seconds, frames uint8, dropFlag bool, ok bool) {
	frameUnits := uint8(regLo & 0xF)
	frameTens := uint8((regLo >> 8) & 0x3)
	frames = frameTens*10 + frameUnits
	dropFlag = (regLo>>10)&1 == 1

	secUnits := uint8((regLo >> 16) & 0xF)
	secTens := uint8((regLo >> 24) & 0x7)
	seconds = secTens*10 + secUnits

	minUnits := uint8((regLo >> 32) & 0xF)
	minTens := uint8((regLo >> 40) & 0x7)
	minutes = minTens*10 + minUnits

	hourUnits := uint8((regLo >> 48) & 0xF)
	hourTens := uint8((regLo >> 56) & 0x3)
	hours = hourTens*10 + hourUnits

	ok = hours <= 23 && minutes <= 59 && seconds <= 59 && frames <= 29
	return
}

func classifyRate(fps float64, dropFlag bool) tc.Rate {
	switch {
	case fps < 24.5:
		return tc.Rate24
	case fps < 27:
		return tc.Rate25
	case dropFlag:
		return tc.Rate2997DF
	default:
		return tc.Rate30
	}
}

// CurrentTimecode returns the most recently accepted frame.
func (d *Decoder) CurrentTimecode() tc.TC {
	return tc.Unpack(d.currentPacked.Load())
}

// DetectedRate returns the published rate and whether one has been
// published yet (three consecutive accepted frames).
func (d *Decoder) DetectedRate() (tc.Rate, bool) {
	w := d.rateWord.Load()
	if w == 0 {
		return 0, false
	}
	return tc.Rate(w - 1), true
}

// IsReceiving reports whether a frame was accepted within the last
// 150ms.
func (d *Decoder) IsReceiving() bool {
	last := d.lastAcceptedAtMS.Load()
	if last == 0 {
		return false
	}
	return d.clock()-last <= livenessWindowMS
}

// PeakLevel returns the peak sample magnitude seen by the most recent
// Passthrough call.
func (d *Decoder) PeakLevel() float64 {
	return math.Float64frombits(d.peakBits.Load())
}

// Passthrough applies gain to samples from the pass-through channel,
// publishes their peak magnitude, and writes as many as fit into dst.
// It performs no allocation beyond a one-time scratch buffer grown to
// the largest callback size seen.
func (d *Decoder) Passthrough(samples []float32, gain float64, dst *ring.Buffer) {
	if cap(d.passScratch) < len(samples) {
		d.passScratch = make([]float32, len(samples))
	}
	buf := d.passScratch[:len(samples)]

	peak := 0.0
	for i, s := range samples {
		v := float64(s) * gain
		buf[i] = float32(v)
		if a := absf(v); a > peak {
			peak = a
		}
	}
	d.peakBits.Store(math.Float64bits(peak))
	dst.Write(buf)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
