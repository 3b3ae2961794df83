// Package mtc implements the MIDI Timecode quarter-frame and
// full-frame protocol: encoding and decoding of the message bytes
// only. Device I/O lives in internal/mtcio; cadence lives in
// internal/sched.
package mtc

import (
	"sync/atomic"
	"time"

	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

const livenessWindowMS = 150

// Decoder reconstructs timecode from a stream of quarter-frame and
// full-frame SysEx messages. QuarterFrame/FullFrame are the only
// mutating entry points and are meant to be called from the MIDI
// input callback thread; the getters are safe to call from any
// thread.
type Decoder struct {
	clock func() int64

	nibbles [8]byte

	syncedPacked atomic.Uint64
	syncedAtMS   atomic.Int64
	lastQFAtMS   atomic.Int64
	rateWord     atomic.Uint32
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{clock: func() int64 { return time.Now().UnixMilli() }}
}

// QuarterFrame processes one `F1 nn` message's data byte nn.
func (d *Decoder) QuarterFrame(data byte) {
	d.lastQFAtMS.Store(d.clock())

	idx := data >> 4
	d.nibbles[idx] = data & 0xF
	if idx != 7 {
		return
	}

	frames := d.nibbles[0] | (d.nibbles[1] << 4)
	seconds := d.nibbles[2] | (d.nibbles[3] << 4)
	minutes := d.nibbles[4] | (d.nibbles[5] << 4)
	hours := d.nibbles[6] | ((d.nibbles[7] & 1) << 4)
	rateCode := (d.nibbles[7] >> 1) & 0x3
	rate := tc.RateFromWireCode(rateCode)

	if hours > 23 || minutes > 59 || seconds > 59 || int(frames) >= rate.Modulus() {
		return
	}

	// The assembled frame is 2 frames behind real time: the 8 QFs
	// spanned two frame periods of real time.
	assembled := tc.TC{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}
	synced := tc.Offset(assembled, 2, rate)

	d.syncedPacked.Store(synced.Pack())
	d.syncedAtMS.Store(d.clock())
	d.rateWord.Store(uint32(rate) + 1)
}

// FullFrame processes a Full-Frame SysEx payload (hr, mn, sc, fr —
// the bytes between the `01 01` header and the trailing F7).
func (d *Decoder) FullFrame(hr, mn, sc, fr byte) {
	rateCode := (hr >> 5) & 0x3
	hours := hr & 0x1F
	rate := tc.RateFromWireCode(rateCode)

	if hours > 23 || mn > 59 || sc > 59 || int(fr) >= rate.Modulus() {
		return
	}

	t := tc.TC{Hours: hours, Minutes: mn, Seconds: sc, Frames: fr}
	now := d.clock()
	d.syncedPacked.Store(t.Pack())
	d.syncedAtMS.Store(now)
	d.lastQFAtMS.Store(now)
	d.rateWord.Store(uint32(rate) + 1)
}

// IsReceiving reports whether a quarter-frame has arrived in the last
// 150ms.
func (d *Decoder) IsReceiving() bool {
	last := d.lastQFAtMS.Load()
	if last == 0 {
		return false
	}
	return d.clock()-last <= livenessWindowMS
}

// DetectedRate returns the rate carried by the most recent sync
// point, if any.
func (d *Decoder) DetectedRate() (tc.Rate, bool) {
	w := d.rateWord.Load()
	if w == 0 {
		return 0, false
	}
	return tc.Rate(w - 1), true
}

// CurrentTimecode returns the last sync point, extrapolated forward
// by elapsed real time while live, frozen once liveness lapses.
func (d *Decoder) CurrentTimecode() tc.TC {
	synced := tc.Unpack(d.syncedPacked.Load())
	rate, ok := d.DetectedRate()
	if !ok || !d.IsReceiving() {
		return synced
	}

	elapsed := d.clock() - d.syncedAtMS.Load()
	if elapsed <= 0 {
		return synced
	}
	frameMS := 1000.0 / rate.Numeric()
	delta := int(float64(elapsed) / frameMS)
	if delta == 0 {
		return synced
	}
	return tc.Offset(synced, delta, rate)
}
