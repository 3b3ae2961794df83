package mtc

import (
	"sync/atomic"

	"github.com/fiverecords/SuperTimecodeConverter/internal/sched"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

// Encoder drives the quarter-frame cadence (4 QF per frame) plus
// Full-Frame resync on unpause. It is driven externally by repeated
// Tick calls, typically from a 1ms timer.
type Encoder struct {
	sched *sched.Scheduler

	targetPacked atomic.Uint64
	rateWord     atomic.Uint32
	paused       atomic.Bool
	pendingFull  atomic.Bool

	cursor   int
	snapshot tc.TC
}

// NewEncoder returns an Encoder defaulted to 25fps cadence; call
// SetRate once the real rate is known.
func NewEncoder() *Encoder {
	e := &Encoder{sched: sched.New(1000.0/(25*4), 50, 2)}
	e.rateWord.Store(uint32(tc.Rate25) + 1)
	e.paused.Store(true)
	return e
}

func (e *Encoder) rateNow() tc.Rate {
	return tc.Rate(e.rateWord.Load() - 1)
}

// SetRate changes the frame rate, and with it the quarter-frame
// cadence, without needing a timer restart.
func (e *Encoder) SetRate(r tc.Rate) {
	e.rateWord.Store(uint32(r) + 1)
	e.sched.SetInterval(1000.0 / (r.Numeric() * 4))
}

// SetTimecode publishes the target timecode snapshotted at the start
// of each 8-QF cycle.
func (e *Encoder) SetTimecode(t tc.TC) {
	e.targetPacked.Store(t.Pack())
}

// Start begins the quarter-frame cadence at cursor 0. No Full-Frame
// SysEx is emitted — the first target timecode isn't known yet.
func (e *Encoder) Start(nowMS float64) {
	e.sched.Start(nowMS)
	e.cursor = 0
	e.pendingFull.Store(false)
	e.paused.Store(false)
}

// SetPaused stops (true) or resumes (false) emission. Resuming resets
// the cursor and queues a Full-Frame resync.
func (e *Encoder) SetPaused(p bool) {
	was := e.paused.Swap(p)
	if !p && was {
		e.cursor = 0
		e.pendingFull.Store(true)
	}
}

// IsPaused reports the current pause state.
func (e *Encoder) IsPaused() bool {
	return e.paused.Load()
}

// Tick advances the cadence scheduler and returns zero or more
// complete MIDI messages to send this callback.
func (e *Encoder) Tick(nowMS float64) [][]byte {
	if e.paused.Load() {
		return nil
	}

	var out [][]byte
	if e.pendingFull.Swap(false) {
		out = append(out, e.fullFrameSysEx())
	}
	e.sched.Tick(nowMS, func() {
		out = append(out, e.nextQF())
	})
	return out
}

func (e *Encoder) nextQF() []byte {
	if e.cursor == 0 {
		e.snapshot = tc.Unpack(e.targetPacked.Load())
	}
	nibble := qfNibble(e.snapshot, e.rateNow(), e.cursor)
	msg := []byte{0xF1, (byte(e.cursor) << 4) | (nibble & 0xF)}
	e.cursor = (e.cursor + 1) % 8
	return msg
}

func qfNibble(t tc.TC, rate tc.Rate, idx int) byte {
	switch idx {
	case 0:
		return t.Frames & 0xF
	case 1:
		return (t.Frames >> 4) & 0x1
	case 2:
		return t.Seconds & 0xF
	case 3:
		return (t.Seconds >> 4) & 0x3
	case 4:
		return t.Minutes & 0xF
	case 5:
		return (t.Minutes >> 4) & 0x3
	case 6:
		return t.Hours & 0xF
	case 7:
		return ((t.Hours >> 4) & 0x1) | (rate.WireCode() << 1)
	default:
		return 0
	}
}

func (e *Encoder) fullFrameSysEx() []byte {
	t := tc.Unpack(e.targetPacked.Load())
	rate := e.rateNow()
	hr := (rate.WireCode() << 5) | (t.Hours & 0x1F)
	return []byte{0xF0, 0x7F, 0x7F, 0x01, 0x01, hr, t.Minutes, t.Seconds, t.Frames, 0xF7}
}
