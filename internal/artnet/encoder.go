package artnet

import (
	"sync/atomic"

	"github.com/fiverecords/SuperTimecodeConverter/internal/sched"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

const catchUpBoundMS = 100

// Encoder drives Art-Net packet transmission on the drift-free
// fractional-accumulator cadence shared with the MTC encoder. It only
// builds packet bytes; internal/netio owns the UDP socket.
type Encoder struct {
	sched *sched.Scheduler

	targetPacked atomic.Uint64
	rateWord     atomic.Uint32
	paused       atomic.Bool
}

// NewEncoder returns an Encoder defaulted to 25fps cadence.
func NewEncoder() *Encoder {
	e := &Encoder{sched: sched.New(1000.0/25, catchUpBoundMS, 2)}
	e.rateWord.Store(uint32(tc.Rate25) + 1)
	e.paused.Store(true)
	return e
}

func (e *Encoder) rateNow() tc.Rate {
	return tc.Rate(e.rateWord.Load() - 1)
}

// SetRate changes the frame rate and, with it, the packet cadence.
func (e *Encoder) SetRate(r tc.Rate) {
	e.rateWord.Store(uint32(r) + 1)
	e.sched.SetInterval(1000.0 / r.Numeric())
}

// SetTimecode publishes the target timecode read under the scheduler
// each send.
func (e *Encoder) SetTimecode(t tc.TC) {
	e.targetPacked.Store(t.Pack())
}

// Start begins the packet cadence.
func (e *Encoder) Start(nowMS float64) {
	e.sched.Start(nowMS)
	e.paused.Store(false)
}

// SetPaused stops or resumes emission.
func (e *Encoder) SetPaused(p bool) {
	e.paused.Store(p)
}

// IsPaused reports the current pause state.
func (e *Encoder) IsPaused() bool {
	return e.paused.Load()
}

// Tick advances the cadence scheduler and returns zero or more
// ArtTimeCode packets to send this callback.
func (e *Encoder) Tick(nowMS float64) [][PacketSize]byte {
	if e.paused.Load() {
		return nil
	}
	var out [][PacketSize]byte
	e.sched.Tick(nowMS, func() {
		t := tc.Unpack(e.targetPacked.Load())
		out = append(out, Encode(t, e.rateNow()))
	})
	return out
}
