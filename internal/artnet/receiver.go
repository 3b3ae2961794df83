package artnet

import (
	"sync/atomic"
	"time"

	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

const livenessWindowMS = 150

// Receiver tracks the most recently accepted ArtTimeCode packet.
// Accept is meant to be called from the UDP read loop; the getters
// are safe from any thread.
type Receiver struct {
	clock func() int64

	currentPacked atomic.Uint64
	rateWord      atomic.Uint32
	lastAcceptMS  atomic.Int64
}

// NewReceiver returns an empty Receiver.
func NewReceiver() *Receiver {
	return &Receiver{clock: func() int64 { return time.Now().UnixMilli() }}
}

// Accept validates and, if valid, stores pkt's timecode and rate.
// Malformed packets are silently dropped and do not update the
// receive timestamp.
func (r *Receiver) Accept(pkt []byte) bool {
	t, rate, ok := Decode(pkt)
	if !ok {
		return false
	}
	r.currentPacked.Store(t.Pack())
	r.rateWord.Store(uint32(rate) + 1)
	r.lastAcceptMS.Store(r.clock())
	return true
}

// CurrentTimecode returns the last accepted timecode.
func (r *Receiver) CurrentTimecode() tc.TC {
	return tc.Unpack(r.currentPacked.Load())
}

// DetectedRate returns the rate carried by the last accepted packet.
func (r *Receiver) DetectedRate() (tc.Rate, bool) {
	w := r.rateWord.Load()
	if w == 0 {
		return 0, false
	}
	return tc.Rate(w - 1), true
}

// IsReceiving reports whether a packet was accepted within the last
// 150ms.
func (r *Receiver) IsReceiving() bool {
	last := r.lastAcceptMS.Load()
	if last == 0 {
		return false
	}
	return r.clock()-last <= livenessWindowMS
}
