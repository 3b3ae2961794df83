// Package ring implements the fixed-size single-producer/single-consumer
// sample ring that glues LTC input to the AudioThru output device.
//
// One producer (the LTC-input audio callback) and one consumer (the
// AudioThru audio callback) may operate concurrently without further
// synchronization: the write and read cursors are published with atomic
// stores/loads, which on top of Go's memory model gives the happens-before
// relationship the spec calls release/acquire ordering.
package ring

import "sync/atomic"

// Capacity is the ring's fixed sample capacity. One slot is reserved so
// a full ring can always be distinguished from an empty one.
const Capacity = 32768

// Buffer is a lock-free SPSC ring of float32 samples.
type Buffer struct {
	data [Capacity]float32

	writePos atomic.Uint32
	readPos  atomic.Uint32

	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// New returns an empty ring buffer.
func New() *Buffer {
	return &Buffer{}
}

func (b *Buffer) used() uint32 {
	return b.writePos.Load() - b.readPos.Load()
}

// Used returns the number of samples currently available to read.
func (b *Buffer) Used() uint32 {
	return b.used()
}

// Free returns Capacity minus the samples in use; Write stores at most
// Free()-1 of them, since one slot is always kept in reserve.
func (b *Buffer) Free() uint32 {
	return Capacity - b.used()
}

// Overruns returns the number of producer calls that had to truncate
// because the ring was (nearly) full.
func (b *Buffer) Overruns() uint64 {
	return b.overruns.Load()
}

// Underruns returns the number of consumer calls that had to zero-fill
// because the ring did not have enough samples available.
func (b *Buffer) Underruns() uint64 {
	return b.underruns.Load()
}

// SyncReadToWrite snaps the read cursor to the current write cursor.
// Called once, before starting AudioThru against a running LTC input, so
// the consumer does not drain stale history.
func (b *Buffer) SyncReadToWrite() {
	b.readPos.Store(b.writePos.Load())
}

// Write is the producer side. It writes as many samples from in as fit
// (one slot is always kept in reserve), truncating the tail and
// incrementing the overrun counter if the ring cannot hold all of them.
// Callers that also need a peak level should compute it over the full
// input slice themselves — Write only sees what actually gets stored.
func (b *Buffer) Write(in []float32) (written int) {
	free := b.Free()
	if free < 2 {
		b.overruns.Add(1)
		return 0
	}
	// One slot stays reserved to disambiguate full from empty.
	capacity := free - 1
	n := len(in)
	if uint32(n) > capacity {
		n = int(capacity)
		b.overruns.Add(1)
	}
	if n == 0 {
		if len(in) > 0 {
			b.overruns.Add(1)
		}
		return 0
	}

	pos := b.writePos.Load()
	for i := 0; i < n; i++ {
		b.data[(pos+uint32(i))%Capacity] = in[i]
	}
	b.writePos.Store(pos + uint32(n))
	return n
}

// Read is the consumer side. It fills out with up to len(out) samples;
// any tail it cannot satisfy is zero-filled and the underrun counter is
// incremented.
func (b *Buffer) Read(out []float32) {
	available := b.used()
	n := len(out)
	toRead := n
	if uint32(toRead) > available {
		toRead = int(available)
	}

	pos := b.readPos.Load()
	for i := 0; i < toRead; i++ {
		out[i] = b.data[(pos+uint32(i))%Capacity]
	}
	b.readPos.Store(pos + uint32(toRead))

	if toRead < n {
		for i := toRead; i < n; i++ {
			out[i] = 0
		}
		b.underruns.Add(1)
	}
}
