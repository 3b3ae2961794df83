// Package audioio adapts LTC input, LTC output, and AudioThru to a
// real duplex audio device via github.com/veandco/go-sdl2, following
// the same device-open/queue/callback shape the SDL audio layer uses
// elsewhere in the retrieved pack, generalised from 8-bit push
// buffers to float32 duplex callbacks.
package audioio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

const bytesPerSample = 4

// ListDevices returns the names of every audio device SDL reports for
// the given direction.
func ListDevices(capture bool) []string {
	n := sdl.GetNumAudioDevices(capture)
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, sdl.GetAudioDeviceName(i, capture))
	}
	return names
}

// Device is one open capture or playback audio device, running its
// callback on a dedicated poll goroutine.
type Device struct {
	id      sdl.AudioDeviceID
	spec    sdl.AudioSpec
	capture bool
	running atomic.Bool
}

// Open opens name (empty string selects the platform default) for
// capture or playback at the requested sample rate and buffer size,
// falling back to whatever the device actually negotiates.
func Open(name string, capture bool, sampleRate, bufferSize int) (*Device, error) {
	desired := &sdl.AudioSpec{
		Freq:     int32(sampleRate),
		Format:   sdl.AUDIO_F32SYS,
		Channels: 2,
		Samples:  uint16(bufferSize),
	}
	var obtained sdl.AudioSpec

	id, err := sdl.OpenAudioDevice(name, capture, desired, &obtained, sdl.AUDIO_ALLOW_ANY_CHANGE)
	if err != nil {
		return nil, fmt.Errorf("open audio device %q: %w", name, err)
	}
	return &Device{id: id, spec: obtained, capture: capture}, nil
}

// SampleRate returns the device's actual negotiated sample rate.
func (d *Device) SampleRate() float64 {
	return float64(d.spec.Freq)
}

// Channels returns the device's actual negotiated channel count.
func (d *Device) Channels() int {
	return int(d.spec.Channels)
}

// RunCapture starts delivering deinterleaved capture buffers to fn
// until Close. fn receives one []float32 slice per channel.
func (d *Device) RunCapture(fn func(channels [][]float32)) {
	d.running.Store(true)
	sdl.PauseAudioDevice(d.id, false)

	go func() {
		ch := int(d.spec.Channels)
		raw := make([]byte, int(d.spec.Samples)*ch*bytesPerSample)
		for d.running.Load() {
			n := sdl.DequeueAudio(d.id, raw)
			if n <= 0 {
				time.Sleep(time.Millisecond)
				continue
			}
			fn(deinterleave(raw[:n], ch))
		}
	}()
}

// RunPlayback repeatedly calls fn for one buffer's worth of
// deinterleaved samples per channel and queues them for playback,
// until Close.
func (d *Device) RunPlayback(fn func(channels [][]float32)) {
	d.running.Store(true)
	sdl.PauseAudioDevice(d.id, false)

	go func() {
		ch := int(d.spec.Channels)
		period := time.Duration(float64(d.spec.Samples)/float64(d.spec.Freq)*1000) * time.Millisecond
		buffers := make([][]float32, ch)
		for i := range buffers {
			buffers[i] = make([]float32, d.spec.Samples)
		}
		for d.running.Load() {
			fn(buffers)
			sdl.QueueAudio(d.id, interleave(buffers))
			time.Sleep(period / 2)
		}
	}()
}

// Close stops the poll goroutine and releases the device.
func (d *Device) Close() error {
	d.running.Store(false)
	sdl.CloseAudioDevice(d.id)
	return nil
}

func deinterleave(raw []byte, channels int) [][]float32 {
	frames := len(raw) / bytesPerSample / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * bytesPerSample
			bits := binary.LittleEndian.Uint32(raw[off : off+bytesPerSample])
			out[c][i] = math.Float32frombits(bits)
		}
	}
	return out
}

func interleave(channels [][]float32) []byte {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]byte, frames*len(channels)*bytesPerSample)
	for i := 0; i < frames; i++ {
		for c, samples := range channels {
			off := (i*len(channels) + c) * bytesPerSample
			binary.LittleEndian.PutUint32(out[off:off+bytesPerSample], math.Float32bits(samples[i]))
		}
	}
	return out
}
