// Package handler implements the protocol handlers an Engine drives:
// MTCIn, MTCOut, ArtNetIn, ArtNetOut, LTCIn, LTCOut and AudioThru. Each
// handler owns exactly one device and exposes the same small lifecycle
// contract (Start/Stop/IsRunning) so the engine can treat all seven
// uniformly.
package handler

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fiverecords/SuperTimecodeConverter/internal/artnet"
	"github.com/fiverecords/SuperTimecodeConverter/internal/audioio"
	"github.com/fiverecords/SuperTimecodeConverter/internal/ltc"
	"github.com/fiverecords/SuperTimecodeConverter/internal/meter"
	"github.com/fiverecords/SuperTimecodeConverter/internal/mtc"
	"github.com/fiverecords/SuperTimecodeConverter/internal/mtcio"
	"github.com/fiverecords/SuperTimecodeConverter/internal/netio"
	"github.com/fiverecords/SuperTimecodeConverter/internal/ring"
	"github.com/fiverecords/SuperTimecodeConverter/internal/status"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

// clockMS is overridable in tests.
var clockMS = func() float64 { return float64(time.Now().UnixMilli()) }

// log is the package-wide logger every handler's state transitions go
// through. SetLogger replaces it at startup; it defaults to a no-op so
// tests and callers that never configure logging stay silent.
var log = zap.NewNop()

// SetLogger installs the logger handlers use for start/stop/conflict
// and rate-change transitions.
func SetLogger(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// outTicker drives an output handler's Tick method from a dedicated
// timer thread at roughly 1ms resolution, the timer-thread model
// spec.md §5 assigns to MTC/Art-Net output.
type outTicker struct {
	running atomic.Bool
	done    chan struct{}
}

func (t *outTicker) start(tick func(nowMS float64)) {
	if !t.running.CompareAndSwap(false, true) {
		return
	}
	t.done = make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				tick(clockMS())
			}
		}
	}()
}

func (t *outTicker) stop() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	close(t.done)
}

func (t *outTicker) isRunning() bool { return t.running.Load() }

// statusBox holds a handler's current status behind a mutex; status
// changes are rare compared to timecode updates, so a plain mutex is
// fine here (unlike the packed-atomic timecode hot path).
type statusBox struct {
	mu sync.Mutex
	st status.Status
}

func (b *statusBox) set(s status.Status) {
	b.mu.Lock()
	b.st = s
	b.mu.Unlock()
}

func (b *statusBox) get() status.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

// MTCIn receives MIDI Timecode from a live MIDI input port.
type MTCIn struct {
	dec        *mtc.Decoder
	port       *mtcio.Input
	deviceName string
	status     statusBox
}

// NewMTCIn returns an MTCIn bound to no device yet; call Start to open one.
func NewMTCIn() *MTCIn {
	return &MTCIn{dec: mtc.NewDecoder()}
}

// Start opens the named MIDI input port and begins routing quarter
// frame and full frame messages into the decoder. Idempotent: it stops
// any previously open port first.
func (h *MTCIn) Start(portName string) error {
	h.Stop()
	in, err := mtcio.OpenInput(portName, h.dec)
	if err != nil {
		h.status.set(status.New(status.FailedToOpen, err.Error()))
		log.Warn("mtc in: failed to open port", zap.String("port", portName), zap.Error(err))
		return err
	}
	h.port = in
	h.deviceName = portName
	h.status.set(status.New(status.Running, ""))
	log.Info("mtc in: started", zap.String("port", portName))
	return nil
}

// Stop closes the MIDI port, if open.
func (h *MTCIn) Stop() {
	if h.port != nil {
		h.port.Close()
		h.port = nil
	}
	h.status.set(status.New(status.Stopped, ""))
}

func (h *MTCIn) IsRunning() bool { return h.port != nil }

// CurrentTimecode returns the decoder's latest timecode and whether it
// is currently receiving quarter-frame or full-frame traffic.
func (h *MTCIn) CurrentTimecode() (tc.TC, bool) {
	return h.dec.CurrentTimecode(), h.dec.IsReceiving()
}

func (h *MTCIn) DetectedRate() (tc.Rate, bool) { return h.dec.DetectedRate() }

func (h *MTCIn) Status() status.Status {
	if h.dec.IsReceiving() {
		return status.New(status.Receiving, h.deviceName)
	}
	return h.status.get()
}

// MTCOut transmits MIDI Timecode quarter frames and full-frame resyncs
// to a live MIDI output port, driven by a 1ms timer thread.
type MTCOut struct {
	enc        *mtc.Encoder
	port       *mtcio.Output
	ticker     outTicker
	deviceName string
	status     statusBox
}

func NewMTCOut() *MTCOut {
	return &MTCOut{enc: mtc.NewEncoder()}
}

func (h *MTCOut) Start(portName string) error {
	h.Stop()
	out, err := mtcio.OpenOutput(portName)
	if err != nil {
		h.status.set(status.New(status.FailedToOpen, err.Error()))
		log.Warn("mtc out: failed to open port", zap.String("port", portName), zap.Error(err))
		return err
	}
	h.port = out
	h.deviceName = portName
	h.enc.Start(clockMS())
	h.ticker.start(h.tick)
	h.status.set(status.New(status.Running, ""))
	log.Info("mtc out: started", zap.String("port", portName))
	return nil
}

func (h *MTCOut) tick(nowMS float64) {
	for _, msg := range h.enc.Tick(nowMS) {
		h.port.Send(msg)
	}
}

func (h *MTCOut) Stop() {
	h.ticker.stop()
	if h.port != nil {
		h.port.Close()
		h.port = nil
	}
	h.status.set(status.New(status.Stopped, ""))
}

func (h *MTCOut) IsRunning() bool { return h.port != nil }

func (h *MTCOut) SetRate(r tc.Rate)     { h.enc.SetRate(r) }
func (h *MTCOut) SetTimecode(t tc.TC)   { h.enc.SetTimecode(t) }
func (h *MTCOut) SetPaused(p bool)      { h.enc.SetPaused(p) }
func (h *MTCOut) Status() status.Status { return h.status.get() }

// ArtNetIn listens for ArtTimeCode UDP broadcasts on the Art-Net port.
type ArtNetIn struct {
	recv     *artnet.Receiver
	listener *netio.Listener
	ifaceIP  string
	status   statusBox
}

func NewArtNetIn() *ArtNetIn {
	return &ArtNetIn{recv: artnet.NewReceiver()}
}

func (h *ArtNetIn) Start(ifaceIP string) error {
	h.Stop()
	l, err := netio.Listen(ifaceIP)
	if err != nil {
		h.status.set(status.New(status.FailedToOpen, err.Error()))
		log.Warn("art-net in: failed to bind", zap.String("iface", ifaceIP), zap.Error(err))
		return err
	}
	h.listener = l
	h.ifaceIP = ifaceIP
	go l.Run(func(pkt []byte) { h.recv.Accept(pkt) })
	if l.FellBack {
		h.status.set(status.New(status.BindFallback, ifaceIP))
		log.Warn("art-net in: bind fell back to wildcard", zap.String("requested", ifaceIP))
	} else {
		h.status.set(status.New(status.Running, ""))
		log.Info("art-net in: started", zap.String("iface", ifaceIP))
	}
	return nil
}

func (h *ArtNetIn) Stop() {
	if h.listener != nil {
		h.listener.Close()
		h.listener = nil
	}
	h.status.set(status.New(status.Stopped, ""))
}

func (h *ArtNetIn) IsRunning() bool { return h.listener != nil }

func (h *ArtNetIn) CurrentTimecode() (tc.TC, bool) {
	return h.recv.CurrentTimecode(), h.recv.IsReceiving()
}

func (h *ArtNetIn) DetectedRate() (tc.Rate, bool) { return h.recv.DetectedRate() }

func (h *ArtNetIn) Status() status.Status {
	if h.recv.IsReceiving() {
		return status.New(status.Receiving, h.ifaceIP)
	}
	return h.status.get()
}

// ArtNetOut broadcasts ArtTimeCode packets on a fixed 1ms timer thread.
type ArtNetOut struct {
	enc     *artnet.Encoder
	sender  *netio.Sender
	ticker  outTicker
	ifaceIP string
	status  statusBox
}

func NewArtNetOut() *ArtNetOut {
	return &ArtNetOut{enc: artnet.NewEncoder()}
}

func (h *ArtNetOut) Start(ifaceIP string) error {
	h.Stop()
	s, err := netio.OpenSender(ifaceIP)
	if err != nil {
		h.status.set(status.New(status.FailedToOpen, err.Error()))
		log.Warn("art-net out: failed to open sender", zap.String("iface", ifaceIP), zap.Error(err))
		return err
	}
	h.sender = s
	h.ifaceIP = ifaceIP
	h.enc.Start(clockMS())
	h.ticker.start(h.tick)
	h.status.set(status.New(status.Running, ""))
	log.Info("art-net out: started", zap.String("iface", ifaceIP))
	return nil
}

func (h *ArtNetOut) tick(nowMS float64) {
	for _, pkt := range h.enc.Tick(nowMS) {
		pkt := pkt
		h.sender.Send(pkt[:])
	}
}

func (h *ArtNetOut) Stop() {
	h.ticker.stop()
	if h.sender != nil {
		h.sender.Close()
		h.sender = nil
	}
	h.status.set(status.New(status.Stopped, ""))
}

func (h *ArtNetOut) IsRunning() bool { return h.sender != nil }

func (h *ArtNetOut) SetRate(r tc.Rate)     { h.enc.SetRate(r) }
func (h *ArtNetOut) SetTimecode(t tc.TC)   { h.enc.SetTimecode(t) }
func (h *ArtNetOut) SetPaused(p bool)      { h.enc.SetPaused(p) }
func (h *ArtNetOut) Status() status.Status { return h.status.get() }

// LTCIn opens an audio capture device, decodes LTC from the primary
// channel, and copies that channel's samples, after gain, into a
// pass-through ring buffer for AudioThru to consume.
type LTCIn struct {
	dec        *ltc.Decoder
	device     *audioio.Device
	ringBuf    *ring.Buffer
	gain       float64
	deviceName string
	peak       *meter.Smoother
	status     statusBox
}

func NewLTCIn() *LTCIn {
	return &LTCIn{
		dec:     ltc.NewDecoder(48000),
		ringBuf: ring.New(),
		gain:    1.0,
		peak:    meter.New(meter.DefaultAlpha),
	}
}

// Ring exposes the pass-through buffer AudioThru reads from.
func (h *LTCIn) Ring() *ring.Buffer { return h.ringBuf }

func (h *LTCIn) SetGain(g float64) { h.gain = g }

func (h *LTCIn) Start(deviceName string, sampleRate, bufferSize int) error {
	h.Stop()
	dev, err := audioio.Open(deviceName, true, sampleRate, bufferSize)
	if err != nil {
		h.status.set(status.New(status.FailedToOpen, err.Error()))
		log.Warn("ltc in: failed to open device", zap.String("device", deviceName), zap.Error(err))
		return err
	}
	h.device = dev
	h.deviceName = deviceName
	h.dec = ltc.NewDecoder(dev.SampleRate())
	h.device.RunCapture(h.onCapture)
	h.status.set(status.New(status.Running, ""))
	log.Info("ltc in: started", zap.String("device", deviceName))
	return nil
}

func (h *LTCIn) onCapture(channels [][]float32) {
	if len(channels) == 0 {
		return
	}
	primary := channels[0]
	h.dec.Process(primary)
	h.dec.Passthrough(primary, h.gain, h.ringBuf)
	h.peak.Update(h.dec.PeakLevel())
}

func (h *LTCIn) Stop() {
	if h.device != nil {
		h.device.Close()
		h.device = nil
	}
	h.peak.Reset()
	h.status.set(status.New(status.Stopped, ""))
}

// Evict stops the handler and leaves it reporting a device-conflict
// status naming the new owner, per spec.md §4.9's conflict policy.
func (h *LTCIn) Evict(owner string) {
	h.Stop()
	h.status.set(ConflictStatus(owner))
}

func (h *LTCIn) IsRunning() bool { return h.device != nil }

func (h *LTCIn) CurrentTimecode() (tc.TC, bool) {
	return h.dec.CurrentTimecode(), h.dec.IsReceiving()
}

func (h *LTCIn) DetectedRate() (tc.Rate, bool) { return h.dec.DetectedRate() }

func (h *LTCIn) PeakLevel() float64 { return h.peak.Value() }

func (h *LTCIn) Status() status.Status {
	if h.dec.IsReceiving() {
		return status.New(status.Receiving, h.deviceName)
	}
	return h.status.get()
}

// LTCOut opens an audio playback device and writes a continuously
// generated biphase-mark LTC signal to it.
type LTCOut struct {
	enc        *ltc.Encoder
	device     *audioio.Device
	deviceName string
	peak       *meter.Smoother
	status     statusBox
}

func NewLTCOut() *LTCOut {
	return &LTCOut{enc: ltc.NewEncoder(48000), peak: meter.New(meter.DefaultAlpha)}
}

func (h *LTCOut) Start(deviceName string, sampleRate, bufferSize int) error {
	h.Stop()
	dev, err := audioio.Open(deviceName, false, sampleRate, bufferSize)
	if err != nil {
		h.status.set(status.New(status.FailedToOpen, err.Error()))
		log.Warn("ltc out: failed to open device", zap.String("device", deviceName), zap.Error(err))
		return err
	}
	h.device = dev
	h.deviceName = deviceName
	h.enc = ltc.NewEncoder(dev.SampleRate())
	h.device.RunPlayback(h.onPlayback)
	h.status.set(status.New(status.Running, ""))
	log.Info("ltc out: started", zap.String("device", deviceName))
	return nil
}

func (h *LTCOut) onPlayback(channels [][]float32) {
	if len(channels) == 0 {
		return
	}
	h.enc.Process(channels[0])
	for c := 1; c < len(channels); c++ {
		copy(channels[c], channels[0])
	}
	var peak float64
	for _, v := range channels[0] {
		if f := float64(v); f > peak {
			peak = f
		} else if -f > peak {
			peak = -f
		}
	}
	h.peak.Update(peak)
}

func (h *LTCOut) Stop() {
	if h.device != nil {
		h.device.Close()
		h.device = nil
	}
	h.peak.Reset()
	h.status.set(status.New(status.Stopped, ""))
}

// Evict stops the handler and leaves it reporting a device-conflict
// status naming the new owner, per spec.md §4.9's conflict policy.
func (h *LTCOut) Evict(owner string) {
	h.Stop()
	h.status.set(ConflictStatus(owner))
}

func (h *LTCOut) IsRunning() bool { return h.device != nil }

func (h *LTCOut) SetRate(r tc.Rate)   { h.enc.SetRate(r) }
func (h *LTCOut) SetTimecode(t tc.TC) { h.enc.SetTimecode(t) }
func (h *LTCOut) PeakLevel() float64  { return h.peak.Value() }

// SetPaused mutes the generated LTC signal and drops the peak-level
// reading immediately, rather than waiting for the meter to decay.
func (h *LTCOut) SetPaused(p bool) {
	h.enc.SetPaused(p)
	if p {
		h.peak.Reset()
	}
}

func (h *LTCOut) Status() status.Status { return h.status.get() }

// AudioThru plays the primary engine's LTC-input signal back out a
// second audio device, unmodified, so a downstream device can receive
// the exact LTC stream an upstream device is producing. It holds a
// release-ordered pointer to the LtcInput ring buffer; that pointer is
// nulled before the device is closed, per spec.md §5's lifetime rule,
// so an in-flight playback callback observes nil and returns early
// instead of racing the producer's teardown.
type AudioThru struct {
	src        atomic.Pointer[ring.Buffer]
	device     *audioio.Device
	deviceName string
	status     statusBox
}

func NewAudioThru() *AudioThru {
	return &AudioThru{}
}

// SetSource points AudioThru at the LTC-input ring buffer it should
// play out. Pass nil to detach.
func (h *AudioThru) SetSource(r *ring.Buffer) {
	h.src.Store(r)
}

func (h *AudioThru) Start(deviceName string, sampleRate, bufferSize int) error {
	h.Stop()
	dev, err := audioio.Open(deviceName, false, sampleRate, bufferSize)
	if err != nil {
		h.status.set(status.New(status.FailedToOpen, err.Error()))
		log.Warn("audio thru: failed to open device", zap.String("device", deviceName), zap.Error(err))
		return err
	}
	h.device = dev
	h.deviceName = deviceName
	h.device.RunPlayback(h.onPlayback)
	h.status.set(status.New(status.Running, ""))
	log.Info("audio thru: started", zap.String("device", deviceName))
	return nil
}

func (h *AudioThru) onPlayback(channels [][]float32) {
	r := h.src.Load()
	if r == nil || len(channels) == 0 {
		for _, ch := range channels {
			for i := range ch {
				ch[i] = 0
			}
		}
		return
	}
	r.Read(channels[0])
	for c := 1; c < len(channels); c++ {
		copy(channels[c], channels[0])
	}
}

// Stop nulls the source pointer before closing the device, so the
// spec.md §5 ordering rule holds even when Stop is called directly
// rather than through the engine's shutdown sequence.
func (h *AudioThru) Stop() {
	h.src.Store(nil)
	if h.device != nil {
		h.device.Close()
		h.device = nil
	}
	h.status.set(status.New(status.Stopped, ""))
}

// Evict stops the handler and leaves it reporting a device-conflict
// status naming the new owner, per spec.md §4.9's conflict policy.
func (h *AudioThru) Evict(owner string) {
	h.Stop()
	h.status.set(ConflictStatus(owner))
}

func (h *AudioThru) IsRunning() bool { return h.device != nil }

func (h *AudioThru) DeviceName() string { return h.deviceName }

func (h *AudioThru) Status() status.Status { return h.status.get() }

// ConflictStatus is the status a handler reports when the device
// conflict policy (spec.md §4.9) stops it in favor of a newer owner.
func ConflictStatus(owner string) status.Status {
	return status.New(status.Conflict, owner)
}
