// Package host owns the list of engines (1-8), the primary-engine
// invariant, and the device-conflict policy that keeps an audio device
// owned by at most one handler across the whole instance.
package host

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fiverecords/SuperTimecodeConverter/internal/engine"
)

const (
	MinEngines = 1
	MaxEngines = 8
)

// log is the package-wide logger for engine-lifecycle and
// device-conflict events. SetLogger replaces it at startup.
var log = zap.NewNop()

// SetLogger installs the logger used for host-level transitions.
func SetLogger(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// DeviceOwner identifies which engine, and which handler kind on it,
// currently holds an audio device.
type DeviceOwner struct {
	EngineIndex int
	Kind        string // "LTCIn", "LTCOut", or "AudioThru"
}

// Marker renders the device-selector ownership marker spec.md §4.9
// describes: "●" for the asking engine's own ownership, "[ENGINE N]"
// for another engine's.
func (o DeviceOwner) Marker(askingEngineIndex int) string {
	if o.EngineIndex == askingEngineIndex {
		return "●"
	}
	return fmt.Sprintf("[ENGINE %d]", o.EngineIndex+1)
}

// evictable is satisfied by any handler the device registry needs to
// evict on conflict: it stops and reports a conflict status naming
// the new owner, per spec.md §4.9.
type evictable interface {
	Evict(owner string)
}

// DeviceRegistry tracks which engine/handler owns each audio device
// name, stopping the previous owner when a new handler claims the same
// device, per spec.md §4.9's device-conflict policy and §3's "at most
// one handler per device" invariant.
type DeviceRegistry struct {
	mu      sync.Mutex
	owners  map[string]DeviceOwner
	holders map[string]evictable
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		owners:  make(map[string]DeviceOwner),
		holders: make(map[string]evictable),
	}
}

// Claim records that engineIndex/kind now owns deviceName, evicting
// whatever handler previously held it (if any, and if it isn't the
// same owner re-claiming).
func (r *DeviceRegistry) Claim(deviceName string, engineIndex int, kind string, h evictable) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevOwner, ok := r.owners[deviceName]; ok {
		if prevOwner.EngineIndex == engineIndex && prevOwner.Kind == kind {
			r.holders[deviceName] = h
			return
		}
		if prevHolder, ok := r.holders[deviceName]; ok {
			owner := DeviceOwner{EngineIndex: engineIndex, Kind: kind}
			prevHolder.Evict(fmt.Sprintf("Engine %d %s", engineIndex+1, kind))
			_ = owner
			log.Warn("device conflict: evicting previous owner",
				zap.String("device", deviceName),
				zap.Int("previous_engine", prevOwner.EngineIndex),
				zap.String("previous_kind", prevOwner.Kind),
				zap.Int("new_engine", engineIndex),
				zap.String("new_kind", kind))
		}
	}
	r.owners[deviceName] = DeviceOwner{EngineIndex: engineIndex, Kind: kind}
	r.holders[deviceName] = h
}

// Release drops ownership of deviceName if engineIndex/kind currently
// holds it, so a later Claim by a different handler doesn't evict
// nothing.
func (r *DeviceRegistry) Release(deviceName string, engineIndex int, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.owners[deviceName]; ok && o.EngineIndex == engineIndex && o.Kind == kind {
		delete(r.owners, deviceName)
		delete(r.holders, deviceName)
	}
}

// OwnerOf reports who holds deviceName, if anyone.
func (r *DeviceRegistry) OwnerOf(deviceName string) (DeviceOwner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[deviceName]
	return o, ok
}

// Host owns the engine list and the device-conflict registry shared
// across all engines.
type Host struct {
	mu      sync.Mutex
	engines []*engine.Engine
	primary int
	devices *DeviceRegistry
}

// New returns a Host with one engine, which is primary.
func New() *Host {
	h := &Host{devices: NewDeviceRegistry()}
	h.engines = append(h.engines, engine.New())
	h.primary = 0
	return h
}

func (h *Host) Devices() *DeviceRegistry { return h.devices }

// Engines returns a snapshot of the current engine list.
func (h *Host) Engines() []*engine.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*engine.Engine, len(h.engines))
	copy(out, h.engines)
	return out
}

// PrimaryIndex returns the index of the current primary engine.
func (h *Host) PrimaryIndex() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.primary
}

// AddEngine appends a new, non-primary engine, bounded by MaxEngines.
func (h *Host) AddEngine() (*engine.Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.engines) >= MaxEngines {
		return nil, fmt.Errorf("host: cannot add engine, already at the %d-engine limit", MaxEngines)
	}
	e := engine.New()
	h.engines = append(h.engines, e)
	return e, nil
}

// RemoveEngine destroys the engine at index, refusing to go below
// MinEngines. If the removed engine was primary, the next engine in
// the list becomes primary (the previous one, if the removed engine was
// last); no state is transferred to it, matching
// spec.md §3's "no state is transferred" lifecycle rule — the new
// primary's AudioThru is a fresh handler, not a continuation of the
// old one.
func (h *Host) RemoveEngine(index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.engines) <= MinEngines {
		return fmt.Errorf("host: cannot remove engine, already at the %d-engine minimum", MinEngines)
	}
	if index < 0 || index >= len(h.engines) {
		return fmt.Errorf("host: engine index %d out of range", index)
	}
	removed := h.engines[index]
	removed.Shutdown()

	h.engines = append(h.engines[:index:index], h.engines[index+1:]...)

	switch {
	case h.primary == index:
		if h.primary >= len(h.engines) {
			h.primary = len(h.engines) - 1
		}
	case h.primary > index:
		h.primary--
	}
	return nil
}

// IsPrimary reports whether the engine at index is currently primary;
// only the primary engine's AudioThru may be started (spec.md §3).
func (h *Host) IsPrimary(index int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return index == h.primary
}

// StartAudioThru opens AudioThru on the primary engine's handler and
// registers it with the device registry, refusing non-primary engines
// per spec.md §3's "only the primary may own an AudioThru" invariant.
func (h *Host) StartAudioThru(index int, deviceName string, sampleRate, bufferSize int) error {
	if !h.IsPrimary(index) {
		return fmt.Errorf("host: engine %d is not primary, cannot start AudioThru", index)
	}
	engines := h.Engines()
	e := engines[index]
	thru := e.AudioThru()
	if err := thru.Start(deviceName, sampleRate, bufferSize); err != nil {
		return err
	}
	// Start detaches the source while it stops any previous device;
	// reattach the LTC-input ring with its read cursor at the writer.
	src := e.LTCIn().Ring()
	src.SyncReadToWrite()
	thru.SetSource(src)
	h.devices.Claim(deviceName, index, "AudioThru", thru)
	return nil
}

// StartLTCOut opens LTCOut on the engine at index and registers the
// claim with the device registry, evicting any existing owner.
func (h *Host) StartLTCOut(index int, deviceName string, sampleRate, bufferSize int) error {
	engines := h.Engines()
	if index < 0 || index >= len(engines) {
		return fmt.Errorf("host: engine index %d out of range", index)
	}
	out := engines[index].LTCOut()
	if err := out.Start(deviceName, sampleRate, bufferSize); err != nil {
		return err
	}
	h.devices.Claim(deviceName, index, "LTCOut", out)
	return nil
}

// StartLTCIn opens LTCIn on the engine at index and registers the
// claim with the device registry, evicting any existing owner.
func (h *Host) StartLTCIn(index int, deviceName string, sampleRate, bufferSize int) error {
	engines := h.Engines()
	if index < 0 || index >= len(engines) {
		return fmt.Errorf("host: engine index %d out of range", index)
	}
	in := engines[index].LTCIn()
	if err := in.Start(deviceName, sampleRate, bufferSize); err != nil {
		return err
	}
	h.devices.Claim(deviceName, index, "LTCIn", in)
	return nil
}

// Tick runs one routing pass on every engine; called from the UI
// thread at 60 Hz per spec.md §4.9.
func (h *Host) Tick() {
	for _, e := range h.Engines() {
		e.Tick()
	}
}

// Shutdown stops every engine's handlers.
func (h *Host) Shutdown() {
	for _, e := range h.Engines() {
		e.Shutdown()
	}
}
