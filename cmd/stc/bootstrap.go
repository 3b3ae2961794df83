package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiverecords/SuperTimecodeConverter/internal/engine"
	"github.com/fiverecords/SuperTimecodeConverter/internal/host"
	"github.com/fiverecords/SuperTimecodeConverter/internal/settings"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

const tickInterval = 16 * time.Millisecond // ~60Hz, matching the UI-thread tick rate spec.md §4.9 assumes

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "stc-settings.toml"
	}
	return filepath.Join(dir, "stc", "settings.toml")
}

func newID() string { return uuid.NewString() }

// bootstrap loads settings, acquires the single-instance lock, and
// builds the host every subcommand runs against.
func bootstrap() (*bootstrapped, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	installLoggers(logger)

	lockPath := configPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil && !os.IsExist(err) {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("another stc instance is already running (lock: %s)", lockPath)
	}

	doc, err := loadOrInitSettings(configPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	if showProfilePath != "" {
		if err := applyShowProfilePath(&doc, showProfilePath); err != nil {
			_ = lock.Unlock()
			return nil, err
		}
		logger.Info("show profile applied", zap.String("path", showProfilePath))
	}

	h := buildHost(doc)
	logger.Info("settings loaded", zap.String("path", configPath), zap.Int("engines", len(doc.Engines)))
	startHandlersFromSettings(h, doc, logger)

	return &bootstrapped{doc: doc, host: h, logger: logger, lock: lock}, nil
}

// startHandlersFromSettings opens every device the settings document
// names as enabled, logging (not failing) on a device that can't be
// opened — missing hardware shouldn't keep the rest of the host from
// starting.
func startHandlersFromSettings(h *host.Host, doc settings.Document, logger *zap.Logger) {
	sampleRate := doc.PreferredSampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	bufferSize := doc.PreferredBufferSize
	if bufferSize == 0 {
		bufferSize = 512
	}

	engines := h.Engines()
	for i, es := range doc.Engines {
		if i >= len(engines) {
			break
		}
		e := engines[i]

		if es.MTCIn.Enabled && es.MTCIn.DeviceName != "" {
			if err := e.MTCIn().Start(es.MTCIn.DeviceName); err != nil {
				logger.Warn("failed to start MTC in", zap.Int("engine", i), zap.Error(err))
			}
		}
		if es.MTCOut.Enabled && es.MTCOut.DeviceName != "" {
			if err := e.MTCOut().Start(es.MTCOut.DeviceName); err != nil {
				logger.Warn("failed to start MTC out", zap.Int("engine", i), zap.Error(err))
			}
		}
		if es.ArtNetIn.Enabled {
			if err := e.ArtNetIn().Start(es.ArtNetIn.DeviceName); err != nil {
				logger.Warn("failed to start Art-Net in", zap.Int("engine", i), zap.Error(err))
			}
		}
		if es.ArtNetOut.Enabled {
			if err := e.ArtNetOut().Start(es.ArtNetOut.DeviceName); err != nil {
				logger.Warn("failed to start Art-Net out", zap.Int("engine", i), zap.Error(err))
			}
		}
		if es.LTCIn.Enabled && es.LTCIn.DeviceName != "" {
			if err := h.StartLTCIn(i, es.LTCIn.DeviceName, sampleRate, bufferSize); err != nil {
				logger.Warn("failed to start LTC in", zap.Int("engine", i), zap.Error(err))
			}
		}
		if es.LTCOut.Enabled && es.LTCOut.DeviceName != "" {
			if err := h.StartLTCOut(i, es.LTCOut.DeviceName, sampleRate, bufferSize); err != nil {
				logger.Warn("failed to start LTC out", zap.Int("engine", i), zap.Error(err))
			}
		}
		if es.AudioThru.Enabled && es.AudioThru.DeviceName != "" {
			if err := h.StartAudioThru(i, es.AudioThru.DeviceName, sampleRate, bufferSize); err != nil {
				logger.Warn("failed to start audio thru", zap.Int("engine", i), zap.Error(err))
			}
		}
	}
}

// bootstrapped is the live state every subcommand runs against.
type bootstrapped struct {
	doc    settings.Document
	host   *host.Host
	logger *zap.Logger
	lock   *flock.Flock
}

func (b *bootstrapped) close() {
	b.host.Shutdown()
	if err := b.lock.Unlock(); err != nil {
		b.logger.Warn("failed to release lock", zap.Error(err))
	}
	_ = b.logger.Sync()
}

func (b *bootstrapped) save() error {
	doc := snapshotSettings(b.host, b.doc)
	return settings.Save(configPath, doc)
}

// startTicking runs host.Tick() on a ~60Hz ticker until the returned
// stop func is called. It mirrors runUntilInterrupted's loop for
// callers, like the REST server, that need the tick source running in
// the background while something else blocks in the foreground.
func (b *bootstrapped) startTicking() func() {
	done := make(chan struct{})
	ticker := time.NewTicker(tickInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.host.Tick()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func (b *bootstrapped) runUntilInterrupted() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.host.Tick()
		case <-sigCh:
			b.logger.Info("shutting down")
			if err := b.save(); err != nil {
				b.logger.Warn("failed to save settings on shutdown", zap.Error(err))
			}
			return nil
		}
	}
}

// applyShowProfilePath loads a show-profile YAML and presets device
// names across every engine in doc, giving each engine the same presets
// and leaving any handler slot the profile does not name untouched.
func applyShowProfilePath(doc *settings.Document, path string) error {
	p, err := settings.LoadShowProfile(path)
	if err != nil {
		return err
	}
	for i := range doc.Engines {
		settings.ApplyShowProfile(&doc.Engines[i], p)
	}
	return nil
}

func loadOrInitSettings(path string) (settings.Document, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return settings.Default(newID), nil
		}
		return settings.Document{}, fmt.Errorf("stat settings file: %w", err)
	}
	return settings.Load(path, newID)
}

func inputSourceFromSettingsName(name string) engine.InputSource {
	switch name {
	case "mtc":
		return engine.InputMTC
	case "artnet":
		return engine.InputArtNet
	case "ltc":
		return engine.InputLTC
	default:
		return engine.InputSystemTime
	}
}

func inputSourceToSettingsName(s engine.InputSource) string {
	switch s {
	case engine.InputMTC:
		return "mtc"
	case engine.InputArtNet:
		return "artnet"
	case engine.InputLTC:
		return "ltc"
	default:
		return "systemtime"
	}
}

func applyEngineSettings(e *engine.Engine, es settings.EngineSettings) {
	e.SetActiveInput(inputSourceFromSettingsName(es.InputSource))
	if es.InputFPSIndex >= 0 && es.InputFPSIndex < len(tc.Rates) {
		e.FPS = tc.Rates[es.InputFPSIndex]
	}
	if es.OutputFPSIndex >= 0 && es.OutputFPSIndex < len(tc.Rates) {
		e.OutputFPS = tc.Rates[es.OutputFPSIndex]
	}
	e.FPSConvertEnabled = es.FPSConvertEnabled
	if es.LTCOverride {
		e.OverrideLTCFPS(e.FPS)
	}

	e.MTCOutput = engine.Output{Enabled: es.MTCOut.Enabled, Offset: settings.ClampOffset(es.MTCOut.Offset)}
	e.ArtNetOutput = engine.Output{Enabled: es.ArtNetOut.Enabled, Offset: settings.ClampOffset(es.ArtNetOut.Offset)}
	e.LTCOutput = engine.Output{Enabled: es.LTCOut.Enabled, Offset: settings.ClampOffset(es.LTCOut.Offset)}
	e.AudioOutput = engine.Output{Enabled: es.AudioThru.Enabled, Offset: settings.ClampOffset(es.AudioThru.Offset)}

	if es.LTCIn.DeviceName != "" {
		e.LTCIn().SetGain(es.LTCIn.Gain)
	}
}

func buildHost(doc settings.Document) *host.Host {
	h := host.New()
	for len(h.Engines()) < len(doc.Engines) {
		if _, err := h.AddEngine(); err != nil {
			break
		}
	}
	for i, es := range doc.Engines {
		engines := h.Engines()
		if i >= len(engines) {
			break
		}
		applyEngineSettings(engines[i], es)
	}
	return h
}

func engineSettingsFromEngine(id string, e *engine.Engine) settings.EngineSettings {
	return settings.EngineSettings{
		ID:                id,
		InputSource:       inputSourceToSettingsName(e.ActiveInput),
		InputFPSIndex:     fpsIndex(e.FPS),
		OutputFPSIndex:    fpsIndex(e.OutputFPS),
		FPSConvertEnabled: e.FPSConvertEnabled,
		MTCOut:            settings.HandlerSettings{Enabled: e.MTCOutput.Enabled, Offset: e.MTCOutput.Offset},
		ArtNetOut:         settings.HandlerSettings{Enabled: e.ArtNetOutput.Enabled, Offset: e.ArtNetOutput.Offset},
		LTCOut:            settings.HandlerSettings{Enabled: e.LTCOutput.Enabled, Offset: e.LTCOutput.Offset},
		AudioThru:         settings.HandlerSettings{Enabled: e.AudioOutput.Enabled, Offset: e.AudioOutput.Offset},
	}
}

func fpsIndex(r tc.Rate) int {
	for i, candidate := range tc.Rates {
		if candidate == r {
			return i
		}
	}
	return 0
}

func snapshotSettings(h *host.Host, prev settings.Document) settings.Document {
	doc := prev
	doc.SelectedEngineIndex = h.PrimaryIndex()
	engines := h.Engines()
	doc.Engines = make([]settings.EngineSettings, len(engines))
	for i, e := range engines {
		id := newID()
		if i < len(prev.Engines) {
			id = prev.Engines[i].ID
		}
		doc.Engines[i] = engineSettingsFromEngine(id, e)
	}
	return doc
}
