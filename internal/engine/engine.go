// Package engine implements the per-engine routing policy: selecting
// an active input, tracking its detected rate, converting rate for
// outputs, and pushing offset timecodes out to whichever handlers are
// enabled. A host (internal/host) owns one or more engines.
package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fiverecords/SuperTimecodeConverter/internal/handler"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

// log is the package-wide logger for routing-level transitions, chiefly
// detected-rate changes. SetLogger replaces it at startup.
var log = zap.NewNop()

// SetLogger installs the logger used for engine-level transitions.
func SetLogger(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// InputSource is the tagged variant of timecode sources an engine can
// route from.
type InputSource int

const (
	InputMTC InputSource = iota
	InputArtNet
	InputSystemTime
	InputLTC
)

// Output holds the per-output frame offset (-30..30) and
// enabled flag for one of the four output kinds.
type Output struct {
	Enabled bool
	Offset  int
}

// Engine owns the four output handlers and the input handlers for
// MTC/ArtNet/LTC, and runs the routing decision described
// in spec.md §4.9 once per tick.
type Engine struct {
	mu sync.Mutex

	ActiveInput InputSource
	FPS         tc.Rate

	FPSConvertEnabled bool
	OutputFPS         tc.Rate

	MTCOutput    Output
	ArtNetOutput Output
	LTCOutput    Output
	AudioOutput  Output

	userOverrodeLTCFPS bool

	mtcIn    *handler.MTCIn
	artNetIn *handler.ArtNetIn
	ltcIn    *handler.LTCIn

	mtcOut    *handler.MTCOut
	artNetOut *handler.ArtNetOut
	ltcOut    *handler.LTCOut
	audioThru *handler.AudioThru

	currentTC tc.TC
	active    bool
}

// New returns an Engine with its seven handlers constructed but not
// started; Start* methods on the returned handlers open devices later.
func New() *Engine {
	e := &Engine{
		FPS:       tc.Rate25,
		OutputFPS: tc.Rate25,
		mtcIn:     handler.NewMTCIn(),
		artNetIn:  handler.NewArtNetIn(),
		ltcIn:     handler.NewLTCIn(),
		mtcOut:    handler.NewMTCOut(),
		artNetOut: handler.NewArtNetOut(),
		ltcOut:    handler.NewLTCOut(),
		audioThru: handler.NewAudioThru(),
	}
	// AudioThru always plays out this engine's LTC-input ring buffer;
	// whether anything ever flows through it depends on whether LTCIn
	// is ever started and this engine is ever made primary.
	e.audioThru.SetSource(e.ltcIn.Ring())
	return e
}

func (e *Engine) MTCIn() *handler.MTCIn         { return e.mtcIn }
func (e *Engine) ArtNetIn() *handler.ArtNetIn   { return e.artNetIn }
func (e *Engine) LTCIn() *handler.LTCIn         { return e.ltcIn }
func (e *Engine) MTCOut() *handler.MTCOut       { return e.mtcOut }
func (e *Engine) ArtNetOut() *handler.ArtNetOut { return e.artNetOut }
func (e *Engine) LTCOut() *handler.LTCOut       { return e.ltcOut }
func (e *Engine) AudioThru() *handler.AudioThru { return e.audioThru }

// SetActiveInput changes which source drives routing. Switching away
// from LTC clears the sticky FPS override, per spec.md §4.9.
func (e *Engine) SetActiveInput(s InputSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ActiveInput = s
	if s != InputLTC {
		e.userOverrodeLTCFPS = false
	}
}

// OverrideLTCFPS is called by the UI when the user manually selects
// one of the ambiguous rates {23.976, 29.97} while LTC is active. Per
// spec.md §4.9's formal FPS override rule, it only takes effect while
// the active input is LTC. Any rate it is given becomes FPS, but only
// an ambiguous rate sets the sticky override; any other rate clears it.
func (e *Engine) OverrideLTCFPS(r tc.Rate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ActiveInput != InputLTC {
		return
	}
	e.FPS = r
	e.userOverrodeLTCFPS = r == tc.Rate23_976 || r == tc.Rate2997DF
}

// wallClockMSMidnightFunc returns the current host time as
// milliseconds since local midnight; overridable in tests.
var wallClockMSMidnightFunc = func() int64 {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return now.Sub(midnight).Milliseconds()
}

// Tick runs one routing decision, intended to be called from the UI
// thread at 60 Hz per spec.md §4.9.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.ActiveInput {
	case InputSystemTime:
		e.currentTC = tc.WallClockMSToTC(wallClockMSMidnightFunc(), e.FPS)
		e.active = true
	case InputMTC:
		t, receiving := e.mtcIn.CurrentTimecode()
		e.currentTC = t
		e.active = receiving
		if receiving {
			if r, ok := e.mtcIn.DetectedRate(); ok {
				e.setFPS(r, "mtc")
			}
		}
	case InputArtNet:
		t, receiving := e.artNetIn.CurrentTimecode()
		e.currentTC = t
		e.active = receiving
		if receiving {
			if r, ok := e.artNetIn.DetectedRate(); ok {
				e.setFPS(r, "art-net")
			}
		}
	case InputLTC:
		t, receiving := e.ltcIn.CurrentTimecode()
		e.currentTC = t
		e.active = receiving
		if receiving {
			if r, ok := e.ltcIn.DetectedRate(); ok {
				e.applyLTCRate(r)
			}
		}
	}

	effectiveFPS := e.FPS
	baseTC := e.currentTC
	if e.FPSConvertEnabled {
		effectiveFPS = e.OutputFPS
		baseTC = tc.ConvertRate(e.currentTC, e.FPS, e.OutputFPS)
	}

	e.routeOutput(e.mtcOut, e.MTCOutput, baseTC, effectiveFPS)
	e.routeOutput(e.artNetOut, e.ArtNetOutput, baseTC, effectiveFPS)
	e.routeOutput(e.ltcOut, e.LTCOutput, baseTC, effectiveFPS)
}

// outputSink is the subset of an output handler's API the routing
// loop needs; MTCOut, ArtNetOut and LTCOut all satisfy it.
type outputSink interface {
	SetRate(tc.Rate)
	SetTimecode(tc.TC)
	IsRunning() bool
}

// pausable is implemented by every output handler (MTCOut, ArtNetOut,
// LTCOut); each mutes itself when the engine goes inactive, and LTCOut
// also drops its peak reading.
type pausable interface {
	SetPaused(bool)
}

func (e *Engine) routeOutput(h outputSink, out Output, baseTC tc.TC, fps tc.Rate) {
	if !out.Enabled || !h.IsRunning() {
		return
	}
	h.SetRate(fps)
	if p, ok := h.(pausable); ok {
		p.SetPaused(!e.active)
	}
	if !e.active {
		return
	}
	h.SetTimecode(tc.Offset(baseTC, out.Offset, fps))
}

// applyLTCRate implements the LTC-specific half of spec.md §4.9's
// rate-update rule: a detected rate only overrides FPS immediately if
// it isn't ambiguous with the current rate, or if the user hasn't
// stuck an ambiguous override in place.
func (e *Engine) applyLTCRate(detected tc.Rate) {
	if e.userOverrodeLTCFPS && tc.Ambiguous(detected, e.FPS) {
		return
	}
	if detected != tc.Rate23_976 && detected != tc.Rate2997DF {
		e.userOverrodeLTCFPS = false
	}
	e.setFPS(detected, "ltc")
}

// setFPS applies a newly detected rate, logging the transition when it
// actually changes anything.
func (e *Engine) setFPS(r tc.Rate, source string) {
	if r == e.FPS {
		return
	}
	log.Info("detected rate changed",
		zap.String("source", source),
		zap.String("from", e.FPS.String()),
		zap.String("to", r.String()))
	e.FPS = r
}

// CurrentTimecode returns the engine's current routed timecode and
// whether the active input is live.
func (e *Engine) CurrentTimecode() (tc.TC, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTC, e.active
}

// Snapshot is a point-in-time copy of an Engine's routing state, safe
// to read without further locking once returned — callers that live
// outside the Tick loop (the REST API's concurrent handlers, chiefly)
// must go through Snapshot/SetOutput rather than touch the exported
// fields directly, since those are guarded by mu the same as Tick.
type Snapshot struct {
	ActiveInput       InputSource
	FPS               tc.Rate
	FPSConvertEnabled bool
	OutputFPS         tc.Rate
	MTCOutput         Output
	ArtNetOutput      Output
	LTCOutput         Output
	AudioOutput       Output
	CurrentTC         tc.TC
	Active            bool
}

// Snapshot returns a mutex-guarded copy of the engine's routing state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		ActiveInput:       e.ActiveInput,
		FPS:               e.FPS,
		FPSConvertEnabled: e.FPSConvertEnabled,
		OutputFPS:         e.OutputFPS,
		MTCOutput:         e.MTCOutput,
		ArtNetOutput:      e.ArtNetOutput,
		LTCOutput:         e.LTCOutput,
		AudioOutput:       e.AudioOutput,
		CurrentTC:         e.currentTC,
		Active:            e.active,
	}
}

// SetOutput applies enabled/offset changes (either may be nil to leave
// that field alone) to one of the four outputs, named "mtc", "artnet",
// "ltc", or "audio". It reports false for an unknown kind.
func (e *Engine) SetOutput(kind string, enabled *bool, offset *int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.outputByKind(kind)
	if out == nil {
		return false
	}
	if enabled != nil {
		out.Enabled = *enabled
	}
	if offset != nil {
		out.Offset = clampFrameOffset(*offset)
	}
	return true
}

func (e *Engine) outputByKind(kind string) *Output {
	switch kind {
	case "mtc":
		return &e.MTCOutput
	case "artnet":
		return &e.ArtNetOutput
	case "ltc":
		return &e.LTCOutput
	case "audio":
		return &e.AudioOutput
	default:
		return nil
	}
}

func clampFrameOffset(frames int) int {
	switch {
	case frames < -30:
		return -30
	case frames > 30:
		return 30
	default:
		return frames
	}
}

// Shutdown stops every handler in the mandatory order from spec.md
// §3's lifecycle section: outputs before inputs, and within that,
// AudioThru before LTC-input so the consumer releases its ring-buffer
// pointer before the producer is torn down.
func (e *Engine) Shutdown() {
	e.mtcOut.Stop()
	e.artNetOut.Stop()
	e.ltcOut.Stop()
	e.audioThru.Stop()
	e.mtcIn.Stop()
	e.artNetIn.Stop()
	e.ltcIn.Stop()
}
