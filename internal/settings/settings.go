// Package settings implements the persisted configuration document
// described in spec.md §6: a versioned TOML document (v1 single-engine,
// v2 multi-engine) with offsets, gains, device identifiers, fps
// selections, and the v1→v2 migration that wraps a v1 payload into
// engines[0].
package settings

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const CurrentVersion = 2

// HandlerSettings is the persisted state for one protocol handler slot
// on an engine: which device it opens, whether it's enabled, its
// per-output frame offset, and its gain.
type HandlerSettings struct {
	DeviceName string  `toml:"device_name"`
	Channel    int     `toml:"channel"`
	Enabled    bool    `toml:"enabled"`
	Offset     int     `toml:"offset"`
	Gain       float64 `toml:"gain"`
}

// EngineSettings is the persisted state for one engine.
type EngineSettings struct {
	ID                string `toml:"id"`
	InputSource       string `toml:"input_source"`
	InputFPSIndex     int    `toml:"input_fps_index"`
	OutputFPSIndex    int    `toml:"output_fps_index"`
	FPSConvertEnabled bool   `toml:"fps_convert_enabled"`
	LTCOverride       bool   `toml:"ltc_override"`

	MTCIn     HandlerSettings `toml:"mtc_in"`
	MTCOut    HandlerSettings `toml:"mtc_out"`
	ArtNetIn  HandlerSettings `toml:"artnet_in"`
	ArtNetOut HandlerSettings `toml:"artnet_out"`
	LTCIn     HandlerSettings `toml:"ltc_in"`
	LTCOut    HandlerSettings `toml:"ltc_out"`
	AudioThru HandlerSettings `toml:"audio_thru"`
}

// Document is the top-level persisted state, v2 shape.
type Document struct {
	Version int `toml:"version"`

	AudioDriverFilter   string `toml:"audio_driver_filter"`
	PreferredSampleRate int    `toml:"preferred_sample_rate"`
	PreferredBufferSize int    `toml:"preferred_buffer_size"`
	SelectedEngineIndex int    `toml:"selected_engine_index"`

	Engines []EngineSettings `toml:"engines"`
}

// v1Document is the legacy single-engine shape: every field that is
// now nested under engines[0] sat at the top level instead.
type v1Document struct {
	AudioDriverFilter   string `toml:"audio_driver_filter"`
	PreferredSampleRate int    `toml:"preferred_sample_rate"`
	PreferredBufferSize int    `toml:"preferred_buffer_size"`

	InputSource       string `toml:"input_source"`
	InputFPSIndex     int    `toml:"input_fps_index"`
	OutputFPSIndex    int    `toml:"output_fps_index"`
	FPSConvertEnabled bool   `toml:"fps_convert_enabled"`
	LTCOverride       bool   `toml:"ltc_override"`

	MTCIn     HandlerSettings `toml:"mtc_in"`
	MTCOut    HandlerSettings `toml:"mtc_out"`
	ArtNetIn  HandlerSettings `toml:"artnet_in"`
	ArtNetOut HandlerSettings `toml:"artnet_out"`
	LTCIn     HandlerSettings `toml:"ltc_in"`
	LTCOut    HandlerSettings `toml:"ltc_out"`
	AudioThru HandlerSettings `toml:"audio_thru"`
}

// migrateV1 wraps a v1 payload into a single engines[0] entry, per
// spec.md §6's migration rule. The engine gets a freshly generated ID
// since v1 documents predate per-engine identity.
func migrateV1(v1 v1Document, newID func() string) Document {
	return Document{
		Version:             CurrentVersion,
		AudioDriverFilter:   v1.AudioDriverFilter,
		PreferredSampleRate: v1.PreferredSampleRate,
		PreferredBufferSize: v1.PreferredBufferSize,
		SelectedEngineIndex: 0,
		Engines: []EngineSettings{
			{
				ID:                newID(),
				InputSource:       v1.InputSource,
				InputFPSIndex:     v1.InputFPSIndex,
				OutputFPSIndex:    v1.OutputFPSIndex,
				FPSConvertEnabled: v1.FPSConvertEnabled,
				LTCOverride:       v1.LTCOverride,
				MTCIn:             v1.MTCIn,
				MTCOut:            v1.MTCOut,
				ArtNetIn:          v1.ArtNetIn,
				ArtNetOut:         v1.ArtNetOut,
				LTCIn:             v1.LTCIn,
				LTCOut:            v1.LTCOut,
				AudioThru:         v1.AudioThru,
			},
		},
	}
}

// versionProbe decodes only the version field, so Load can pick the v1
// or v2 struct shape before committing to a full decode.
type versionProbe struct {
	Version int `toml:"version"`
}

// Default returns a fresh v2 document with one engine, suitable for a
// first run with no settings file on disk.
func Default(newID func() string) Document {
	return Document{
		Version:             CurrentVersion,
		PreferredSampleRate: 48000,
		PreferredBufferSize: 512,
		Engines: []EngineSettings{
			{ID: newID(), InputSource: "systemtime", OutputFPSIndex: 1},
		},
	}
}

// Load reads and parses the TOML document at path, migrating a v1
// payload to v2 if necessary. newID supplies a fresh engine ID for
// engines created by migration.
func Load(path string, newID func() string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	var probe versionProbe
	if err := toml.Unmarshal(data, &probe); err != nil {
		return Document{}, fmt.Errorf("settings: parse %s: %w", path, err)
	}

	if probe.Version < CurrentVersion {
		var v1 v1Document
		if err := toml.Unmarshal(data, &v1); err != nil {
			return Document{}, fmt.Errorf("settings: parse v1 %s: %w", path, err)
		}
		return migrateV1(v1, newID), nil
	}

	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return doc, nil
}

// Save serializes doc as TOML and writes it to path.
func Save(path string, doc Document) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", path, err)
	}
	return nil
}

// ClampOffset bounds a per-output offset to the -30..30 frame range
// the data model allows (spec.md §3).
func ClampOffset(frames int) int {
	switch {
	case frames < -30:
		return -30
	case frames > 30:
		return 30
	default:
		return frames
	}
}
