package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ShowProfile is an optional, user-authored YAML file that seeds
// device-name presets for a venue or show, so the operator doesn't
// have to re-pick devices by hand on every engine for a repeat gig.
// It is a convenience import, not a persisted document: loading one
// only fills in HandlerSettings.DeviceName fields on a Document that
// is otherwise built normally.
type ShowProfile struct {
	Name    string            `yaml:"name"`
	Devices map[string]string `yaml:"devices"` // handler slot -> device name, e.g. "ltc_in": "Focusrite 2i2"
}

// LoadShowProfile parses a show-profile YAML file.
func LoadShowProfile(path string) (ShowProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ShowProfile{}, fmt.Errorf("settings: read show profile %s: %w", path, err)
	}
	var p ShowProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return ShowProfile{}, fmt.Errorf("settings: parse show profile %s: %w", path, err)
	}
	return p, nil
}

// ApplyShowProfile fills in device-name presets on e's handler slots
// from p, leaving any slot p doesn't mention untouched.
func ApplyShowProfile(e *EngineSettings, p ShowProfile) {
	set := func(dst *HandlerSettings, key string) {
		if name, ok := p.Devices[key]; ok {
			dst.DeviceName = name
		}
	}
	set(&e.MTCIn, "mtc_in")
	set(&e.MTCOut, "mtc_out")
	set(&e.ArtNetIn, "artnet_in")
	set(&e.ArtNetOut, "artnet_out")
	set(&e.LTCIn, "ltc_in")
	set(&e.LTCOut, "ltc_out")
	set(&e.AudioThru, "audio_thru")
}
