package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadShowProfileAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	body := "name: Main Stage\ndevices:\n  ltc_in: Focusrite 2i2\n  mtc_out: UM-ONE\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := LoadShowProfile(path)
	if err != nil {
		t.Fatalf("LoadShowProfile: %v", err)
	}
	if p.Name != "Main Stage" {
		t.Fatalf("Name = %q, want Main Stage", p.Name)
	}

	e := EngineSettings{}
	ApplyShowProfile(&e, p)
	if e.LTCIn.DeviceName != "Focusrite 2i2" {
		t.Fatalf("LTCIn.DeviceName = %q, want Focusrite 2i2", e.LTCIn.DeviceName)
	}
	if e.MTCOut.DeviceName != "UM-ONE" {
		t.Fatalf("MTCOut.DeviceName = %q, want UM-ONE", e.MTCOut.DeviceName)
	}
	if e.ArtNetIn.DeviceName != "" {
		t.Fatalf("ArtNetIn.DeviceName = %q, want untouched empty string", e.ArtNetIn.DeviceName)
	}
}
