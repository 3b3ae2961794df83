package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func fakeID() string { return "engine-0" }

func TestMigrateV1WrapsIntoEngineZero(t *testing.T) {
	v1 := v1Document{
		AudioDriverFilter: "CoreAudio",
		InputSource:       "ltc",
		InputFPSIndex:     2,
		LTCOverride:       true,
		LTCIn:             HandlerSettings{DeviceName: "Built-in Input", Enabled: true, Gain: 1.5},
	}

	doc := migrateV1(v1, fakeID)

	if doc.Version != CurrentVersion {
		t.Fatalf("Version = %d, want %d", doc.Version, CurrentVersion)
	}
	if len(doc.Engines) != 1 {
		t.Fatalf("len(Engines) = %d, want 1", len(doc.Engines))
	}
	e := doc.Engines[0]
	if e.ID != "engine-0" || e.InputSource != "ltc" || !e.LTCOverride {
		t.Fatalf("Engines[0] = %+v, want migrated v1 fields", e)
	}
	if e.LTCIn.DeviceName != "Built-in Input" || e.LTCIn.Gain != 1.5 {
		t.Fatalf("Engines[0].LTCIn = %+v, want migrated handler settings", e.LTCIn)
	}
	if doc.AudioDriverFilter != "CoreAudio" {
		t.Fatalf("AudioDriverFilter = %q, want CoreAudio", doc.AudioDriverFilter)
	}
}

func TestLoadMigratesLegacyDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	legacy := `
audio_driver_filter = "ALSA"
input_source = "mtc"
input_fps_index = 1

[mtc_in]
device_name = "UM-ONE"
enabled = true
`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc, err := Load(path, fakeID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Engines) != 1 {
		t.Fatalf("len(Engines) = %d, want 1 after migration", len(doc.Engines))
	}
	if doc.Engines[0].MTCIn.DeviceName != "UM-ONE" {
		t.Fatalf("MTCIn.DeviceName = %q, want UM-ONE", doc.Engines[0].MTCIn.DeviceName)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	doc := Default(fakeID)
	doc.Engines[0].LTCIn.Offset = 12
	doc.Engines[0].LTCIn.Gain = 0.8

	if err := Save(path, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path, fakeID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != CurrentVersion {
		t.Fatalf("Version = %d, want %d", got.Version, CurrentVersion)
	}
	if got.Engines[0].LTCIn.Offset != 12 || got.Engines[0].LTCIn.Gain != 0.8 {
		t.Fatalf("Engines[0].LTCIn = %+v, want Offset=12 Gain=0.8", got.Engines[0].LTCIn)
	}
}

func TestClampOffset(t *testing.T) {
	cases := []struct{ in, want int }{
		{-100, -30}, {100, 30}, {5, 5}, {-30, -30}, {30, 30},
	}
	for _, c := range cases {
		if got := ClampOffset(c.in); got != c.want {
			t.Errorf("ClampOffset(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
