package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fiverecords/SuperTimecodeConverter/internal/engine"
	"github.com/fiverecords/SuperTimecodeConverter/internal/settings"
	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

func TestInputSourceRoundTrip(t *testing.T) {
	for _, name := range []string{"mtc", "artnet", "ltc", "systemtime"} {
		src := inputSourceFromSettingsName(name)
		got := inputSourceToSettingsName(src)
		if got != name {
			t.Errorf("round trip %q -> %v -> %q, want %q", name, src, got, name)
		}
	}
}

func TestInputSourceFromSettingsNameDefaultsToSystemTime(t *testing.T) {
	if got := inputSourceFromSettingsName("bogus"); got != engine.InputSystemTime {
		t.Fatalf("inputSourceFromSettingsName(bogus) = %v, want InputSystemTime", got)
	}
}

func TestFPSIndexFindsExactMatch(t *testing.T) {
	for i, r := range tc.Rates {
		if got := fpsIndex(r); got != i {
			t.Errorf("fpsIndex(%v) = %d, want %d", r, got, i)
		}
	}
}

func TestApplyEngineSettingsClampsOffsets(t *testing.T) {
	e := engine.New()
	es := settings.EngineSettings{
		InputSource: "ltc",
		MTCOut:      settings.HandlerSettings{Enabled: true, Offset: 100},
	}
	applyEngineSettings(e, es)

	if e.ActiveInput != engine.InputLTC {
		t.Fatalf("ActiveInput = %v, want InputLTC", e.ActiveInput)
	}
	if e.MTCOutput.Offset != 30 {
		t.Fatalf("MTCOutput.Offset = %d, want clamped to 30", e.MTCOutput.Offset)
	}
}

func TestBuildHostMatchesEngineCount(t *testing.T) {
	doc := settings.Default(func() string { return "fixed-id" })
	doc.Engines = append(doc.Engines, settings.EngineSettings{ID: "second"})

	h := buildHost(doc)
	if got := len(h.Engines()); got != 2 {
		t.Fatalf("len(Engines()) = %d, want 2", got)
	}
}

func TestSnapshotSettingsPreservesEngineIDs(t *testing.T) {
	doc := settings.Default(func() string { return "original-id" })
	h := buildHost(doc)

	snap := snapshotSettings(h, doc)
	if len(snap.Engines) != 1 {
		t.Fatalf("len(snap.Engines) = %d, want 1", len(snap.Engines))
	}
	if snap.Engines[0].ID != "original-id" {
		t.Fatalf("Engines[0].ID = %q, want preserved original-id", snap.Engines[0].ID)
	}
}

func TestApplyShowProfilePathPresetsDeviceNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	body := "name: Main Stage\ndevices:\n  ltc_in: Focusrite 2i2\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc := settings.Default(func() string { return "fixed-id" })
	if err := applyShowProfilePath(&doc, path); err != nil {
		t.Fatalf("applyShowProfilePath: %v", err)
	}
	if doc.Engines[0].LTCIn.DeviceName != "Focusrite 2i2" {
		t.Fatalf("LTCIn.DeviceName = %q, want Focusrite 2i2", doc.Engines[0].LTCIn.DeviceName)
	}
}

func TestApplyShowProfilePathPropagatesLoadError(t *testing.T) {
	doc := settings.Default(func() string { return "fixed-id" })
	if err := applyShowProfilePath(&doc, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("applyShowProfilePath with a missing file returned nil error")
	}
}
