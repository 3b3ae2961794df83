package tui

import (
	"testing"

	"github.com/fiverecords/SuperTimecodeConverter/internal/engine"
	"github.com/fiverecords/SuperTimecodeConverter/internal/host"
)

func TestCycleActiveInputAdvancesThroughOrder(t *testing.T) {
	h := host.New()
	m := New(h)
	engines := h.Engines()
	engines[0].SetActiveInput(engine.InputMTC)

	m.cycleActiveInput(engines)
	if engines[0].ActiveInput != engine.InputArtNet {
		t.Fatalf("ActiveInput = %v, want InputArtNet after one cycle from InputMTC", engines[0].ActiveInput)
	}
}

func TestToggleSelectedOutputFlipsEnabled(t *testing.T) {
	h := host.New()
	m := New(h)
	engines := h.Engines()

	m.toggleSelectedOutput(engines)
	if !engines[0].MTCOutput.Enabled {
		t.Fatal("MTCOutput.Enabled = false after toggling the default-selected slot")
	}
	m.toggleSelectedOutput(engines)
	if engines[0].MTCOutput.Enabled {
		t.Fatal("MTCOutput.Enabled = true after toggling twice")
	}
}

func TestNudgeOffsetClampsToThirtyFrames(t *testing.T) {
	h := host.New()
	m := New(h)
	engines := h.Engines()
	engines[0].MTCOutput.Offset = 29

	m.nudgeOffset(engines, 5)
	if engines[0].MTCOutput.Offset != 30 {
		t.Fatalf("Offset = %d, want clamped to 30", engines[0].MTCOutput.Offset)
	}

	engines[0].MTCOutput.Offset = -29
	m.nudgeOffset(engines, -5)
	if engines[0].MTCOutput.Offset != -30 {
		t.Fatalf("Offset = %d, want clamped to -30", engines[0].MTCOutput.Offset)
	}
}

func TestInputLabelCoversEverySource(t *testing.T) {
	for _, s := range inputOrder {
		if got := inputLabel(s); got == "?" {
			t.Fatalf("inputLabel(%v) = %q, want a real label", s, got)
		}
	}
}
