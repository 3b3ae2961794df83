package host

import "testing"

func TestNewHostHasOnePrimaryEngine(t *testing.T) {
	h := New()
	if got := len(h.Engines()); got != 1 {
		t.Fatalf("len(Engines()) = %d, want 1", got)
	}
	if !h.IsPrimary(0) {
		t.Fatal("IsPrimary(0) = false on a freshly created host")
	}
}

func TestAddEngineRespectsMax(t *testing.T) {
	h := New()
	for i := 1; i < MaxEngines; i++ {
		if _, err := h.AddEngine(); err != nil {
			t.Fatalf("AddEngine() #%d: %v", i, err)
		}
	}
	if _, err := h.AddEngine(); err == nil {
		t.Fatal("AddEngine() beyond the limit succeeded, want error")
	}
}

func TestRemoveEngineRespectsMin(t *testing.T) {
	h := New()
	if err := h.RemoveEngine(0); err == nil {
		t.Fatal("RemoveEngine() below the minimum succeeded, want error")
	}
}

func TestRemoveEnginePromotesNextPrimary(t *testing.T) {
	h := New()
	h.AddEngine()
	h.AddEngine()

	if err := h.RemoveEngine(0); err != nil {
		t.Fatalf("RemoveEngine(0): %v", err)
	}
	if !h.IsPrimary(0) {
		t.Fatal("IsPrimary(0) = false, want the next engine promoted after primary removal")
	}
	if got := len(h.Engines()); got != 2 {
		t.Fatalf("len(Engines()) = %d, want 2", got)
	}
}

func TestRemoveEngineShiftsPrimaryIndexWhenRemovingBeforeIt(t *testing.T) {
	h := New()
	h.AddEngine()
	h.AddEngine()
	h.primary = 2

	if err := h.RemoveEngine(0); err != nil {
		t.Fatalf("RemoveEngine(0): %v", err)
	}
	if h.primary != 1 {
		t.Fatalf("primary = %d, want 1 after removing an engine before it", h.primary)
	}
}

type fakeHandler struct {
	evictedBy string
}

func (f *fakeHandler) Evict(owner string) { f.evictedBy = owner }

func TestDeviceRegistryClaimEvictsPreviousOwner(t *testing.T) {
	r := NewDeviceRegistry()
	first := &fakeHandler{}
	second := &fakeHandler{}

	r.Claim("dev0", 0, "LTCOut", first)
	r.Claim("dev0", 1, "AudioThru", second)

	if first.evictedBy == "" {
		t.Fatal("previous owner was not evicted on conflicting claim")
	}
	if want := "Engine 2 AudioThru"; first.evictedBy != want {
		t.Fatalf("evictedBy = %q, want %q", first.evictedBy, want)
	}
	owner, ok := r.OwnerOf("dev0")
	if !ok || owner.EngineIndex != 1 || owner.Kind != "AudioThru" {
		t.Fatalf("OwnerOf(dev0) = %+v, %v, want engine 1 AudioThru", owner, ok)
	}
}

func TestDeviceRegistryReClaimBySameOwnerDoesNotEvict(t *testing.T) {
	r := NewDeviceRegistry()
	h := &fakeHandler{}
	r.Claim("dev0", 0, "LTCIn", h)
	r.Claim("dev0", 0, "LTCIn", h)
	if h.evictedBy != "" {
		t.Fatal("re-claiming by the same owner evicted the handler")
	}
}

func TestDeviceOwnerMarker(t *testing.T) {
	o := DeviceOwner{EngineIndex: 2, Kind: "LTCOut"}
	if got := o.Marker(2); got != "●" {
		t.Fatalf("Marker(2) = %q, want bullet for the asking engine", got)
	}
	if got, want := o.Marker(0), "[ENGINE 3]"; got != want {
		t.Fatalf("Marker(0) = %q, want %q", got, want)
	}
}

func TestStartAudioThruRefusesNonPrimary(t *testing.T) {
	h := New()
	h.AddEngine()
	if err := h.StartAudioThru(1, "dev0", 48000, 512); err == nil {
		t.Fatal("StartAudioThru on a non-primary engine succeeded, want error")
	}
}
