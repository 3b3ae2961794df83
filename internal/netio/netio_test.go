package netio

import (
	"net"
	"testing"
)

func TestDirectedBroadcast(t *testing.T) {
	ip := net.IPv4(192, 168, 1, 42).To4()
	mask := net.CIDRMask(24, 32)
	got := directedBroadcast(ip, mask)
	want := net.IPv4(192, 168, 1, 255).To4()
	if !got.Equal(want) {
		t.Fatalf("directedBroadcast() = %v, want %v", got, want)
	}
}

func TestListenFallsBackToWildcard(t *testing.T) {
	l, err := Listen("203.0.113.1") // non-local, should fail to bind and fall back
	if err != nil {
		t.Fatalf("Listen() = %v", err)
	}
	defer l.Close()
	if !l.FellBack {
		t.Fatal("FellBack = false, want true when the specific interface IP cannot bind")
	}
}
