package artnet

import (
	"bytes"
	"testing"

	"github.com/fiverecords/SuperTimecodeConverter/internal/tc"
)

func TestEncodePacketBytes(t *testing.T) {
	pkt := Encode(tc.TC{Hours: 10, Minutes: 20, Seconds: 30, Frames: 7}, tc.Rate25)

	want := []byte{
		'A', 'r', 't', '-', 'N', 'e', 't', 0,
		0x00, 0x97,
		0x00, 0x0E,
		0x00, 0x00,
		0x07, 0x1E, 0x14, 0x0A,
		0x01,
	}
	if !bytes.Equal(pkt[:], want) {
		t.Fatalf("Encode() = %v, want %v", pkt, want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	in := tc.TC{Hours: 23, Minutes: 59, Seconds: 58, Frames: 29}
	pkt := Encode(in, tc.Rate30)
	got, rate, ok := Decode(pkt[:])
	if !ok {
		t.Fatal("Decode() rejected a valid packet")
	}
	if got != in {
		t.Errorf("Decode() = %v, want %v", got, in)
	}
	if rate != tc.Rate30 {
		t.Errorf("rate = %v, want %v", rate, tc.Rate30)
	}
}

func TestDecodeRejectsBadSignature(t *testing.T) {
	pkt := Encode(tc.TC{}, tc.Rate24)
	pkt[0] = 'x'
	if _, _, ok := Decode(pkt[:]); ok {
		t.Fatal("Decode() accepted a bad signature")
	}
}

func TestDecodeRejectsShortPacket(t *testing.T) {
	if _, _, ok := Decode(make([]byte, 10)); ok {
		t.Fatal("Decode() accepted a short packet")
	}
}

func TestDecodeRejectsOutOfRangeField(t *testing.T) {
	pkt := Encode(tc.TC{Hours: 23, Minutes: 59, Seconds: 59, Frames: 29}, tc.Rate30)
	pkt[17] = 30 // hours out of range
	if _, _, ok := Decode(pkt[:]); ok {
		t.Fatal("Decode() accepted an out-of-range hours field")
	}
}

func TestDecodeToleratesReservedBits(t *testing.T) {
	pkt := Encode(tc.TC{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}, tc.Rate25)
	pkt[18] |= 0xFC // set the reserved upper 6 bits
	got, rate, ok := Decode(pkt[:])
	if !ok {
		t.Fatal("Decode() rejected a packet with reserved bits set")
	}
	if rate != tc.Rate25 {
		t.Errorf("rate = %v, want %v", rate, tc.Rate25)
	}
	if got != (tc.TC{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4}) {
		t.Errorf("unexpected decode: %v", got)
	}
}

func TestEncoderDecoderRoundTripViaReceiver(t *testing.T) {
	enc := NewEncoder()
	enc.SetRate(tc.Rate2997DF)
	enc.SetTimecode(tc.TC{Hours: 2, Minutes: 3, Seconds: 4, Frames: 5})
	enc.Start(0)

	rx := NewReceiver()
	now := 0.0
	for i := 0; i < 100; i++ {
		for _, pkt := range enc.Tick(now) {
			rx.Accept(pkt[:])
		}
		now += 1
	}

	if !rx.IsReceiving() {
		t.Fatal("receiver should be live after packets arrived")
	}
	if got := rx.CurrentTimecode(); got != (tc.TC{Hours: 2, Minutes: 3, Seconds: 4, Frames: 5}) {
		t.Fatalf("CurrentTimecode() = %v", got)
	}
	if rate, ok := rx.DetectedRate(); !ok || rate != tc.Rate2997DF {
		t.Fatalf("DetectedRate() = %v, %v", rate, ok)
	}
}
