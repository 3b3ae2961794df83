// Package artnet implements the ArtTimeCode packet codec: a fixed
// 19-byte payload carrying SMPTE timecode over UDP. Socket I/O lives
// in internal/netio.
package artnet

import "github.com/fiverecords/SuperTimecodeConverter/internal/tc"

// PacketSize is the exact length of an ArtTimeCode payload.
const PacketSize = 19

const (
	opCodeTimeCode = 0x9700
	protocolVerMin = 14
)

var signature = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

// Encode builds an ArtTimeCode packet for t at rate.
func Encode(t tc.TC, rate tc.Rate) [PacketSize]byte {
	var pkt [PacketSize]byte
	copy(pkt[0:8], signature[:])
	pkt[8] = byte(opCodeTimeCode & 0xFF)
	pkt[9] = byte(opCodeTimeCode >> 8)
	pkt[10] = 0x00
	pkt[11] = 14
	pkt[12] = 0
	pkt[13] = 0
	pkt[14] = t.Frames
	pkt[15] = t.Seconds
	pkt[16] = t.Minutes
	pkt[17] = t.Hours
	pkt[18] = rate.WireCode() & 0x3
	return pkt
}

// Decode parses an ArtTimeCode packet, validating the signature,
// opcode, protocol version, and timecode field ranges.
func Decode(pkt []byte) (t tc.TC, rate tc.Rate, ok bool) {
	if len(pkt) < PacketSize {
		return tc.TC{}, 0, false
	}
	for i, b := range signature {
		if pkt[i] != b {
			return tc.TC{}, 0, false
		}
	}
	opcode := uint16(pkt[8]) | uint16(pkt[9])<<8
	if opcode != opCodeTimeCode {
		return tc.TC{}, 0, false
	}
	protoVer := uint16(pkt[10])<<8 | uint16(pkt[11])
	if protoVer < protocolVerMin {
		return tc.TC{}, 0, false
	}

	rate = tc.RateFromWireCode(pkt[18] & 0x3)
	frames, seconds, minutes, hours := pkt[14], pkt[15], pkt[16], pkt[17]
	if hours > 23 || minutes > 59 || seconds > 59 || int(frames) >= rate.Modulus() {
		return tc.TC{}, 0, false
	}

	return tc.TC{Hours: hours, Minutes: minutes, Seconds: seconds, Frames: frames}, rate, true
}
