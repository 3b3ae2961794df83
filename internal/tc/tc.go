// Package tc implements the timecode algebra shared by every protocol
// codec and the engine's routing logic: packed Timecode values, frame
// rate metadata, frame increment/offset, and wall-clock conversion
// (including SMPTE 29.97 drop-frame counting).
package tc

import (
	"fmt"
	"math"
)

// Rate is one of the five frame rates the system understands.
type Rate uint8

const (
	Rate23_976 Rate = iota
	Rate24
	Rate25
	Rate2997DF
	Rate30
)

// Rates lists every supported rate, in the order the UI presents them.
var Rates = [...]Rate{Rate23_976, Rate24, Rate25, Rate2997DF, Rate30}

func (r Rate) String() string {
	switch r {
	case Rate23_976:
		return "23.976"
	case Rate24:
		return "24"
	case Rate25:
		return "25"
	case Rate2997DF:
		return "29.97 DF"
	case Rate30:
		return "30"
	default:
		return fmt.Sprintf("Rate(%d)", uint8(r))
	}
}

// Numeric returns the true, physical frames-per-second for the rate —
// the value that governs real-time signal timing (LTC bit cells, MTC
// quarter-frame cadence). 24000/1001 and 30000/1001 for the fractional
// rates, the integer value otherwise.
func (r Rate) Numeric() float64 {
	switch r {
	case Rate23_976:
		return 24000.0 / 1001.0
	case Rate24:
		return 24
	case Rate25:
		return 25
	case Rate2997DF:
		return 30000.0 / 1001.0
	case Rate30:
		return 30
	default:
		return 30
	}
}

// Modulus returns the number of valid frame numbers (0..Modulus-1) for
// the rate.
func (r Rate) Modulus() int {
	switch r {
	case Rate23_976, Rate24:
		return 24
	case Rate25:
		return 25
	case Rate2997DF, Rate30:
		return 30
	default:
		return 30
	}
}

// IsDropFrame reports whether the rate uses SMPTE drop-frame counting.
// 29.97 is the only drop-frame rate.
func (r Rate) IsDropFrame() bool {
	return r == Rate2997DF
}

// WireCode returns the 2-bit rate code shared by LTC, MTC and Art-Net:
// 0=24, 1=25, 2=29.97 DF, 3=30. 23.976 is indistinguishable from 24 on
// the wire and shares its code.
func (r Rate) WireCode() uint8 {
	switch r {
	case Rate25:
		return 1
	case Rate2997DF:
		return 2
	case Rate30:
		return 3
	default:
		return 0
	}
}

// RateFromWireCode decodes a 2-bit wire rate code. It can never recover
// 23.976 — that disambiguation is a user override, not a decode.
func RateFromWireCode(code uint8) Rate {
	switch code & 0x3 {
	case 1:
		return Rate25
	case 2:
		return Rate2997DF
	case 3:
		return Rate30
	default:
		return Rate24
	}
}

// Ambiguous reports whether a and b are indistinguishable on the wire
// (24 vs 23.976, or 30 vs 29.97 DF).
func Ambiguous(a, b Rate) bool {
	pair := func(r Rate) int {
		switch r {
		case Rate23_976, Rate24:
			return 1
		case Rate30, Rate2997DF:
			return 2
		default:
			return 0
		}
	}
	pa, pb := pair(a), pair(b)
	return pa != 0 && pa == pb && a != b
}

// TC is an hours:minutes:seconds:frames timecode value.
type TC struct {
	Hours   uint8
	Minutes uint8
	Seconds uint8
	Frames  uint8
}

// Pack compresses tc into the low 32 bits of a 64-bit word (one byte per
// field) so it can be exchanged with a single atomic store/load.
func (t TC) Pack() uint64 {
	return uint64(t.Hours)<<24 | uint64(t.Minutes)<<16 | uint64(t.Seconds)<<8 | uint64(t.Frames)
}

// Unpack reverses Pack.
func Unpack(v uint64) TC {
	return TC{
		Hours:   uint8(v >> 24),
		Minutes: uint8(v >> 16),
		Seconds: uint8(v >> 8),
		Frames:  uint8(v),
	}
}

func (t TC) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds, t.Frames)
}

// Valid reports whether every field of t is in range for rate, and —
// for drop-frame — that t does not name one of the skipped frame
// numbers.
func (t TC) Valid(rate Rate) bool {
	if t.Hours > 23 || t.Minutes > 59 || t.Seconds > 59 {
		return false
	}
	if int(t.Frames) >= rate.Modulus() {
		return false
	}
	if rate.IsDropFrame() && t.Seconds == 0 && t.Frames < 2 && t.Minutes%10 != 0 {
		return false
	}
	return true
}

const framesPerDayDivisor = 24 * 60 * 60

// linearIndex converts tc to a frame-ordinal using plain positional
// arithmetic (no drop-frame correction). Valid for non-drop rates.
func linearIndex(t TC, rate Rate) int64 {
	mod := int64(rate.Modulus())
	return ((int64(t.Hours)*60+int64(t.Minutes))*60+int64(t.Seconds))*mod + int64(t.Frames)
}

// fromLinearIndex is the inverse of linearIndex, wrapping at 24 hours.
func fromLinearIndex(idx int64, rate Rate) TC {
	mod := int64(rate.Modulus())
	total := int64(framesPerDayDivisor) * mod
	idx %= total
	if idx < 0 {
		idx += total
	}
	f := idx % mod
	idx /= mod
	s := idx % 60
	idx /= 60
	m := idx % 60
	idx /= 60
	h := idx % 24
	return TC{Hours: uint8(h), Minutes: uint8(m), Seconds: uint8(s), Frames: uint8(f)}
}

// IncrementFrame advances tc by exactly one frame, wrapping at 24 hours
// and, for 29.97 DF, skipping frame numbers 0 and 1 at the start of
// every minute that is not a multiple of ten.
func IncrementFrame(t TC, rate Rate) TC {
	if !rate.IsDropFrame() {
		return fromLinearIndex(linearIndex(t, rate)+1, rate)
	}
	return incrementDF(t)
}

// DecrementFrame is the inverse of IncrementFrame.
func DecrementFrame(t TC, rate Rate) TC {
	if !rate.IsDropFrame() {
		return fromLinearIndex(linearIndex(t, rate)-1, rate)
	}
	return decrementDF(t)
}

func incrementDF(t TC) TC {
	f := int(t.Frames) + 1
	s, m, h := int(t.Seconds), int(t.Minutes), int(t.Hours)
	if f >= 30 {
		f = 0
		s++
		if s >= 60 {
			s = 0
			m++
			if m >= 60 {
				m = 0
				h = (h + 1) % 24
			}
			if m%10 != 0 {
				f = 2
			}
		}
	}
	return TC{Hours: uint8(h), Minutes: uint8(m), Seconds: uint8(s), Frames: uint8(f)}
}

func decrementDF(t TC) TC {
	// The predecessor of the first valid frame of a non-tenth minute
	// (frame 2, second 0) is the last frame of the previous minute —
	// frames 0 and 1 never existed as labels.
	if t.Frames == 2 && t.Seconds == 0 && t.Minutes%10 != 0 {
		m, h := int(t.Minutes)-1, int(t.Hours)
		if m < 0 {
			m = 59
			h = (h - 1 + 24) % 24
		}
		return TC{Hours: uint8(h), Minutes: uint8(m), Seconds: 59, Frames: 29}
	}

	f := int(t.Frames) - 1
	s, m, h := int(t.Seconds), int(t.Minutes), int(t.Hours)
	if f < 0 {
		f = 29
		s--
		if s < 0 {
			s = 59
			m--
			if m < 0 {
				m = 59
				h = (h - 1 + 24) % 24
			}
		}
	}
	return TC{Hours: uint8(h), Minutes: uint8(m), Seconds: uint8(s), Frames: uint8(f)}
}

// Offset shifts tc by delta frames, wrapping at 24 hours. Non-drop
// rates use plain linear frame arithmetic for any delta. For drop-frame,
// bounded offsets (|delta| <= 30) step frame-by-frame through the
// drop-frame aware increment/decrement so the result is always a valid
// label; larger offsets round-trip through wall-clock milliseconds, per
// the contract decision recorded in DESIGN.md.
func Offset(t TC, delta int, rate Rate) TC {
	if delta == 0 {
		return t
	}
	if !rate.IsDropFrame() {
		return fromLinearIndex(linearIndex(t, rate)+int64(delta), rate)
	}
	if delta >= -30 && delta <= 30 {
		out := t
		if delta > 0 {
			for i := 0; i < delta; i++ {
				out = incrementDF(out)
			}
		} else {
			for i := 0; i < -delta; i++ {
				out = decrementDF(out)
			}
		}
		return out
	}
	ms := TCToWallClockMS(t, rate)
	frameMS := 1000.0 / 30.0 // nominal-30 bookkeeping frame duration, see WallClockMSToTC
	ms2 := ms + int64(float64(delta)*frameMS)
	return WallClockMSToTC(ms2, rate)
}

// dropCount is the number of drop-frame labels skipped by the time
// totalMinutes whole minutes have elapsed.
func dropCount(totalMinutes int64) int64 {
	return 2 * (totalMinutes - totalMinutes/10)
}

// WallClockMSToTC converts milliseconds elapsed since midnight into a
// Timecode at rate.
//
// For non-drop rates this is a direct proportional mapping using the
// rate's true numeric fps, rounded to the nearest frame. For 29.97
// drop-frame it follows the SMPTE convention: compute the nominal
// (flat 30 fps) frame count, rounded to the nearest frame, subtract the
// drop-frame labels skipped by the label's own minute, and decode the
// result as a plain base-30 timecode. The drop-frame mapping wraps once
// a full day of labels has elapsed (86 486.4 s of nominal time), so
// labels after 23:58:33 still map back to themselves.
func WallClockMSToTC(ms int64, rate Rate) TC {
	if !rate.IsDropFrame() {
		frames := int64(math.Round(float64(ms) / 1000.0 * rate.Numeric()))
		return fromLinearIndex(frames, rate)
	}

	dayNominalFrames := int64(framesPerDayDivisor)*30 + dropCount(24*60)
	nominal := int64(math.Round(float64(ms) / 1000.0 * 30.0))
	nominal %= dayNominalFrames
	if nominal < 0 {
		nominal += dayNominalFrames
	}

	// The label's minute is estimated from nominal first, then from the
	// first estimate, which lands on the label's own minute.
	final := nominal - dropCount(nominal/1800)
	final = nominal - dropCount(final/1800)
	return fromLinearIndex(final, Rate30)
}

// TCToWallClockMS is the inverse of WallClockMSToTC.
func TCToWallClockMS(t TC, rate Rate) int64 {
	if !rate.IsDropFrame() {
		frames := linearIndex(t, rate)
		return int64(float64(frames) / rate.Numeric() * 1000.0)
	}

	totalMinutes := int64(t.Hours)*60 + int64(t.Minutes)
	labelCount := linearIndex(t, Rate30)
	nominal := labelCount + dropCount(totalMinutes)
	return nominal * 1000 / 30
}

// ConvertRate re-labels tc, recorded at `from`, as the equivalent
// timecode at `to`, by round-tripping through wall-clock milliseconds.
func ConvertRate(t TC, from, to Rate) TC {
	if from == to {
		return t
	}
	return WallClockMSToTC(TCToWallClockMS(t, from), to)
}
