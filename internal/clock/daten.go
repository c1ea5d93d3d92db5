package clock

import "time"

// Daten is the wwivnet wire timestamp: unsigned 32-bit seconds since the
// Unix epoch, little-endian on disk and on the wire (encoding lives in
// internal/netpacket). Daten truncates sub-second precision.
type Daten uint32

// Zero is the zero-value Daten (the Unix epoch).
const Zero Daten = 0

// FromTime truncates t to whole seconds since the epoch. Times before
// 1970 or after the uint32 rollover in 2106 are clamped to the nearest
// representable boundary rather than wrapping, since wrapping would
// silently corrupt on-disk records.
func FromTime(t time.Time) Daten {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	if sec > int64(^uint32(0)) {
		return Daten(^uint32(0))
	}
	return Daten(uint32(sec))
}

// Now returns the current instant as a Daten using clk.
func Now(clk Clock) Daten {
	return FromTime(clk.Now())
}

// Time converts a Daten back to a UTC time.Time.
func (d Daten) Time() time.Time {
	return time.Unix(int64(uint32(d)), 0).UTC()
}

// Local converts a Daten to a time.Time in loc, preserving the
// daylight-saving state that a broken-down representation would have had
// at that instant in loc. This matters because a caller that extracts
// year/month/day/hour fields from a Daten, mutates one field, and asks
// for the Daten back (the "reflect-and-rewrite" pattern) must land on the
// same UTC instant modulo the field changed, not silently shift by an
// hour across a DST boundary.
func (d Daten) Local(loc *time.Location) time.Time {
	return d.Time().In(loc)
}

// FromLocal is the inverse of Local: it takes a broken-down local time and
// returns the Daten for that instant, letting the time package resolve
// DST ambiguity (time.Date already implements the reflect-and-rewrite
// rule for Go's Location type).
func FromLocal(loc *time.Location, year int, month time.Month, day, hour, min, sec int) Daten {
	t := time.Date(year, month, day, hour, min, sec, 0, loc)
	return FromTime(t)
}
