package clock

import (
	"regexp"
	"strconv"
	"time"
)

var (
	reYYYYMMDD        = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reYYYYMMDDWithHMS = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[ T](\d{2}):(\d{2}):(\d{2}))?$`)
)

// ParseYYYYMMDD parses a strict "YYYY-MM-DD" string. Hour/minute/second
// are not part of this format; the result is normalized to local noon so
// that a date-only value never lands on a DST transition and shifts to
// the wrong calendar day when later converted to a Daten. On any
// mismatch against the anchored pattern, it returns clk.Now() unchanged
// — callers compare against the input to detect the fallback.
func ParseYYYYMMDD(s string, loc *time.Location, clk Clock) time.Time {
	m := reYYYYMMDD.FindStringSubmatch(s)
	if m == nil {
		return clk.Now()
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return time.Date(year, time.Month(month), day, 12, 0, 0, 0, loc)
}

// ParseYYYYMMDDWithOptionalHMS parses "YYYY-MM-DD" or "YYYY-MM-DD HH:MM:SS"
// (space or 'T' separator). When the time-of-day is absent it normalizes
// to local noon, same as ParseYYYYMMDD. Any string not matching the
// anchored pattern falls back to clk.Now().
func ParseYYYYMMDDWithOptionalHMS(s string, loc *time.Location, clk Clock) time.Time {
	m := reYYYYMMDDWithHMS.FindStringSubmatch(s)
	if m == nil {
		return clk.Now()
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if m[4] == "" {
		return time.Date(year, time.Month(month), day, 12, 0, 0, 0, loc)
	}
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
}

// wwivnetTimeLayout is the "Www Mmm dd hh:mm:ss yyyy" format used in
// packet payload date lines (spec §6).
const wwivnetTimeLayout = "Mon Jan _2 15:04:05 2006"

// FormatWWIVnetTime renders t (assumed already in the desired zone) using
// the wwivnet packet date-line format.
func FormatWWIVnetTime(t time.Time) string {
	return t.Format(wwivnetTimeLayout)
}

// ParseWWIVnetTime parses the wwivnet packet date-line format in loc.
func ParseWWIVnetTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(wwivnetTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
