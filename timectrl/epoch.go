package timectrl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epoch is ephemeris time: TDB seconds past the J2000 epoch
// (2000-01-01 12:00:00 TDB). It is the monotonic scale every ephemeris
// query and coverage window is expressed in.
type Epoch float64

// Time scale constants.
const (
	Second = 1.0
	Minute = 60 * Second
	Hour   = 60 * Minute
	Day    = 24 * Hour

	// JulianCentury is the length of a Julian century in seconds.
	JulianCentury = 36525 * Day

	// ttMinusTAI is TT - TAI. TDB is approximated by TT; the periodic
	// TDB-TT term stays below 2ms.
	ttMinusTAI = 32.184
)

// j2000Unix is the J2000 instant written as a UTC calendar label, in Unix
// seconds. Arithmetic goes through Unix seconds because time.Duration only
// spans about 292 years.
var j2000Unix = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC).Unix()

// maxDisplaySeconds bounds epochs rendered as calendar strings.
const maxDisplaySeconds = 1e13

// leapSeconds lists the UTC dates on which TAI-UTC changed, with the new
// offset. Dates before 1972 use the first entry.
var leapSeconds = []struct {
	from  time.Time
	delta float64
}{
	{utcDate(1972, 1), 10}, {utcDate(1972, 7), 11}, {utcDate(1973, 1), 12},
	{utcDate(1974, 1), 13}, {utcDate(1975, 1), 14}, {utcDate(1976, 1), 15},
	{utcDate(1977, 1), 16}, {utcDate(1978, 1), 17}, {utcDate(1979, 1), 18},
	{utcDate(1980, 1), 19}, {utcDate(1981, 7), 20}, {utcDate(1982, 7), 21},
	{utcDate(1983, 7), 22}, {utcDate(1985, 7), 23}, {utcDate(1988, 1), 24},
	{utcDate(1990, 1), 25}, {utcDate(1991, 1), 26}, {utcDate(1992, 7), 27},
	{utcDate(1993, 7), 28}, {utcDate(1994, 7), 29}, {utcDate(1996, 1), 30},
	{utcDate(1997, 7), 31}, {utcDate(1999, 1), 32}, {utcDate(2006, 1), 33},
	{utcDate(2009, 1), 34}, {utcDate(2012, 7), 35}, {utcDate(2015, 7), 36},
	{utcDate(2017, 1), 37},
}

func utcDate(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// deltaAT returns TAI-UTC in seconds for the given UTC instant.
func deltaAT(t time.Time) float64 {
	delta := leapSeconds[0].delta
	for _, ls := range leapSeconds {
		if t.Before(ls.from) {
			break
		}
		delta = ls.delta
	}
	return delta
}

// EpochFromTime converts a UTC wall-clock time into ephemeris time.
func EpochFromTime(t time.Time) Epoch {
	t = t.UTC()
	utc := float64(t.Unix()-j2000Unix) + float64(t.Nanosecond())/1e9
	return Epoch(utc + deltaAT(t) + ttMinusTAI)
}

// Time converts the epoch back into a UTC wall-clock time. Instants that
// fall inside a leap second collapse onto the following second.
func (e Epoch) Time() time.Time {
	guess := fromLabelSeconds(float64(e) - ttMinusTAI - 32)
	return fromLabelSeconds(float64(e) - ttMinusTAI - deltaAT(guess))
}

// Add returns the epoch shifted by the given number of seconds.
func (e Epoch) Add(seconds float64) Epoch { return e + Epoch(seconds) }

// Sub returns e - o in seconds.
func (e Epoch) Sub(o Epoch) float64 { return float64(e - o) }

// Centuries returns the epoch in Julian centuries past J2000.
func (e Epoch) Centuries() float64 { return float64(e) / JulianCentury }

// Days returns the epoch in days past J2000.
func (e Epoch) Days() float64 { return float64(e) / Day }

// String renders the epoch as a UTC calendar string.
func (e Epoch) String() string {
	if math.IsNaN(float64(e)) || math.Abs(float64(e)) > maxDisplaySeconds {
		return fmt.Sprintf("ET %v", float64(e))
	}
	return e.Time().Format(DisplayLayout)
}

// DisplayLayout is the layout used by Epoch.String.
const DisplayLayout = "Jan 02 2006 15:04:05.000 UTC"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"Jan 2 2006 15:04:05",
	"Jan 2 2006 15:04",
	"Jan 2 2006",
}

// ParseEpoch parses a time string into ephemeris time. Accepted forms:
//
//	2000-08-17T15:51:01Z          RFC 3339 (zone optional, UTC assumed)
//	Aug 17 2000 15:51:01 UTC-5    calendar form with optional UTC offset
//	ET 650000000.5                raw ephemeris seconds past J2000
//
// NaN and infinite ET values are rejected.
func ParseEpoch(s string) (Epoch, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("parse epoch: empty string")
	}
	if rest, ok := cutPrefixFold(raw, "ET"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return 0, fmt.Errorf("parse epoch %q: %w", s, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("parse epoch %q: not a finite time", s)
		}
		return Epoch(v), nil
	}

	body, offset, err := splitUTCOffset(raw)
	if err != nil {
		return 0, fmt.Errorf("parse epoch %q: %w", s, err)
	}
	for _, layout := range parseLayouts {
		t, err := time.Parse(layout, body)
		if err != nil {
			continue
		}
		return EpochFromTime(t.Add(-offset)), nil
	}
	return 0, fmt.Errorf("parse epoch %q: unrecognised time format", s)
}

// MustParseEpoch is ParseEpoch for constant inputs; it panics on error.
func MustParseEpoch(s string) Epoch {
	e, err := ParseEpoch(s)
	if err != nil {
		panic(err)
	}
	return e
}

// splitUTCOffset strips a trailing "UTC", "UTC+h" or "UTC-h[:mm]" suffix
// and returns the offset east of UTC.
func splitUTCOffset(s string) (string, time.Duration, error) {
	idx := strings.LastIndex(strings.ToUpper(s), "UTC")
	if idx < 0 {
		return s, 0, nil
	}
	body := strings.TrimSpace(s[:idx])
	zone := strings.TrimSpace(s[idx+3:])
	if zone == "" {
		return body, 0, nil
	}
	sign := time.Duration(1)
	switch zone[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return "", 0, fmt.Errorf("bad UTC offset %q", zone)
	}
	hh, mm, _ := strings.Cut(zone[1:], ":")
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return "", 0, fmt.Errorf("bad UTC offset %q", zone)
	}
	minutes := 0
	if mm != "" {
		if minutes, err = strconv.Atoi(mm); err != nil {
			return "", 0, fmt.Errorf("bad UTC offset %q", zone)
		}
	}
	return body, sign * (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute), nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	rest := s[len(prefix):]
	if rest != "" && rest[0] != ' ' {
		return s, false
	}
	return rest, true
}

// fromLabelSeconds converts UTC seconds past the J2000 label into a time,
// rounded to whole microseconds; float64 seconds past J2000 carry no more
// precision than that.
func fromLabelSeconds(s float64) time.Time {
	whole := math.Floor(s)
	micros := int64(math.Round((s - whole) * 1e6))
	return time.Unix(j2000Unix+int64(whole), micros*int64(time.Microsecond)).UTC()
}
