package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// ParseError reports a value that could not be interpreted as a timestamp
type ParseError struct {
	Raw    string
	reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as a timestamp: %s", e.Raw, e.reason)
}

// layouts are tried in order before falling back to the free-form parser.
// Fractional seconds are accepted after the seconds field even when the
// layout does not mention them.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"20060102",
	time.RFC1123Z,
	time.RFC1123,
	time.RubyDate,
	"Mon Jan 2 15:04:05 2006 -0700",
	time.ANSIC,
}

// quoteReplacer strips quoting left behind by spreadsheet exports
var quoteReplacer = strings.NewReplacer(`"`, "", "'", "", "`", "")

// ParseTimestamp parses a timestamp in any of the supported layouts, a Unix
// epoch (seconds or milliseconds) or free-form text. The result is in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(quoteReplacer.Replace(raw))
	if s == "" {
		return time.Time{}, &ParseError{Raw: raw, reason: "empty value"}
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := parseEpoch(v)
		if err != nil {
			return time.Time{}, &ParseError{Raw: raw, reason: err.Error()}
		}
		return t, nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		DefaultTimezone:     time.UTC,
		PreferredDateSource: dps.CurrentPeriod,
	}
	parsed, err := parser.Parse(cfg, s)
	if err != nil {
		return time.Time{}, &ParseError{Raw: raw, reason: err.Error()}
	}
	if parsed.IsZero() {
		return time.Time{}, &ParseError{Raw: raw, reason: "no date found"}
	}
	return parsed.Time.UTC(), nil
}

// ParseDate parses a timestamp and truncates it to the start of its UTC day
func ParseDate(raw string) (time.Time, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

// StartOfDay truncates t to midnight UTC of its calendar day
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// minEpochSeconds rejects small numbers (row counters, durations) that would
// otherwise land in 1973 or earlier
const minEpochSeconds = 1e8

// parseEpoch accepts Unix seconds, or milliseconds for values past year 33658
func parseEpoch(v float64) (time.Time, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, fmt.Errorf("not a finite number")
	}
	if v < minEpochSeconds {
		return time.Time{}, fmt.Errorf("number %g is too small for a Unix epoch", v)
	}
	if v >= 1e12 {
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
