package core

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"
)

// epochSecondsCutoff separates epoch seconds from epoch milliseconds.
// Millisecond timestamps after March 1973 are above it.
const epochSecondsCutoff = 1e11

var humanizedPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\s*@\s*(\d{1,2})h\s*(\d{1,2})m\s*(\d{1,2})s(?:\s*(\d{1,3})ms)?$`)

// displayLayouts are the long-form dates written by older clients.
var displayLayouts = []string{
	"January 2, 2006 3:04pm",
	"January 2, 2006 3:04 pm",
	"January 2, 2006 3:04PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 15:04",
}

// ParseSendDate normalizes a raw send_date value to epoch milliseconds.
// Accepts JSON numbers, numeric strings, humanized strings
// ("2024-1-15@13h45m30s" with optional "123ms"), long display dates and
// anything dateparse understands.
func ParseSendDate(raw json.RawMessage) (int64, bool) {
	res := gjson.ParseBytes(raw)
	switch res.Type {
	case gjson.Number:
		return normalizeEpoch(res.Float()), true
	case gjson.String:
		return ParseDateString(res.String())
	default:
		return 0, false
	}
}

// ParseDateString normalizes a textual timestamp to epoch milliseconds.
func ParseDateString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return normalizeEpoch(f), true
	}
	if t, ok := parseHumanized(s); ok {
		return t.UnixMilli(), true
	}
	for _, layout := range displayLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UnixMilli(), true
		}
	}
	t, err := dateparse.ParseIn(s, time.Local)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

func normalizeEpoch(f float64) int64 {
	if math.Abs(f) < epochSecondsCutoff {
		return int64(math.Round(f * 1000))
	}
	return int64(math.Round(f))
}

func parseHumanized(s string) (time.Time, bool) {
	m := humanizedPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	parts := make([]int, 7)
	for i := 1; i <= 7; i++ {
		if m[i] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i])
		if err != nil {
			return time.Time{}, false
		}
		parts[i-1] = n
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6]*int(time.Millisecond), time.Local), true
}

// FormatHumanized renders t in the humanized form accepted by ParseDateString.
func FormatHumanized(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d@%dh%dm%ds%dms",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
}
