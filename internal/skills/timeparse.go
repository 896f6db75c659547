package skills

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	clockPattern    = regexp.MustCompile(`(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b|at\s+(\d{1,2})(?::(\d{2}))?\b`)
	durationPattern = regexp.MustCompile(`in\s+(\d+)\s*(minute|min|hour|hr|day)s?\b`)
	leadTimePattern = regexp.MustCompile(`(\d+)\s*(m|min|minute)s?\s*(?:before|earlier)`)
)

// defaultHour is the clock time assumed for date-only expressions.
const defaultHour = 9

// ResolveTime turns a relative time expression into an absolute timestamp
// anchored at now. Date-only expressions default to 09:00; a resolved time
// already in the past rolls forward one day. Returns nil when the text
// contains no recognizable time expression.
func ResolveTime(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)

	if m := durationPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2] {
		case "minute", "min":
			d = time.Duration(n) * time.Minute
		case "hour", "hr":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		}
		t := now.Add(d)
		return &t
	}

	dayOffset := -1
	switch {
	case strings.Contains(lower, "tomorrow"):
		dayOffset = 1
	case strings.Contains(lower, "today"):
		dayOffset = 0
	case strings.Contains(lower, "next week"):
		dayOffset = 7
	}

	hour, minute, hasClock := parseClock(lower)
	if !hasClock && dayOffset < 0 {
		return nil
	}
	if !hasClock {
		hour, minute = defaultHour, 0
	}
	if dayOffset < 0 {
		dayOffset = 0
	}

	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()).
		AddDate(0, 0, dayOffset)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return &t
}

func parseClock(lower string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0, false
	}
	var hourStr, minStr, period string
	if m[1] != "" {
		hourStr, minStr, period = m[1], m[2], m[3]
	} else {
		hourStr, minStr = m[4], m[5]
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour > 23 {
		return 0, 0, false
	}
	if minStr != "" {
		minute, err = strconv.Atoi(minStr)
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	if period == "pm" && hour < 12 {
		hour += 12
	} else if period == "am" && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}

// ParseLeadTime extracts a "remind me N minutes before" lead time, returning
// the canonical "15m" form. Empty when no lead time is present.
func ParseLeadTime(text string) string {
	m := leadTimePattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	return m[1] + "m"
}
