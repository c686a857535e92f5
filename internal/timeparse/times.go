package timeparse

import (
	"regexp"
	"strconv"
	"strings"
)

var clockRE = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?\b`)

// ResolveTimeOfDay resolves a spoken clock time into minutes since midnight.
// Accepts 12-hour forms ("2:00 PM", "2pm") and 24-hour forms ("14:00"). A
// bare hour below 13 with no meridiem is genuinely ambiguous and returns
// false so the caller can fall back to "any time"; a bare hour of 13-23 is
// unambiguous 24-hour.
func ResolveTimeOfDay(text string) (int, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0, false
	}

	switch {
	case strings.Contains(text, "noon") && !strings.Contains(text, "afternoon"):
		return 12 * 60, true
	case strings.Contains(text, "midnight"):
		return 0, true
	}

	m := clockRE.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return 0, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, false
		}
	}

	meridiem := strings.ReplaceAll(m[3], ".", "")
	switch meridiem {
	case "am":
		if hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		// No meridiem. 0 and 13-23 can only be 24-hour readings. An
		// explicit minute part ("14:00") is also unambiguous; a bare
		// 1-12 is not.
		if hour >= 1 && hour <= 12 && m[2] == "" {
			return 0, false
		}
	}

	return hour*60 + minute, true
}
