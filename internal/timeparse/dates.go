// Package timeparse resolves the natural-language date and time expressions a
// voice caller uses ("tomorrow", "next Friday", "2:30 pm") into concrete
// values. All resolution is relative to an explicit reference clock and
// timezone; nothing in this package reads process-global time state.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is an inclusive date window. To.IsZero() means open-ended
// ("next week onward").
type DateRange struct {
	From time.Time
	To   time.Time
}

// Single reports whether the range covers exactly one day.
func (r DateRange) Single() bool {
	return !r.To.IsZero() && r.From.Equal(r.To)
}

// Contains reports whether day (midnight in the same location) falls inside
// the range.
func (r DateRange) Contains(day time.Time) bool {
	if day.Before(r.From) {
		return false
	}
	if r.To.IsZero() {
		return true
	}
	return !day.After(r.To)
}

var (
	isoDateRE  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayRE = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	weekdayRE  = regexp.MustCompile(`\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday|sun|mon|tue|tues|wed|thu|thur|thurs|fri|sat)\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdaysByName = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ResolveDate resolves a spoken or typed date expression into a concrete
// calendar date (midnight in loc). The second return is false when the text
// does not contain a recognizable date; callers treat that as "no date
// filter", never as an error. For multi-day expressions ("this weekend",
// "next week") the first day of the range is returned; use ResolveDateRange
// when the full window matters.
func ResolveDate(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	r, ok := ResolveDateRange(text, now, loc)
	if !ok {
		return time.Time{}, false
	}
	return r.From, true
}

// ResolveDateRange resolves a date expression into an inclusive window.
func ResolveDateRange(text string, now time.Time, loc *time.Location) (DateRange, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return DateRange{}, false
	}
	now = now.In(loc)
	today := midnight(now)

	if m := isoDateRE.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		return singleDay(d), true
	}

	if strings.Contains(text, "today") {
		return singleDay(today), true
	}
	if strings.Contains(text, "tomorrow") {
		return singleDay(today.AddDate(0, 0, 1)), true
	}

	if strings.Contains(text, "weekend") {
		// "This weekend" means the upcoming Sat+Sun. On a Sunday the
		// weekend is already down to its last day.
		if today.Weekday() == time.Sunday {
			return singleDay(today), true
		}
		sat := today.AddDate(0, 0, int((time.Saturday-today.Weekday()+7)%7))
		return DateRange{From: sat, To: sat.AddDate(0, 0, 1)}, true
	}

	if strings.Contains(text, "next week") {
		monday := nextOccurrence(today, time.Monday)
		return DateRange{From: monday}, true
	}

	if m := weekdayRE.FindStringSubmatch(text); m != nil {
		wd := weekdaysByName[m[1]]
		d := nextOccurrence(today, wd)
		// "Next Friday" skips the nearer Friday; a bare "Friday" means
		// the nearer one (today excluded).
		if strings.Contains(text, "next "+m[1]) {
			d = d.AddDate(0, 0, 7)
		}
		return singleDay(d), true
	}

	if m := monthDayRE.FindStringSubmatch(text); m != nil {
		month := monthsByName[m[1]]
		day, _ := strconv.Atoi(m[2])
		d := time.Date(today.Year(), month, day, 0, 0, 0, 0, loc)
		if d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return singleDay(d), true
	}

	return DateRange{}, false
}

// nextOccurrence returns the next calendar date with the given weekday,
// always strictly after today.
func nextOccurrence(today time.Time, wd time.Weekday) time.Time {
	days := int((wd - today.Weekday() + 7) % 7)
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

func singleDay(d time.Time) DateRange {
	return DateRange{From: d, To: d}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
