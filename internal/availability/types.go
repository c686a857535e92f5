// Package availability finds bookable time slots. It resolves which
// calendars a request should search, fans fetches out across them, merges
// and filters the results, and widens the search window until something
// qualifies.
package availability

import (
	"time"

	"github.com/wolfman30/voicebook/internal/directory"
)

// TimePreference buckets a caller's part-of-day preference.
type TimePreference string

const (
	PrefAny       TimePreference = "any"
	PrefMorning   TimePreference = "morning"
	PrefAfternoon TimePreference = "afternoon"
)

// Request is one availability query from the voice agent. All free-text
// fields arrive as the caller spoke them; resolution happens here.
type Request struct {
	LocationID       string
	ServiceName      string
	TimePreference   TimePreference
	RequestedDate    string    // natural language or ISO, optional
	RequestedTime    string    // e.g. "2:30 pm", optional
	StaffName        string    // optional
	GenderPreference string    // "male" or "female", optional
	StartAfter       time.Time // lower bound for chained multi-service search
}

// Slot is a single bookable start time on one calendar, with the duration
// implied by that calendar's slot length. Ephemeral: lives only for one
// request.
type Slot struct {
	Start        time.Time
	End          time.Time
	CalendarID   string
	CalendarName string
	StaffID      string
	StaffName    string
}

// target is one calendar to fetch, optionally attributed to a staff member
// when a gender or staff filter expanded the search per person.
type target struct {
	cal       directory.CalendarResource
	staffID   string
	staffName string
}

// MatchesPreference applies the part-of-day bucket. The noon boundary is
// asymmetric on purpose: a slot at exactly 12:00 belongs to neither bucket,
// so it can never be offered twice across a morning and an afternoon query.
func MatchesPreference(t time.Time, pref TimePreference) bool {
	switch pref {
	case PrefMorning:
		return t.Hour() < 12
	case PrefAfternoon:
		return t.Hour() > 12 || (t.Hour() == 12 && t.Minute() >= 15)
	default:
		return true
	}
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
