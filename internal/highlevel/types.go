package highlevel

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// apiVersion is the header value HighLevel requires on every call.
const apiVersion = "2021-04-15"

var dateKeyRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// daySlots is the per-date payload inside a free-slots response. The API
// returns either a bare array of ISO timestamps or an object wrapping them
// in a "slots" field, depending on endpoint vintage. The ambiguity is
// resolved here, at the fetch boundary, and never leaks further.
type daySlots struct {
	Slots []string `json:"slots"`
}

func (d *daySlots) UnmarshalJSON(data []byte) error {
	var bare []string
	if err := json.Unmarshal(data, &bare); err == nil {
		d.Slots = bare
		return nil
	}
	type wrapped daySlots
	var w wrapped
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("free-slots day entry is neither array nor object: %w", err)
	}
	d.Slots = w.Slots
	return nil
}

// parseFreeSlots decodes a free-slots response body into start times keyed
// by date. Envelope keys that are not dates (traceId and friends) are
// skipped. Timestamps without an offset are read in the calendar's location.
func parseFreeSlots(body []byte, loc *time.Location) (map[string][]time.Time, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode free-slots envelope: %w", err)
	}

	out := make(map[string][]time.Time)
	for key, raw := range envelope {
		if !dateKeyRE.MatchString(key) {
			continue
		}
		var day daySlots
		if err := json.Unmarshal(raw, &day); err != nil {
			return nil, fmt.Errorf("decode slots for %s: %w", key, err)
		}
		starts := make([]time.Time, 0, len(day.Slots))
		for _, s := range day.Slots {
			t, err := parseSlotTime(s, loc)
			if err != nil {
				continue
			}
			starts = append(starts, t)
		}
		if len(starts) == 0 {
			continue
		}
		sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
		out[key] = starts
	}
	return out, nil
}

// parseSlotTime reads one slot timestamp. Handles RFC3339 with offset, and
// naive datetimes which are taken as calendar-local.
func parseSlotTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse slot time %q", raw)
}

// Contact identifies a customer record in the platform CRM.
type Contact struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// AppointmentRequest creates one appointment on a calendar.
type AppointmentRequest struct {
	CalendarID string
	ContactID  string
	StartTime  time.Time
	EndTime    time.Time
	Title      string
}

// APIError is a non-2xx platform response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("highlevel: status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth describing to the caller
// as "try again" rather than a configuration problem.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
