package availability

import (
	"errors"
	"fmt"
)

// ErrNoCalendarConfigured means the location has no calendar that could
// serve the request. A configuration problem, not a transient one.
var ErrNoCalendarConfigured = errors.New("availability: no calendar configured")

// NotFoundError is an unknown spoken name (staff or package), carrying a
// near-match suggestion when one exists.
type NotFoundError struct {
	Kind       string // "staff" or "package"
	Name       string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("availability: unknown %s %q (closest match %q)", e.Kind, e.Name, e.Suggestion)
	}
	return fmt.Sprintf("availability: unknown %s %q", e.Kind, e.Name)
}

// NoStaffOfGenderError means a gender preference matched nobody. Surfaced
// explicitly rather than silently ignoring the filter.
type NoStaffOfGenderError struct {
	Gender string
}

func (e *NoStaffOfGenderError) Error() string {
	return fmt.Sprintf("availability: no %s staff member available", e.Gender)
}
