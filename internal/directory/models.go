// Package directory reads the synced installation data this service depends
// on: calendars, team members, packages, and service mappings. The directory
// is maintained by a separate sync poller; this package never writes to it.
package directory

import "time"

// CalendarResource is one remote bookable calendar (a staff member or a
// service line) as synced from the booking platform.
type CalendarResource struct {
	ID                  string
	Name                string
	ServiceName         string
	SlotDurationMinutes int
	BufferMinutes       int
	Timezone            string
}

// SlotDuration returns the calendar's slot length.
func (c CalendarResource) SlotDuration() time.Duration {
	return time.Duration(c.SlotDurationMinutes) * time.Minute
}

// Buffer returns the mandatory gap the calendar requires after an
// appointment.
func (c CalendarResource) Buffer() time.Duration {
	return time.Duration(c.BufferMinutes) * time.Minute
}

// TeamMember is a bookable staff member.
type TeamMember struct {
	ID          string
	Name        string
	Gender      string
	CalendarIDs []string
}

// ServicePackage is an ordered list of services booked consecutively on the
// same day for one customer.
type ServicePackage struct {
	Name                 string
	Services             []string
	PriceCents           int
	TotalDurationMinutes int
}

// Installation holds the per-location platform credentials and defaults.
type Installation struct {
	LocationID   string
	RefreshToken string
	Timezone     string
}

const (
	defaultSlotDurationMinutes = 60
	defaultTimezone            = "America/New_York"
)

// normalizeCalendar applies directory defaults for nullable columns. Field
// priority: the calendar's own value, then the location timezone, then the
// package default. Row values of zero/empty mean "unset" in the directory
// schema.
func normalizeCalendar(c CalendarResource, locationTZ string) CalendarResource {
	if c.SlotDurationMinutes <= 0 {
		c.SlotDurationMinutes = defaultSlotDurationMinutes
	}
	if c.BufferMinutes < 0 {
		c.BufferMinutes = 0
	}
	if c.Timezone == "" {
		c.Timezone = locationTZ
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	return c
}
