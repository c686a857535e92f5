// Package schedule infers which weekdays a calendar is genuinely open by
// sampling one reference week of free-slot data. The inference is advisory:
// it trims the planner's candidate days, but the platform still enforces
// real availability at booking time.
package schedule

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wolfman30/voicebook/internal/directory"
	"github.com/wolfman30/voicebook/pkg/logging"
)

// DayWindow is the observed first and last slot start for a weekday, in
// minutes since midnight.
type DayWindow struct {
	Earliest int
	Latest   int
}

// Info describes a calendar's empirically open weekdays.
type Info struct {
	OpenWeekdays map[time.Weekday]DayWindow
}

// Open reports whether the calendar showed any slot on the weekday.
func (i Info) Open(wd time.Weekday) bool {
	_, ok := i.OpenWeekdays[wd]
	return ok
}

// DefaultInfo is the Monday-Friday 9-to-5 fallback used when the sample
// fetch fails. Open-day inference must never block a booking.
func DefaultInfo() Info {
	open := make(map[time.Weekday]DayWindow, 5)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		open[wd] = DayWindow{Earliest: 9 * 60, Latest: 17 * 60}
	}
	return Info{OpenWeekdays: open}
}

// SlotSource fetches free slots for one calendar. Satisfied by the
// highlevel client.
type SlotSource interface {
	GetFreeSlots(ctx context.Context, locationID, calendarID string, start, end time.Time, loc *time.Location) (map[string][]time.Time, error)
}

// Service infers and caches per-calendar schedules.
type Service struct {
	api    SlotSource
	cache  *gocache.Cache
	logger *logging.Logger
	now    func() time.Time
}

// New creates a schedule service with the given cache TTL.
func New(api SlotSource, ttl time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		api:    api,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger.Component("schedule"),
		now:    time.Now,
	}
}

// Schedule returns the calendar's open-weekday info, from cache when fresh.
// Sampling failures degrade to DefaultInfo and are not cached, so the next
// call retries.
func (s *Service) Schedule(ctx context.Context, locationID string, cal directory.CalendarResource) Info {
	if cached, ok := s.cache.Get(cal.ID); ok {
		return cached.(Info)
	}

	loc, err := time.LoadLocation(cal.Timezone)
	if err != nil {
		loc = time.UTC
	}
	info, err := s.sample(ctx, locationID, cal.ID, loc)
	if err != nil {
		s.logger.Warn("schedule sample failed, using default week",
			"calendar_id", cal.ID, "error", err)
		return DefaultInfo()
	}

	s.cache.SetDefault(cal.ID, info)
	return info
}

// sample fetches the next Monday-through-Sunday window and records, per
// weekday with at least one slot, the first and last start time seen.
func (s *Service) sample(ctx context.Context, locationID, calendarID string, loc *time.Location) (Info, error) {
	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	daysToMonday := int((time.Monday - today.Weekday() + 7) % 7)
	if daysToMonday == 0 {
		daysToMonday = 7
	}
	monday := today.AddDate(0, 0, daysToMonday)

	byDate, err := s.api.GetFreeSlots(ctx, locationID, calendarID, monday, monday.AddDate(0, 0, 7), loc)
	if err != nil {
		return Info{}, err
	}

	dates := make([]string, 0, len(byDate))
	for dateStr := range byDate {
		dates = append(dates, dateStr)
	}
	sort.Strings(dates)

	open := make(map[time.Weekday]DayWindow)
	for _, dateStr := range dates {
		starts := byDate[dateStr]
		if len(starts) == 0 {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", dateStr, loc)
		if err != nil {
			continue
		}
		wd := day.Weekday()
		if _, seen := open[wd]; seen {
			// First occurrence wins when a longer window repeats a
			// weekday.
			continue
		}
		first := starts[0]
		last := starts[len(starts)-1]
		open[wd] = DayWindow{
			Earliest: first.Hour()*60 + first.Minute(),
			Latest:   last.Hour()*60 + last.Minute(),
		}
	}
	return Info{OpenWeekdays: open}, nil
}
