// Package planner builds same-day appointment sequences for multi-service
// packages. Given an ordered list of services it finds calendar days where
// every service fits back to back, honoring each calendar's buffer between
// consecutive steps.
package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/voicebook/internal/availability"
	"github.com/wolfman30/voicebook/internal/directory"
	"github.com/wolfman30/voicebook/internal/schedule"
	"github.com/wolfman30/voicebook/internal/timeparse"
	"github.com/wolfman30/voicebook/pkg/logging"
)

const (
	defaultSearchDays = 14
	defaultMaxPlans   = 3
	defaultLeadTime   = 15 * time.Minute
)

// CalendarResolver resolves the candidate calendars for one service name.
// Satisfied by the availability service so both paths resolve identically.
type CalendarResolver interface {
	CalendarsForService(ctx context.Context, locationID, serviceName string) ([]directory.CalendarResource, error)
}

// Scheduler reports inferred business hours for a calendar. Satisfied by
// the schedule service.
type Scheduler interface {
	Schedule(ctx context.Context, locationID string, cal directory.CalendarResource) schedule.Info
}

// Request asks for same-day plans covering Services in order.
type Request struct {
	LocationID     string
	PackageName    string // for logging only; services are already expanded
	Services       []string
	TimePreference availability.TimePreference
	RequestedDate  string // natural language or ISO, optional
	MaxResults     int    // plans to return, 0 means the default of 3
}

// Step is one service placed at a concrete time on a concrete calendar.
type Step struct {
	ServiceName  string
	Start        time.Time
	End          time.Time
	CalendarID   string
	CalendarName string
	// BufferMinutes is this step's calendar buffer, kept so callers can
	// reason about the gap before the next step.
	BufferMinutes int
}

// Plan is a full package fitted onto one day.
type Plan struct {
	Date  time.Time // midnight in the location's timezone
	Steps []Step
}

// UnschedulableServiceError means one package service has no calendar at
// all, so no plan can ever include it. The whole package fails fast.
type UnschedulableServiceError struct {
	Service string
}

func (e *UnschedulableServiceError) Error() string {
	return fmt.Sprintf("planner: service %q has no calendar configured", e.Service)
}

// Service plans package appointments.
type Service struct {
	resolver  CalendarResolver
	api       availability.SlotAPI
	schedules Scheduler
	logger    *logging.Logger
	tracer    trace.Tracer

	now        func() time.Time
	leadTime   time.Duration
	searchDays int
	maxPlans   int
}

// Option customizes a Service.
type Option func(*Service)

// WithLeadTime overrides the minimum gap between now and the first step.
func WithLeadTime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.leadTime = d
		}
	}
}

// WithSearchDays overrides how far ahead plans are searched.
func WithSearchDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.searchDays = days
		}
	}
}

// WithMaxPlans overrides the default number of previewed plans.
func WithMaxPlans(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPlans = n
		}
	}
}

func NewService(resolver CalendarResolver, api availability.SlotAPI, schedules Scheduler, logger *logging.Logger, opts ...Option) *Service {
	svc := &Service{
		resolver:   resolver,
		api:        api,
		schedules:  schedules,
		logger:     logger.Component("planner"),
		tracer:     otel.Tracer("voicebook.internal.planner"),
		now:        time.Now,
		leadTime:   defaultLeadTime,
		searchDays: defaultSearchDays,
		maxPlans:   defaultMaxPlans,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// serviceCandidates is the resolved search space for one service: its
// calendars plus that service's slots per calendar, filled in after the
// batched fetch.
type serviceCandidates struct {
	name      string
	calendars []directory.CalendarResource
}

// FindPlans returns up to MaxResults days where every service fits in
// order. The fit is greedy and never backtracks: each service takes the
// earliest slot at or after the running cursor, even when a later slot
// would have let a subsequent service fit. In practice slot grids are
// dense enough that backtracking has not been worth the complexity.
func (s *Service) FindPlans(ctx context.Context, req Request) ([]Plan, error) {
	ctx, span := s.tracer.Start(ctx, "planner.FindPlans")
	defer span.End()

	if len(req.Services) == 0 {
		return nil, fmt.Errorf("planner: package %q has no services", req.PackageName)
	}

	candidates := make([]serviceCandidates, 0, len(req.Services))
	for _, name := range req.Services {
		cals, err := s.resolver.CalendarsForService(ctx, req.LocationID, name)
		if err != nil {
			return nil, err
		}
		if len(cals) == 0 {
			return nil, &UnschedulableServiceError{Service: name}
		}
		candidates = append(candidates, serviceCandidates{name: name, calendars: cals})
	}

	loc, err := time.LoadLocation(candidates[0].calendars[0].Timezone)
	if err != nil {
		return nil, fmt.Errorf("planner: timezone %q: %w", candidates[0].calendars[0].Timezone, err)
	}

	now := s.now()
	start := midnight(now, loc)
	if req.RequestedDate != "" {
		if day, ok := timeparse.ResolveDate(req.RequestedDate, now, loc); ok {
			start = day
		}
	}
	end := start.AddDate(0, 0, s.searchDays)

	calSlots, calIndex, err := s.prefetch(ctx, req.LocationID, candidates, start, end)
	if err != nil {
		return nil, err
	}

	maxPlans := req.MaxResults
	if maxPlans <= 0 {
		maxPlans = s.maxPlans
	}

	var plans []Plan
	for day := start; day.Before(end) && len(plans) < maxPlans; day = day.AddDate(0, 0, 1) {
		if !s.anyCalendarOpen(ctx, req.LocationID, calIndex, day.Weekday()) {
			continue
		}
		plan, ok := s.fitDay(day, candidates, calSlots, calIndex, req.TimePreference, now)
		if !ok {
			continue
		}
		plans = append(plans, plan)
	}

	s.logger.Info("package planning complete",
		"package", req.PackageName,
		"services", len(req.Services),
		"plans", len(plans))
	return plans, nil
}

// prefetch fetches each distinct calendar exactly once for the whole
// window, concurrently. A calendar shared by two services is fetched once
// and both draw from the same slot list.
func (s *Service) prefetch(ctx context.Context, locationID string, candidates []serviceCandidates, start, end time.Time) (map[string][]availability.Slot, map[string]directory.CalendarResource, error) {
	calIndex := make(map[string]directory.CalendarResource)
	for _, cand := range candidates {
		for _, cal := range cand.calendars {
			calIndex[cal.ID] = cal
		}
	}

	ids := make([]string, 0, len(calIndex))
	for id := range calIndex {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([][]availability.Slot, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, cal directory.CalendarResource) {
			defer wg.Done()
			results[i], errs[i] = s.fetchCalendar(ctx, locationID, cal, start, end)
		}(i, calIndex[id])
	}
	wg.Wait()

	calSlots := make(map[string][]availability.Slot, len(ids))
	for i, id := range ids {
		if errs[i] != nil {
			// A dead calendar mid-package would produce misleading
			// "nothing fits" answers, so the whole plan search fails.
			return nil, nil, fmt.Errorf("planner: calendar %s: %w", id, errs[i])
		}
		slots := results[i]
		sort.Slice(slots, func(a, b int) bool { return slots[a].Start.Before(slots[b].Start) })
		calSlots[id] = slots
	}
	return calSlots, calIndex, nil
}

func (s *Service) fetchCalendar(ctx context.Context, locationID string, cal directory.CalendarResource, start, end time.Time) ([]availability.Slot, error) {
	loc, err := time.LoadLocation(cal.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar %s timezone %q: %w", cal.ID, cal.Timezone, err)
	}
	byDate, err := s.api.GetFreeSlots(ctx, locationID, cal.ID, start, end, loc)
	if err != nil {
		return nil, err
	}
	var slots []availability.Slot
	for _, starts := range byDate {
		for _, st := range starts {
			slots = append(slots, availability.Slot{
				Start:        st,
				End:          st.Add(cal.SlotDuration()),
				CalendarID:   cal.ID,
				CalendarName: cal.Name,
			})
		}
	}
	return availability.FilterFuture(slots, s.now(), s.leadTime), nil
}

// anyCalendarOpen skips days where every involved calendar is closed per
// the inferred schedule. Advisory only: a wrong inference costs one wasted
// day scan over already-fetched slots, never a missed plan for a day that
// actually has slots, because fitDay consults the real slot data.
func (s *Service) anyCalendarOpen(ctx context.Context, locationID string, calIndex map[string]directory.CalendarResource, wd time.Weekday) bool {
	if s.schedules == nil {
		return true
	}
	for _, cal := range calIndex {
		if s.schedules.Schedule(ctx, locationID, cal).Open(wd) {
			return true
		}
	}
	return false
}

// fitDay folds the service list over one day, threading a not-before
// cursor. Each service takes its earliest qualifying slot at or after the
// cursor; the cursor then advances to that slot's end plus the slot
// calendar's buffer, so a slot starting exactly at the cursor qualifies.
func (s *Service) fitDay(day time.Time, candidates []serviceCandidates, calSlots map[string][]availability.Slot, calIndex map[string]directory.CalendarResource, pref availability.TimePreference, now time.Time) (Plan, bool) {
	cursor := day
	if floor := now.Add(s.leadTime); floor.After(cursor) {
		cursor = floor
	}
	nextDay := day.AddDate(0, 0, 1)

	steps := make([]Step, 0, len(candidates))
	for _, cand := range candidates {
		best, ok := earliestSlot(cand.calendars, calSlots, cursor, nextDay, pref)
		if !ok {
			return Plan{}, false
		}
		buffer := calIndex[best.CalendarID].BufferMinutes
		steps = append(steps, Step{
			ServiceName:   cand.name,
			Start:         best.Start,
			End:           best.End,
			CalendarID:    best.CalendarID,
			CalendarName:  best.CalendarName,
			BufferMinutes: buffer,
		})
		cursor = best.End.Add(calIndex[best.CalendarID].Buffer())
	}
	return Plan{Date: day, Steps: steps}, true
}

// earliestSlot picks the earliest slot across a service's calendars that
// starts within [cursor, dayEnd) and matches the part-of-day preference.
func earliestSlot(calendars []directory.CalendarResource, calSlots map[string][]availability.Slot, cursor, dayEnd time.Time, pref availability.TimePreference) (availability.Slot, bool) {
	var best availability.Slot
	found := false
	for _, cal := range calendars {
		for _, slot := range calSlots[cal.ID] {
			if slot.Start.Before(cursor) || !slot.Start.Before(dayEnd) {
				continue
			}
			if !availability.MatchesPreference(slot.Start, pref) {
				continue
			}
			if !found || slot.Start.Before(best.Start) {
				best = slot
				found = true
			}
			break // slots are sorted; first qualifying one per calendar
		}
	}
	return best, found
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
