package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/voicebook/internal/directory"
)

// Directory is the slice of the directory store the search needs. Satisfied
// by *directory.Store.
type Directory interface {
	GetSyncedCalendarsForService(ctx context.Context, locationID, serviceName string) ([]directory.CalendarResource, error)
	GetMappedCalendarsForService(ctx context.Context, locationID, serviceName string) ([]directory.CalendarResource, error)
	GetAllSyncedCalendars(ctx context.Context, locationID string) ([]directory.CalendarResource, error)
	GetDefaultCalendar(ctx context.Context, locationID string) (*directory.CalendarResource, error)
	GetCalendar(ctx context.Context, locationID, calendarID string) (*directory.CalendarResource, error)
	GetTeamMemberByName(ctx context.Context, locationID, name string) (*directory.TeamMember, error)
	GetTeamMembersByGender(ctx context.Context, locationID, gender string) ([]directory.TeamMember, error)
	ListTeamMemberNames(ctx context.Context, locationID string) ([]string, error)
}

// resolveTargets picks the calendars a request should search.
//
// Precedence: staff+service intersects the staff member's calendars with the
// service's; staff alone uses the staff member's calendars; service alone
// uses synced calendars with the manual service mapping as fallback; neither
// uses every synced calendar, then the location default. A gender preference
// re-expands the final list into one target per matching staff member so
// each person's slots are fetched and attributed individually.
func (s *Service) resolveTargets(ctx context.Context, req Request) ([]target, error) {
	var (
		cals      []directory.CalendarResource
		staffID   string
		staffName string
	)

	switch {
	case req.StaffName != "":
		member, err := s.dir.GetTeamMemberByName(ctx, req.LocationID, req.StaffName)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return nil, s.staffNotFound(ctx, req.LocationID, req.StaffName)
			}
			return nil, fmt.Errorf("availability: look up staff: %w", err)
		}
		staffID, staffName = member.ID, member.Name

		for _, calID := range member.CalendarIDs {
			cal, err := s.dir.GetCalendar(ctx, req.LocationID, calID)
			if err != nil {
				if errors.Is(err, directory.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("availability: load staff calendar: %w", err)
			}
			cals = append(cals, *cal)
		}

		if req.ServiceName != "" {
			serviceCals, err := s.serviceCalendars(ctx, req.LocationID, req.ServiceName)
			if err != nil {
				return nil, err
			}
			cals = intersectCalendars(cals, serviceCals)
		}

	case req.ServiceName != "":
		var err error
		cals, err = s.serviceCalendars(ctx, req.LocationID, req.ServiceName)
		if err != nil {
			return nil, err
		}

	default:
		var err error
		cals, err = s.dir.GetAllSyncedCalendars(ctx, req.LocationID)
		if err != nil {
			return nil, fmt.Errorf("availability: load synced calendars: %w", err)
		}
	}

	if len(cals) == 0 {
		def, err := s.dir.GetDefaultCalendar(ctx, req.LocationID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return nil, ErrNoCalendarConfigured
			}
			return nil, fmt.Errorf("availability: load default calendar: %w", err)
		}
		cals = []directory.CalendarResource{*def}
	}

	if req.GenderPreference != "" && req.StaffName == "" {
		return s.expandByGender(ctx, req, cals)
	}

	targets := make([]target, 0, len(cals))
	for _, cal := range cals {
		targets = append(targets, target{cal: cal, staffID: staffID, staffName: staffName})
	}
	return targets, nil
}

// CalendarsForService is the service-only resolution step, exported for the
// package planner which resolves each package service the same way.
func (s *Service) CalendarsForService(ctx context.Context, locationID, serviceName string) ([]directory.CalendarResource, error) {
	return s.serviceCalendars(ctx, locationID, serviceName)
}

// serviceCalendars returns synced calendars for a service, falling back to
// the manually configured service mapping when sync has nothing.
func (s *Service) serviceCalendars(ctx context.Context, locationID, serviceName string) ([]directory.CalendarResource, error) {
	cals, err := s.dir.GetSyncedCalendarsForService(ctx, locationID, serviceName)
	if err != nil {
		return nil, fmt.Errorf("availability: load service calendars: %w", err)
	}
	if len(cals) > 0 {
		return cals, nil
	}
	cals, err = s.dir.GetMappedCalendarsForService(ctx, locationID, serviceName)
	if err != nil {
		return nil, fmt.Errorf("availability: load mapped calendars: %w", err)
	}
	return cals, nil
}

// expandByGender turns the calendar list into one target per staff member of
// the requested gender, so slots can be attributed per person.
func (s *Service) expandByGender(ctx context.Context, req Request, cals []directory.CalendarResource) ([]target, error) {
	members, err := s.dir.GetTeamMembersByGender(ctx, req.LocationID, req.GenderPreference)
	if err != nil {
		return nil, fmt.Errorf("availability: load staff by gender: %w", err)
	}
	if len(members) == 0 {
		return nil, &NoStaffOfGenderError{Gender: req.GenderPreference}
	}

	byID := make(map[string]directory.CalendarResource, len(cals))
	for _, cal := range cals {
		byID[cal.ID] = cal
	}

	var targets []target
	for _, member := range members {
		for _, calID := range member.CalendarIDs {
			cal, ok := byID[calID]
			if !ok {
				continue
			}
			targets = append(targets, target{cal: cal, staffID: member.ID, staffName: member.Name})
		}
	}
	if len(targets) == 0 {
		return nil, &NoStaffOfGenderError{Gender: req.GenderPreference}
	}
	return targets, nil
}

func (s *Service) staffNotFound(ctx context.Context, locationID, name string) error {
	notFound := &NotFoundError{Kind: "staff", Name: name}
	if names, err := s.dir.ListTeamMemberNames(ctx, locationID); err == nil {
		notFound.Suggestion = directory.Suggest(name, names)
	}
	return notFound
}

func intersectCalendars(a, b []directory.CalendarResource) []directory.CalendarResource {
	inB := make(map[string]struct{}, len(b))
	for _, cal := range b {
		inB[cal.ID] = struct{}{}
	}
	var out []directory.CalendarResource
	for _, cal := range a {
		if _, ok := inB[cal.ID]; ok {
			out = append(out, cal)
		}
	}
	return out
}
