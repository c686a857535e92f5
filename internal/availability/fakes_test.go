package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/voicebook/internal/directory"
)

// fakeDirectory serves canned directory data.
type fakeDirectory struct {
	syncedByService map[string][]directory.CalendarResource
	mappedByService map[string][]directory.CalendarResource
	allSynced       []directory.CalendarResource
	defaultCal      *directory.CalendarResource
	members         []directory.TeamMember
}

func (f *fakeDirectory) GetSyncedCalendarsForService(ctx context.Context, locationID, serviceName string) ([]directory.CalendarResource, error) {
	return f.syncedByService[serviceName], nil
}

func (f *fakeDirectory) GetMappedCalendarsForService(ctx context.Context, locationID, serviceName string) ([]directory.CalendarResource, error) {
	return f.mappedByService[serviceName], nil
}

func (f *fakeDirectory) GetAllSyncedCalendars(ctx context.Context, locationID string) ([]directory.CalendarResource, error) {
	return f.allSynced, nil
}

func (f *fakeDirectory) GetDefaultCalendar(ctx context.Context, locationID string) (*directory.CalendarResource, error) {
	if f.defaultCal == nil {
		return nil, fmt.Errorf("default calendar: %w", directory.ErrNotFound)
	}
	return f.defaultCal, nil
}

func (f *fakeDirectory) GetCalendar(ctx context.Context, locationID, calendarID string) (*directory.CalendarResource, error) {
	for _, cals := range f.syncedByService {
		for _, cal := range cals {
			if cal.ID == calendarID {
				return &cal, nil
			}
		}
	}
	for _, cal := range f.allSynced {
		if cal.ID == calendarID {
			return &cal, nil
		}
	}
	return nil, fmt.Errorf("calendar %s: %w", calendarID, directory.ErrNotFound)
}

func (f *fakeDirectory) GetTeamMemberByName(ctx context.Context, locationID, name string) (*directory.TeamMember, error) {
	for _, m := range f.members {
		if m.Name == name {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("team member %q: %w", name, directory.ErrNotFound)
}

func (f *fakeDirectory) GetTeamMembersByGender(ctx context.Context, locationID, gender string) ([]directory.TeamMember, error) {
	var out []directory.TeamMember
	for _, m := range f.members {
		if m.Gender == gender {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListTeamMemberNames(ctx context.Context, locationID string) ([]string, error) {
	names := make([]string, 0, len(f.members))
	for _, m := range f.members {
		names = append(names, m.Name)
	}
	return names, nil
}

// fakeSlotAPI serves canned free slots per calendar, restricted to the
// requested window, and records every fetch.
type fakeSlotAPI struct {
	slots map[string][]time.Time // calendarID -> start times
	errs  map[string]error
	calls []fetchCall
}

type fetchCall struct {
	calendarID string
	start      time.Time
	end        time.Time
}

func (f *fakeSlotAPI) GetFreeSlots(ctx context.Context, locationID, calendarID string, start, end time.Time, loc *time.Location) (map[string][]time.Time, error) {
	f.calls = append(f.calls, fetchCall{calendarID: calendarID, start: start, end: end})
	if err := f.errs[calendarID]; err != nil {
		return nil, err
	}
	out := make(map[string][]time.Time)
	for _, t := range f.slots[calendarID] {
		if t.Before(start) || !t.Before(end) {
			continue
		}
		key := t.In(loc).Format("2006-01-02")
		out[key] = append(out[key], t.In(loc))
	}
	return out, nil
}

func (f *fakeSlotAPI) windowCalls(calendarID string) int {
	n := 0
	for _, c := range f.calls {
		if c.calendarID == calendarID {
			n++
		}
	}
	return n
}
