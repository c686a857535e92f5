package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a named package or team member does not exist
// for the location.
var ErrNotFound = errors.New("directory: not found")

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads directory data from Postgres.
type Store struct {
	db DB
}

// NewStore creates a read-only directory store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithDB allows injecting a mock connection for tests.
func NewStoreWithDB(db DB) *Store {
	return &Store{db: db}
}

const calendarColumns = `c.id, c.name, COALESCE(c.service_name, ''), COALESCE(c.slot_duration_minutes, 0),
       COALESCE(c.buffer_minutes, 0), COALESCE(c.timezone, ''), COALESCE(i.timezone, '')`

// GetSyncedCalendarsForService returns synced calendars offering the named
// service, matched case-insensitively.
func (s *Store) GetSyncedCalendarsForService(ctx context.Context, locationID, serviceName string) ([]CalendarResource, error) {
	return s.queryCalendars(ctx, `
		SELECT `+calendarColumns+`
		FROM calendars c
		JOIN installations i ON i.location_id = c.location_id
		WHERE c.location_id = $1 AND c.synced AND LOWER(c.service_name) = LOWER($2)
		ORDER BY c.name`, locationID, serviceName)
}

// GetMappedCalendarsForService returns calendars linked to a service through
// the manually configured service mapping table. Used as a fallback when no
// synced calendar matches.
func (s *Store) GetMappedCalendarsForService(ctx context.Context, locationID, serviceName string) ([]CalendarResource, error) {
	return s.queryCalendars(ctx, `
		SELECT `+calendarColumns+`
		FROM service_calendar_mappings m
		JOIN calendars c ON c.location_id = m.location_id AND c.id = m.calendar_id
		JOIN installations i ON i.location_id = c.location_id
		WHERE m.location_id = $1 AND LOWER(m.service_name) = LOWER($2)
		ORDER BY c.name`, locationID, serviceName)
}

// GetAllSyncedCalendars returns every synced calendar for the location.
func (s *Store) GetAllSyncedCalendars(ctx context.Context, locationID string) ([]CalendarResource, error) {
	return s.queryCalendars(ctx, `
		SELECT `+calendarColumns+`
		FROM calendars c
		JOIN installations i ON i.location_id = c.location_id
		WHERE c.location_id = $1 AND c.synced
		ORDER BY c.name`, locationID)
}

// GetDefaultCalendar returns the location's single fallback calendar, or
// ErrNotFound when none is flagged.
func (s *Store) GetDefaultCalendar(ctx context.Context, locationID string) (*CalendarResource, error) {
	cals, err := s.queryCalendars(ctx, `
		SELECT `+calendarColumns+`
		FROM calendars c
		JOIN installations i ON i.location_id = c.location_id
		WHERE c.location_id = $1 AND c.is_default
		LIMIT 1`, locationID)
	if err != nil {
		return nil, err
	}
	if len(cals) == 0 {
		return nil, fmt.Errorf("directory: default calendar for location %s: %w", locationID, ErrNotFound)
	}
	return &cals[0], nil
}

// GetCalendar returns one calendar by id.
func (s *Store) GetCalendar(ctx context.Context, locationID, calendarID string) (*CalendarResource, error) {
	cals, err := s.queryCalendars(ctx, `
		SELECT `+calendarColumns+`
		FROM calendars c
		JOIN installations i ON i.location_id = c.location_id
		WHERE c.location_id = $1 AND c.id = $2
		LIMIT 1`, locationID, calendarID)
	if err != nil {
		return nil, err
	}
	if len(cals) == 0 {
		return nil, fmt.Errorf("directory: calendar %s: %w", calendarID, ErrNotFound)
	}
	return &cals[0], nil
}

func (s *Store) queryCalendars(ctx context.Context, sql string, args ...any) ([]CalendarResource, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: query calendars: %w", err)
	}
	defer rows.Close()

	var out []CalendarResource
	for rows.Next() {
		var c CalendarResource
		var locationTZ string
		if err := rows.Scan(&c.ID, &c.Name, &c.ServiceName, &c.SlotDurationMinutes,
			&c.BufferMinutes, &c.Timezone, &locationTZ); err != nil {
			return nil, fmt.Errorf("directory: scan calendar: %w", err)
		}
		out = append(out, normalizeCalendar(c, locationTZ))
	}
	return out, rows.Err()
}

const teamMemberQuery = `
	SELECT t.id, t.name, COALESCE(t.gender, ''),
	       COALESCE(array_agg(tc.calendar_id) FILTER (WHERE tc.calendar_id IS NOT NULL), '{}')
	FROM team_members t
	LEFT JOIN team_member_calendars tc ON tc.team_member_id = t.id`

// GetTeamMembersForCalendar returns staff assigned to a calendar.
func (s *Store) GetTeamMembersForCalendar(ctx context.Context, locationID, calendarID string) ([]TeamMember, error) {
	return s.queryTeamMembers(ctx, teamMemberQuery+`
		WHERE t.location_id = $1
		GROUP BY t.id, t.name, t.gender
		HAVING bool_or(tc.calendar_id = $2)
		ORDER BY t.name`, locationID, calendarID)
}

// GetTeamMembersByGender returns staff of the requested gender.
func (s *Store) GetTeamMembersByGender(ctx context.Context, locationID, gender string) ([]TeamMember, error) {
	return s.queryTeamMembers(ctx, teamMemberQuery+`
		WHERE t.location_id = $1 AND LOWER(t.gender) = LOWER($2)
		GROUP BY t.id, t.name, t.gender
		ORDER BY t.name`, locationID, gender)
}

// GetTeamMemberByName looks a staff member up by spoken name, matched
// case-insensitively. Returns ErrNotFound when no member matches.
func (s *Store) GetTeamMemberByName(ctx context.Context, locationID, name string) (*TeamMember, error) {
	members, err := s.queryTeamMembers(ctx, teamMemberQuery+`
		WHERE t.location_id = $1 AND LOWER(t.name) = LOWER($2)
		GROUP BY t.id, t.name, t.gender
		LIMIT 1`, locationID, name)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("directory: team member %q: %w", name, ErrNotFound)
	}
	return &members[0], nil
}

// ListTeamMemberNames returns all staff names for near-match suggestions.
func (s *Store) ListTeamMemberNames(ctx context.Context, locationID string) ([]string, error) {
	return s.queryNames(ctx, `SELECT name FROM team_members WHERE location_id = $1 ORDER BY name`, locationID)
}

func (s *Store) queryTeamMembers(ctx context.Context, sql string, args ...any) ([]TeamMember, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: query team members: %w", err)
	}
	defer rows.Close()

	var out []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Gender, &m.CalendarIDs); err != nil {
			return nil, fmt.Errorf("directory: scan team member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetPackageByName returns a named multi-service package, or ErrNotFound.
func (s *Store) GetPackageByName(ctx context.Context, locationID, name string) (*ServicePackage, error) {
	var p ServicePackage
	err := s.db.QueryRow(ctx, `
		SELECT name, services, COALESCE(price_cents, 0), COALESCE(total_duration_minutes, 0)
		FROM packages
		WHERE location_id = $1 AND LOWER(name) = LOWER($2)
		LIMIT 1`, locationID, name).
		Scan(&p.Name, &p.Services, &p.PriceCents, &p.TotalDurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("directory: package %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("directory: load package: %w", err)
	}
	return &p, nil
}

// ListPackageNames returns all package names for near-match suggestions.
func (s *Store) ListPackageNames(ctx context.Context, locationID string) ([]string, error) {
	return s.queryNames(ctx, `SELECT name FROM packages WHERE location_id = $1 ORDER BY name`, locationID)
}

// GetInstallation returns the location's platform installation record.
func (s *Store) GetInstallation(ctx context.Context, locationID string) (*Installation, error) {
	var inst Installation
	err := s.db.QueryRow(ctx, `
		SELECT location_id, refresh_token, COALESCE(timezone, '')
		FROM installations WHERE location_id = $1`, locationID).
		Scan(&inst.LocationID, &inst.RefreshToken, &inst.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("directory: installation %s: %w", locationID, ErrNotFound)
		}
		return nil, fmt.Errorf("directory: load installation: %w", err)
	}
	if inst.Timezone == "" {
		inst.Timezone = defaultTimezone
	}
	return &inst, nil
}

func (s *Store) queryNames(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: query names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("directory: scan name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
