package directory

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewStoreWithDB(mock), mock
}

func calendarRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "service_name", "slot_duration_minutes", "buffer_minutes", "timezone", "location_tz"})
}

func TestGetSyncedCalendarsForServiceAppliesDefaults(t *testing.T) {
	store, mock := newMockStore(t)

	rows := calendarRows().
		AddRow("cal-1", "Swedish Massage", "Swedish Massage", 0, 0, "", "America/Chicago").
		AddRow("cal-2", "Swedish Massage B", "Swedish Massage", 90, 15, "America/Denver", "America/Chicago")
	mock.ExpectQuery("SELECT .* FROM calendars").WithArgs("loc-1", "Swedish Massage").WillReturnRows(rows)

	cals, err := store.GetSyncedCalendarsForService(context.Background(), "loc-1", "Swedish Massage")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(cals) != 2 {
		t.Fatalf("expected 2 calendars, got %d", len(cals))
	}
	if cals[0].SlotDurationMinutes != 60 {
		t.Fatalf("expected default slot duration, got %d", cals[0].SlotDurationMinutes)
	}
	if cals[0].Timezone != "America/Chicago" {
		t.Fatalf("expected location timezone fallback, got %s", cals[0].Timezone)
	}
	if cals[1].SlotDurationMinutes != 90 || cals[1].Timezone != "America/Denver" {
		t.Fatalf("expected explicit values preserved, got %+v", cals[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetDefaultCalendarNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM calendars").WithArgs("loc-1").WillReturnRows(calendarRows())

	_, err := store.GetDefaultCalendar(context.Background(), "loc-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetPackageByName(t *testing.T) {
	store, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{"name", "services", "price_cents", "total_duration_minutes"}).
		AddRow("Deluxe Spa Day", []string{"Swedish Massage", "Glow Facial"}, 25000, 135)
	mock.ExpectQuery("SELECT name, services").WithArgs("loc-1", "deluxe spa day").WillReturnRows(rows)

	p, err := store.GetPackageByName(context.Background(), "loc-1", "deluxe spa day")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if p.Name != "Deluxe Spa Day" || len(p.Services) != 2 {
		t.Fatalf("unexpected package: %+v", p)
	}
}

func TestGetPackageByNameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT name, services").WithArgs("loc-1", "Deluxe").
		WillReturnRows(pgxmock.NewRows([]string{"name", "services", "price_cents", "total_duration_minutes"}))

	_, err := store.GetPackageByName(context.Background(), "loc-1", "Deluxe")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTeamMembersByGender(t *testing.T) {
	store, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{"id", "name", "gender", "calendar_ids"}).
		AddRow("tm-1", "Maya Reyes", "female", []string{"cal-1", "cal-2"})
	mock.ExpectQuery("SELECT t.id, t.name").WithArgs("loc-1", "female").WillReturnRows(rows)

	members, err := store.GetTeamMembersByGender(context.Background(), "loc-1", "female")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(members) != 1 || len(members[0].CalendarIDs) != 2 {
		t.Fatalf("unexpected members: %+v", members)
	}
}
