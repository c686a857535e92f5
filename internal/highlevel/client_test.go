package highlevel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeTokens struct {
	token     string
	refreshed int
	refreshTo string
}

func (f *fakeTokens) Token(ctx context.Context, locationID string) (string, error) {
	return f.token, nil
}

func (f *fakeTokens) Refresh(ctx context.Context, locationID string) (string, error) {
	f.refreshed++
	f.token = f.refreshTo
	return f.token, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens *fakeTokens) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(tokens, nil, WithBaseURL(ts.URL))
}

func TestGetFreeSlotsNormalizesBothShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("timezone") != "America/Chicago" {
			t.Fatalf("missing timezone query, got %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"2026-09-03": []string{"2026-09-03T09:00:00-05:00", "2026-09-03T10:30:00-05:00"},
			"2026-09-04": map[string]any{"slots": []string{"2026-09-04T14:00:00-05:00"}},
			"traceId":    "abc-123",
		})
	}, &fakeTokens{token: "tok"})

	loc, _ := time.LoadLocation("America/Chicago")
	slots, err := c.GetFreeSlots(context.Background(), "loc-1", "cal-1",
		time.Now(), time.Now().Add(7*24*time.Hour), loc)
	if err != nil {
		t.Fatalf("GetFreeSlots error: %v", err)
	}

	if len(slots) != 2 {
		t.Fatalf("expected 2 dates, got %d: %v", len(slots), slots)
	}
	if len(slots["2026-09-03"]) != 2 || len(slots["2026-09-04"]) != 1 {
		t.Fatalf("unexpected slot counts: %v", slots)
	}
	first := slots["2026-09-03"][0]
	if first.Hour() != 9 || first.Location() != loc {
		t.Fatalf("expected 9:00 calendar-local, got %s", first)
	}
}

func TestGetFreeSlotsRefreshesTokenOnce(t *testing.T) {
	tokens := &fakeTokens{token: "stale", refreshTo: "fresh"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"2026-09-03": []string{"2026-09-03T09:00:00-05:00"},
		})
	}, tokens)

	slots, err := c.GetFreeSlots(context.Background(), "loc-1", "cal-1",
		time.Now(), time.Now().Add(24*time.Hour), time.UTC)
	if err != nil {
		t.Fatalf("GetFreeSlots error: %v", err)
	}
	if tokens.refreshed != 1 {
		t.Fatalf("expected exactly one refresh, got %d", tokens.refreshed)
	}
	if len(slots) != 1 {
		t.Fatalf("expected slots after retry, got %v", slots)
	}
}

func TestGetFreeSlotsSecondUnauthorizedPropagates(t *testing.T) {
	tokens := &fakeTokens{token: "bad", refreshTo: "still-bad"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens)

	_, err := c.GetFreeSlots(context.Background(), "loc-1", "cal-1",
		time.Now(), time.Now().Add(24*time.Hour), time.UTC)
	if err == nil {
		t.Fatal("expected error after second 401")
	}
	if tokens.refreshed != 1 {
		t.Fatalf("expected exactly one refresh attempt, got %d", tokens.refreshed)
	}
}

func TestUpsertContact(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts/upsert" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["email"] != "jane@example.com" || req["locationId"] != "loc-1" {
			t.Fatalf("unexpected payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"contact": map[string]any{"id": "contact-9"}})
	}, &fakeTokens{token: "tok"})

	id, err := c.UpsertContact(context.Background(), "loc-1", Contact{
		Email: "jane@example.com", FirstName: "Jane", Phone: "+15555550123",
	})
	if err != nil {
		t.Fatalf("UpsertContact error: %v", err)
	}
	if id != "contact-9" {
		t.Fatalf("unexpected contact id %q", id)
	}
}

func TestCreateAppointment(t *testing.T) {
	start := time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/events/appointments" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["calendarId"] != "cal-1" || req["contactId"] != "contact-9" {
			t.Fatalf("unexpected payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "appt-1"})
	}, &fakeTokens{token: "tok"})

	id, err := c.CreateAppointment(context.Background(), "loc-1", AppointmentRequest{
		CalendarID: "cal-1",
		ContactID:  "contact-9",
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		Title:      "Swedish Massage",
	})
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if id != "appt-1" {
		t.Fatalf("unexpected appointment id %q", id)
	}
}

func TestCreateAppointmentServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}, &fakeTokens{token: "tok"})

	_, err := c.CreateAppointment(context.Background(), "loc-1", AppointmentRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
}
