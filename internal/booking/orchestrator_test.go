package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voicebook/internal/highlevel"
	"github.com/wolfman30/voicebook/pkg/logging"
)

type fakeCRM struct {
	upserts       int
	creates       []highlevel.AppointmentRequest
	createCtxErrs []error
	notes         []string
	failCreateOn  map[string]error // calendar ID -> error
	failUpsert    error
	failNote      error
}

func (f *fakeCRM) UpsertContact(_ context.Context, _ string, _ highlevel.Contact) (string, error) {
	f.upserts++
	if f.failUpsert != nil {
		return "", f.failUpsert
	}
	return "contact-1", nil
}

func (f *fakeCRM) CreateAppointment(ctx context.Context, _ string, req highlevel.AppointmentRequest) (string, error) {
	f.createCtxErrs = append(f.createCtxErrs, ctx.Err())
	if err := f.failCreateOn[req.CalendarID]; err != nil {
		return "", err
	}
	f.creates = append(f.creates, req)
	return "appt-" + req.CalendarID, nil
}

func (f *fakeCRM) AddContactNote(_ context.Context, _, _ string, note string) error {
	if f.failNote != nil {
		return f.failNote
	}
	f.notes = append(f.notes, note)
	return nil
}

var chicago = func() *time.Location {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		panic(err)
	}
	return loc
}()

func steps() []Step {
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, chicago)
	return []Step{
		{
			ServiceName: "Facial",
			CalendarID:  "cal-a",
			Start:       day.Add(10 * time.Hour),
			End:         day.Add(11 * time.Hour),
			Note:        "Package: Spa Day",
		},
		{
			ServiceName: "Massage",
			CalendarID:  "cal-b",
			Start:       day.Add(11*time.Hour + 15*time.Minute),
			End:         day.Add(12*time.Hour + 15*time.Minute),
		},
	}
}

func newOrchestrator(crm CRM) *Orchestrator {
	return NewOrchestrator(crm, nil, logging.New("error"))
}

func TestExecutePlanAllStepsBooked(t *testing.T) {
	crm := &fakeCRM{}
	out := newOrchestrator(crm).ExecutePlan(context.Background(), "loc-1",
		Customer{FirstName: "Dana", Phone: "+15550100"}, steps())

	assert.Equal(t, StatusConfirmed, out.Status)
	require.Len(t, out.Steps, 2)
	assert.True(t, out.Steps[0].Booked)
	assert.True(t, out.Steps[1].Booked)
	assert.Equal(t, "appt-cal-a", out.Steps[0].AppointmentID)
	assert.Equal(t, "contact-1", out.ContactID)
	assert.Equal(t, 1, crm.upserts, "contact upserted once for the whole plan")

	// Steps hit the CRM in plan order.
	require.Len(t, crm.creates, 2)
	assert.Equal(t, "cal-a", crm.creates[0].CalendarID)
	assert.Equal(t, "cal-b", crm.creates[1].CalendarID)

	assert.Contains(t, out.Confirmation, "Facial")
	assert.Contains(t, out.Confirmation, "Massage")
	assert.Contains(t, out.Confirmation, "10:00 AM")
}

func TestExecutePlanPartialFailure(t *testing.T) {
	crm := &fakeCRM{failCreateOn: map[string]error{
		"cal-b": &highlevel.APIError{StatusCode: 500, Body: "internal"},
	}}
	out := newOrchestrator(crm).ExecutePlan(context.Background(), "loc-1",
		Customer{FirstName: "Dana"}, steps())

	assert.Equal(t, StatusPartial, out.Status)
	require.Len(t, out.Steps, 2)
	assert.True(t, out.Steps[0].Booked)
	assert.False(t, out.Steps[1].Booked)
	assert.NotEmpty(t, out.Steps[1].Error)

	// The confirmation offers the booked facial and names the massage
	// only as unbooked, never with upstream error detail.
	assert.Contains(t, out.Confirmation, "Facial")
	assert.Contains(t, out.Confirmation, "wasn't able to book Massage")
	assert.NotContains(t, out.Confirmation, "500")
	assert.NotContains(t, out.Confirmation, "internal")
}

func TestExecutePlanContinuesPastEarlyFailure(t *testing.T) {
	crm := &fakeCRM{failCreateOn: map[string]error{
		"cal-a": errors.New("conflict"),
	}}
	out := newOrchestrator(crm).ExecutePlan(context.Background(), "loc-1",
		Customer{FirstName: "Dana"}, steps())

	assert.Equal(t, StatusPartial, out.Status)
	assert.False(t, out.Steps[0].Booked)
	assert.True(t, out.Steps[1].Booked, "second step still attempted after first failed")
}

func TestExecutePlanUpsertFailureFailsEverything(t *testing.T) {
	crm := &fakeCRM{failUpsert: errors.New("contacts api down")}
	out := newOrchestrator(crm).ExecutePlan(context.Background(), "loc-1",
		Customer{FirstName: "Dana"}, steps())

	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, crm.creates)
	assert.Equal(t, "I wasn't able to complete the booking. Let's try a different time.", out.Confirmation)
}

func TestExecutePlanNoteFailureDoesNotFailStep(t *testing.T) {
	crm := &fakeCRM{failNote: errors.New("notes api down")}
	out := newOrchestrator(crm).ExecutePlan(context.Background(), "loc-1",
		Customer{FirstName: "Dana"}, steps())

	assert.Equal(t, StatusConfirmed, out.Status)
	assert.True(t, out.Steps[0].Booked)
}

func TestExecutePlanCreateSurvivesCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	crm := &fakeCRM{}
	out := newOrchestrator(crm).ExecutePlan(ctx, "loc-1",
		Customer{FirstName: "Dana"}, steps()[:1])

	assert.Equal(t, StatusConfirmed, out.Status)
	require.Len(t, crm.creates, 1)
	require.Len(t, crm.createCtxErrs, 1)
	assert.NoError(t, crm.createCtxErrs[0], "create context must be detached from cancellation")
}
