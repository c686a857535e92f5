// Package booking executes appointment plans against the CRM. Steps run
// strictly in order; one failed step never aborts the rest, so a partially
// booked package still leaves the caller with every appointment that could
// be made.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/voicebook/internal/highlevel"
	"github.com/wolfman30/voicebook/internal/observability/metrics"
	"github.com/wolfman30/voicebook/pkg/logging"
)

// CRM is the slice of the calendar platform the orchestrator writes to.
// Satisfied by the highlevel client.
type CRM interface {
	UpsertContact(ctx context.Context, locationID string, contact highlevel.Contact) (string, error)
	CreateAppointment(ctx context.Context, locationID string, req highlevel.AppointmentRequest) (string, error)
	AddContactNote(ctx context.Context, locationID, contactID, note string) error
}

// Customer identifies who the appointments are for.
type Customer struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

// Step is one appointment to create.
type Step struct {
	ServiceName string
	CalendarID  string
	Start       time.Time
	End         time.Time
	Note        string // optional context note attached to the contact
}

// Status of a whole plan execution.
type Status string

const (
	StatusConfirmed Status = "confirmed" // every step booked
	StatusPartial   Status = "partial"   // some steps booked, some failed
	StatusFailed    Status = "failed"    // nothing booked
)

// StepResult records what happened to one step.
type StepResult struct {
	ServiceName   string
	Start         time.Time
	AppointmentID string
	Booked        bool
	Error         string // human-safe summary, empty when booked
}

// Outcome is the aggregate result of executing a plan.
type Outcome struct {
	Status       Status
	Steps        []StepResult
	ContactID    string
	Confirmation string // voice-ready sentence naming only what was booked
}

// Orchestrator books plans one step at a time.
type Orchestrator struct {
	crm     CRM
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	tracer  trace.Tracer
}

func NewOrchestrator(crm CRM, m *metrics.BookingMetrics, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		crm:     crm,
		logger:  logger.Component("booking"),
		metrics: m,
		tracer:  otel.Tracer("voicebook.internal.booking"),
	}
}

// ExecutePlan books every step in order. Steps after a failure still run:
// a missed massage should not cost the caller their facial. Appointment
// creation runs on a cancel-detached context so a caller hanging up
// mid-request cannot strand a half-created appointment.
func (o *Orchestrator) ExecutePlan(ctx context.Context, locationID string, customer Customer, steps []Step) Outcome {
	ctx, span := o.tracer.Start(ctx, "booking.ExecutePlan")
	defer span.End()

	outcome := Outcome{Steps: make([]StepResult, 0, len(steps))}
	booked := 0

	for _, step := range steps {
		result := o.executeStep(ctx, locationID, customer, step, &outcome.ContactID)
		if result.Booked {
			booked++
			o.metrics.ObserveStep("ok")
		} else {
			o.metrics.ObserveStep("failed")
			o.logger.Error("booking step failed",
				"service", step.ServiceName,
				"calendar_id", step.CalendarID,
				"error", result.Error)
		}
		outcome.Steps = append(outcome.Steps, result)
	}

	switch {
	case booked == len(steps) && booked > 0:
		outcome.Status = StatusConfirmed
	case booked > 0:
		outcome.Status = StatusPartial
	default:
		outcome.Status = StatusFailed
	}
	outcome.Confirmation = confirmation(outcome)
	o.metrics.ObservePlan(string(outcome.Status))

	o.logger.Info("plan executed",
		"status", string(outcome.Status),
		"booked", booked,
		"total", len(steps))
	return outcome
}

func (o *Orchestrator) executeStep(ctx context.Context, locationID string, customer Customer, step Step, contactID *string) StepResult {
	result := StepResult{ServiceName: step.ServiceName, Start: step.Start}

	if *contactID == "" {
		id, err := o.crm.UpsertContact(ctx, locationID, highlevel.Contact{
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
			Phone:     customer.Phone,
			Email:     customer.Email,
		})
		if err != nil {
			result.Error = fmt.Sprintf("could not save contact: %v", err)
			return result
		}
		*contactID = id
	}

	// Detached from cancellation: once a create is in flight it must be
	// allowed to finish, or the CRM ends up holding an appointment the
	// caller was never told about.
	createCtx := context.WithoutCancel(ctx)
	apptID, err := o.crm.CreateAppointment(createCtx, locationID, highlevel.AppointmentRequest{
		CalendarID: step.CalendarID,
		ContactID:  *contactID,
		StartTime:  step.Start,
		EndTime:    step.End,
		Title:      step.ServiceName,
	})
	if err != nil {
		result.Error = fmt.Sprintf("could not book %s: %v", step.ServiceName, err)
		return result
	}
	result.AppointmentID = apptID
	result.Booked = true

	if step.Note != "" {
		if err := o.crm.AddContactNote(ctx, locationID, *contactID, step.Note); err != nil {
			// Notes are context for staff, not part of the booking.
			o.logger.Warn("contact note failed", "service", step.ServiceName, "error", err)
		}
	}
	return result
}

// confirmation builds the sentence the voice agent reads back. Only booked
// services are named; failed ones are summarized without upstream detail.
func confirmation(outcome Outcome) string {
	var booked, failed []string
	for _, step := range outcome.Steps {
		if step.Booked {
			booked = append(booked, fmt.Sprintf("%s at %s", step.ServiceName, step.Start.Format("3:04 PM on Monday, January 2")))
		} else {
			failed = append(failed, step.ServiceName)
		}
	}

	switch outcome.Status {
	case StatusConfirmed:
		return fmt.Sprintf("You're all set: %s.", joinList(booked))
	case StatusPartial:
		return fmt.Sprintf("I booked %s, but I wasn't able to book %s. Our team will reach out about the rest.",
			joinList(booked), joinList(failed))
	default:
		return "I wasn't able to complete the booking. Let's try a different time."
	}
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
