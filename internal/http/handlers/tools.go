// Package handlers exposes the booking brain as webhook tools for the
// voice platform's AI assistant. Each endpoint receives a tool call with
// the caller's words as arguments and returns text for TTS, so every
// response body must read well out loud.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/voicebook/internal/availability"
	"github.com/wolfman30/voicebook/internal/booking"
	"github.com/wolfman30/voicebook/internal/directory"
	"github.com/wolfman30/voicebook/internal/highlevel"
	"github.com/wolfman30/voicebook/internal/planner"
	"github.com/wolfman30/voicebook/pkg/logging"
)

const maxBodyBytes = 1 << 20

// ToolEvent is the envelope the voice platform posts when its assistant
// invokes one of our webhook tools. Arguments carry the caller's words as
// the assistant extracted them.
type ToolEvent struct {
	ToolCallID string            `json:"tool_call_id,omitempty"`
	LocationID string            `json:"location_id"`
	Arguments  map[string]string `json:"arguments,omitempty"`
}

// ToolResponse is what the assistant's TTS engine reads to the caller.
// Data carries structured results for the assistant's follow-up turns.
type ToolResponse struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Response   string `json:"response"`
	Data       any    `json:"data,omitempty"`
}

// SlotOption is one offered opening in structured form.
type SlotOption struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	CalendarID   string    `json:"calendar_id"`
	CalendarName string    `json:"calendar_name,omitempty"`
	StaffName    string    `json:"staff_name,omitempty"`
}

// PlanOption is one package day-fit in structured form.
type PlanOption struct {
	Date  string       `json:"date"`
	Steps []StepOption `json:"steps"`
}

type StepOption struct {
	Service    string    `json:"service"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	CalendarID string    `json:"calendar_id"`
}

// Searcher finds slots. Satisfied by the availability service.
type Searcher interface {
	Search(ctx context.Context, req availability.Request) ([]availability.Slot, error)
}

// PlanFinder fits packages onto days. Satisfied by the planner service.
type PlanFinder interface {
	FindPlans(ctx context.Context, req planner.Request) ([]planner.Plan, error)
}

// PlanExecutor books plans. Satisfied by the booking orchestrator.
type PlanExecutor interface {
	ExecutePlan(ctx context.Context, locationID string, customer booking.Customer, steps []booking.Step) booking.Outcome
}

// PackageCatalog looks up service packages. Satisfied by the directory
// store.
type PackageCatalog interface {
	GetPackageByName(ctx context.Context, locationID, name string) (*directory.ServicePackage, error)
	ListPackageNames(ctx context.Context, locationID string) ([]string, error)
}

// AppointmentAdmin covers cancel and reschedule pass-through. Satisfied by
// the highlevel client.
type AppointmentAdmin interface {
	CancelAppointment(ctx context.Context, locationID, appointmentID string) error
	RescheduleAppointment(ctx context.Context, locationID, appointmentID string, start, end time.Time) error
}

// ToolHandler hosts all webhook tool endpoints.
type ToolHandler struct {
	search   Searcher
	plans    PlanFinder
	booker   PlanExecutor
	packages PackageCatalog
	admin    AppointmentAdmin
	logger   *logging.Logger
}

// ToolHandlerConfig configures the ToolHandler.
type ToolHandlerConfig struct {
	Search   Searcher
	Plans    PlanFinder
	Booker   PlanExecutor
	Packages PackageCatalog
	Admin    AppointmentAdmin
	Logger   *logging.Logger
}

func NewToolHandler(cfg ToolHandlerConfig) *ToolHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &ToolHandler{
		search:   cfg.Search,
		plans:    cfg.Plans,
		booker:   cfg.Booker,
		packages: cfg.Packages,
		admin:    cfg.Admin,
		logger:   cfg.Logger.Component("tools"),
	}
}

// HandleAvailability is POST /tools/availability.
func (h *ToolHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decode(w, r)
	if !ok {
		return
	}

	req := availability.Request{
		LocationID:       event.LocationID,
		ServiceName:      event.Arguments["service"],
		RequestedDate:    event.Arguments["date"],
		RequestedTime:    event.Arguments["time"],
		StaffName:        event.Arguments["staff"],
		GenderPreference: strings.ToLower(event.Arguments["gender_preference"]),
		TimePreference:   preference(event.Arguments["time_preference"]),
	}
	if after := event.Arguments["start_after"]; after != "" {
		if t, err := time.Parse(time.RFC3339, after); err == nil {
			req.StartAfter = t
		}
	}

	slots, err := h.search.Search(r.Context(), req)
	if err != nil {
		h.logger.Warn("availability search failed",
			"location_id", event.LocationID, "service", req.ServiceName, "error", err)
		h.write(w, event.ToolCallID, speakError(err), nil)
		return
	}

	options := make([]SlotOption, 0, len(slots))
	for _, s := range slots {
		options = append(options, SlotOption{
			Start:        s.Start,
			End:          s.End,
			CalendarID:   s.CalendarID,
			CalendarName: s.CalendarName,
			StaffName:    s.StaffName,
		})
	}
	h.write(w, event.ToolCallID, speakSlots(slots, req.ServiceName), options)
}

// HandleBook is POST /tools/book. It books a single slot the assistant
// already offered and the caller accepted.
func (h *ToolHandler) HandleBook(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decode(w, r)
	if !ok {
		return
	}

	start, err1 := time.Parse(time.RFC3339, event.Arguments["start_time"])
	end, err2 := time.Parse(time.RFC3339, event.Arguments["end_time"])
	calendarID := event.Arguments["calendar_id"]
	if err1 != nil || err2 != nil || calendarID == "" {
		h.write(w, event.ToolCallID,
			"I lost track of which time we picked. Could we go over the options again?", nil)
		return
	}

	outcome := h.booker.ExecutePlan(r.Context(), event.LocationID, customerFrom(event), []booking.Step{{
		ServiceName: event.Arguments["service"],
		CalendarID:  calendarID,
		Start:       start,
		End:         end,
		Note:        event.Arguments["note"],
	}})
	h.write(w, event.ToolCallID, outcome.Confirmation, outcome)
}

// HandlePackageAvailability is POST /tools/package-availability. It
// expands the named package into its services and previews whole days
// where everything fits.
func (h *ToolHandler) HandlePackageAvailability(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decode(w, r)
	if !ok {
		return
	}

	pkg, speak, ok := h.lookupPackage(r.Context(), event)
	if !ok {
		h.write(w, event.ToolCallID, speak, nil)
		return
	}

	plans, err := h.plans.FindPlans(r.Context(), planner.Request{
		LocationID:     event.LocationID,
		PackageName:    pkg.Name,
		Services:       pkg.Services,
		RequestedDate:  event.Arguments["date"],
		TimePreference: preference(event.Arguments["time_preference"]),
	})
	if err != nil {
		h.logger.Warn("package planning failed",
			"location_id", event.LocationID, "package", pkg.Name, "error", err)
		h.write(w, event.ToolCallID, speakError(err), nil)
		return
	}

	h.write(w, event.ToolCallID, speakPlans(plans, pkg.Name), planOptions(plans))
}

// HandlePackageBook is POST /tools/package-book. It re-plans the package
// for the chosen day and books every step in order.
func (h *ToolHandler) HandlePackageBook(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decode(w, r)
	if !ok {
		return
	}

	pkg, speak, ok := h.lookupPackage(r.Context(), event)
	if !ok {
		h.write(w, event.ToolCallID, speak, nil)
		return
	}

	plans, err := h.plans.FindPlans(r.Context(), planner.Request{
		LocationID:     event.LocationID,
		PackageName:    pkg.Name,
		Services:       pkg.Services,
		RequestedDate:  event.Arguments["date"],
		TimePreference: preference(event.Arguments["time_preference"]),
		MaxResults:     1,
	})
	if err != nil {
		h.logger.Warn("package planning failed",
			"location_id", event.LocationID, "package", pkg.Name, "error", err)
		h.write(w, event.ToolCallID, speakError(err), nil)
		return
	}
	if len(plans) == 0 {
		h.write(w, event.ToolCallID, speakPlans(nil, pkg.Name), nil)
		return
	}

	steps := make([]booking.Step, 0, len(plans[0].Steps))
	for _, ps := range plans[0].Steps {
		steps = append(steps, booking.Step{
			ServiceName: ps.ServiceName,
			CalendarID:  ps.CalendarID,
			Start:       ps.Start,
			End:         ps.End,
			Note:        "Package: " + pkg.Name,
		})
	}
	outcome := h.booker.ExecutePlan(r.Context(), event.LocationID, customerFrom(event), steps)
	h.write(w, event.ToolCallID, outcome.Confirmation, outcome)
}

// HandleCancel is POST /tools/cancel.
func (h *ToolHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decode(w, r)
	if !ok {
		return
	}

	apptID := event.Arguments["appointment_id"]
	if apptID == "" {
		h.write(w, event.ToolCallID,
			"I couldn't find that appointment. Could you tell me which one you'd like to cancel?", nil)
		return
	}
	if err := h.admin.CancelAppointment(r.Context(), event.LocationID, apptID); err != nil {
		h.logger.Warn("cancel failed", "appointment_id", apptID, "error", err)
		h.write(w, event.ToolCallID, speakError(err), nil)
		return
	}
	h.write(w, event.ToolCallID, "Done, that appointment is canceled. Is there anything else I can help with?", nil)
}

// HandleReschedule is POST /tools/reschedule.
func (h *ToolHandler) HandleReschedule(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decode(w, r)
	if !ok {
		return
	}

	apptID := event.Arguments["appointment_id"]
	start, err1 := time.Parse(time.RFC3339, event.Arguments["start_time"])
	end, err2 := time.Parse(time.RFC3339, event.Arguments["end_time"])
	if apptID == "" || err1 != nil || err2 != nil {
		h.write(w, event.ToolCallID,
			"I lost track of the new time. Could we pick a time again?", nil)
		return
	}
	if err := h.admin.RescheduleAppointment(r.Context(), event.LocationID, apptID, start, end); err != nil {
		h.logger.Warn("reschedule failed", "appointment_id", apptID, "error", err)
		h.write(w, event.ToolCallID, speakError(err), nil)
		return
	}
	h.write(w, event.ToolCallID,
		"All set, I've moved that appointment to "+start.Format("Monday, January 2 at 3:04 PM")+".", nil)
}

func (h *ToolHandler) lookupPackage(ctx context.Context, event ToolEvent) (*directory.ServicePackage, string, bool) {
	name := event.Arguments["package"]
	if name == "" {
		return nil, "Which package were you interested in?", false
	}

	pkg, err := h.packages.GetPackageByName(ctx, event.LocationID, name)
	if err == nil {
		return pkg, "", true
	}
	if errors.Is(err, directory.ErrNotFound) {
		// Voice transcription mangles names; offer the closest catalog
		// entry instead of a dead end.
		names, listErr := h.packages.ListPackageNames(ctx, event.LocationID)
		if listErr == nil {
			if suggestion := directory.Suggest(name, names); suggestion != "" {
				return nil, "I couldn't find a package called " + name + ". Did you mean " + suggestion + "?", false
			}
		}
		return nil, "I couldn't find a package called " + name + ". Could you say that again?", false
	}
	h.logger.Error("package lookup failed", "package", name, "error", err)
	return nil, speakError(err), false
}

func (h *ToolHandler) decode(w http.ResponseWriter, r *http.Request) (ToolEvent, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return ToolEvent{}, false
	}
	var event ToolEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("tool event parse failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return ToolEvent{}, false
	}
	if event.LocationID == "" {
		http.Error(w, "location_id required", http.StatusBadRequest)
		return ToolEvent{}, false
	}
	return event, true
}

func (h *ToolHandler) write(w http.ResponseWriter, toolCallID, text string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ToolResponse{
		ToolCallID: toolCallID,
		Response:   text,
		Data:       data,
	})
}

func customerFrom(event ToolEvent) booking.Customer {
	return booking.Customer{
		FirstName: event.Arguments["first_name"],
		LastName:  event.Arguments["last_name"],
		Phone:     event.Arguments["phone"],
		Email:     event.Arguments["email"],
	}
}

func preference(s string) availability.TimePreference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning":
		return availability.PrefMorning
	case "afternoon":
		return availability.PrefAfternoon
	default:
		return availability.PrefAny
	}
}

func planOptions(plans []planner.Plan) []PlanOption {
	out := make([]PlanOption, 0, len(plans))
	for _, p := range plans {
		opt := PlanOption{Date: p.Date.Format("2006-01-02")}
		for _, s := range p.Steps {
			opt.Steps = append(opt.Steps, StepOption{
				Service:    s.ServiceName,
				Start:      s.Start,
				End:        s.End,
				CalendarID: s.CalendarID,
			})
		}
		out = append(out, opt)
	}
	return out
}

var _ AppointmentAdmin = (*highlevel.Client)(nil)
