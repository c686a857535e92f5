// Package highlevel is an HTTP client for the HighLevel calendar/CRM
// platform: free-slot lookups, appointment creation, and contact upserts.
// All calls carry a per-location bearer token obtained from a TokenProvider;
// an expired token is refreshed and the call retried exactly once.
package highlevel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/voicebook/pkg/logging"
)

const (
	defaultBaseURL = "https://services.leadconnectorhq.com"
	defaultTimeout = 10 * time.Second
)

// TokenProvider supplies and refreshes per-location bearer credentials.
// Implemented by the auth package; faked in tests.
type TokenProvider interface {
	// Token returns a bearer token for the location, from cache if fresh.
	Token(ctx context.Context, locationID string) (string, error)
	// Refresh discards any cached token and obtains a new one.
	Refresh(ctx context.Context, locationID string) (string, error)
}

// Client is a HighLevel API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, for tests and mock platforms.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a HighLevel API client.
func NewClient(tokens TokenProvider, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		tokens: tokens,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetFreeSlots returns open start times for one calendar over a date window,
// keyed by date (YYYY-MM-DD) and sorted ascending within each date.
func (c *Client) GetFreeSlots(ctx context.Context, locationID, calendarID string, start, end time.Time, loc *time.Location) (map[string][]time.Time, error) {
	q := url.Values{}
	q.Set("startDate", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endDate", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("timezone", loc.String())

	path := fmt.Sprintf("/calendars/%s/free-slots?%s", url.PathEscape(calendarID), q.Encode())
	body, err := c.do(ctx, locationID, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("highlevel: free slots for calendar %s: %w", calendarID, err)
	}
	slots, err := parseFreeSlots(body, loc)
	if err != nil {
		return nil, fmt.Errorf("highlevel: free slots for calendar %s: %w", calendarID, err)
	}
	return slots, nil
}

// UpsertContact creates or updates a CRM contact keyed by phone/email and
// returns its id. The platform upsert is idempotent.
func (c *Client) UpsertContact(ctx context.Context, locationID string, contact Contact) (string, error) {
	payload := map[string]string{
		"locationId": locationID,
		"email":      contact.Email,
		"firstName":  contact.FirstName,
	}
	if contact.LastName != "" {
		payload["lastName"] = contact.LastName
	}
	if contact.Phone != "" {
		payload["phone"] = contact.Phone
	}

	body, err := c.do(ctx, locationID, http.MethodPost, "/contacts/upsert", payload)
	if err != nil {
		return "", fmt.Errorf("highlevel: upsert contact: %w", err)
	}

	var resp struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("highlevel: decode upsert response: %w", err)
	}
	if resp.Contact.ID == "" {
		return "", fmt.Errorf("highlevel: upsert returned empty contact id")
	}
	return resp.Contact.ID, nil
}

// CreateAppointment books a slot and returns the appointment id.
func (c *Client) CreateAppointment(ctx context.Context, locationID string, req AppointmentRequest) (string, error) {
	payload := map[string]string{
		"calendarId":        req.CalendarID,
		"locationId":        locationID,
		"contactId":         req.ContactID,
		"startTime":         req.StartTime.Format(time.RFC3339),
		"endTime":           req.EndTime.Format(time.RFC3339),
		"title":             req.Title,
		"appointmentStatus": "confirmed",
	}

	body, err := c.do(ctx, locationID, http.MethodPost, "/calendars/events/appointments", payload)
	if err != nil {
		return "", fmt.Errorf("highlevel: create appointment: %w", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("highlevel: decode appointment response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("highlevel: create appointment returned empty id")
	}
	return resp.ID, nil
}

// AddContactNote attaches a free-form note (therapist preference, occasion)
// to a contact. Best-effort from the orchestrator's point of view.
func (c *Client) AddContactNote(ctx context.Context, locationID, contactID, note string) error {
	path := fmt.Sprintf("/contacts/%s/notes", url.PathEscape(contactID))
	if _, err := c.do(ctx, locationID, http.MethodPost, path, map[string]string{"body": note}); err != nil {
		return fmt.Errorf("highlevel: add note: %w", err)
	}
	return nil
}

// CancelAppointment deletes an appointment. Pass-through, no core logic.
func (c *Client) CancelAppointment(ctx context.Context, locationID, appointmentID string) error {
	path := fmt.Sprintf("/calendars/events/%s", url.PathEscape(appointmentID))
	if _, err := c.do(ctx, locationID, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("highlevel: cancel appointment: %w", err)
	}
	return nil
}

// RescheduleAppointment moves an appointment. Pass-through, no core logic.
func (c *Client) RescheduleAppointment(ctx context.Context, locationID, appointmentID string, start, end time.Time) error {
	path := fmt.Sprintf("/calendars/events/%s", url.PathEscape(appointmentID))
	payload := map[string]string{
		"startTime": start.Format(time.RFC3339),
		"endTime":   end.Format(time.RFC3339),
	}
	if _, err := c.do(ctx, locationID, http.MethodPut, path, payload); err != nil {
		return fmt.Errorf("highlevel: reschedule appointment: %w", err)
	}
	return nil
}

// do executes one authenticated call. A 401 forces a token refresh and a
// single retry; a second 401 propagates.
func (c *Client) do(ctx context.Context, locationID, method, path string, payload any) ([]byte, error) {
	token, err := c.tokens.Token(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("obtain token: %w", err)
	}

	body, status, err := c.roundTrip(ctx, method, path, payload, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.logger.Warn("highlevel token rejected, refreshing", "location_id", locationID, "path", path)
		token, err = c.tokens.Refresh(ctx, locationID)
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		body, status, err = c.roundTrip(ctx, method, path, payload, token)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status > 299 {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, &APIError{StatusCode: status, Body: msg}
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload any, token string) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
