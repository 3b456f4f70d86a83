package backend

import (
	"bytes"
	"chatwidget-gateway/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	chatPath         = "/api/chat"
	schedulePath     = "/api/schedule-check"
	bookingPath      = "/api/create-booking"
	pricingPath      = "/api/pricing"
	calendarAuthPath = "/api/calendar/auth"
	hubspotAuthPath  = "/api/hubspot/auth"
	leadUpsertPath   = "/api/upsert-hubspot"

	maxBodyBytes = 1 << 20
)

// ScheduleRequest is the body of an availability check.
type ScheduleRequest struct {
	User       string `json:"user"`
	Start      string `json:"start"`
	Duration   int    `json:"duration"`
	CalendarID string `json:"calendar_id,omitempty"`
}

// BookingRequest is the body of a booking creation.
type BookingRequest struct {
	User        string `json:"user"`
	Start       string `json:"start"`
	Duration    int    `json:"duration"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	CalendarID  string `json:"calendar_id"`
	Timezone    string `json:"timezone"`
}

// LeadUpsert is the body of a CRM upsert.
type LeadUpsert struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
	Interest  string `json:"interest,omitempty"`
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	// Older backend revisions read the snake_case key.
	LegacySessionID string `json:"session_id"`
}

// Client talks to the external chat/calendar/CRM/pricing service.
// It attaches no credentials; the backend is reached over a trusted base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client. A nil httpClient gets a client with the given timeout.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.Named("backend"),
	}
}

// Chat posts one user turn and returns the normalised reply.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (*ChatReply, error) {
	body, err := c.do(ctx, http.MethodPost, chatPath, chatRequest{
		Message:         message,
		SessionID:       sessionID,
		LegacySessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	return DecodeChatReply(body)
}

// CheckSchedule asks whether a slot can be booked.
func (c *Client) CheckSchedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	body, err := c.do(ctx, http.MethodPost, schedulePath, req)
	if err != nil {
		return nil, err
	}
	return DecodeScheduleResult(body)
}

// CreateBooking creates a calendar event.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	body, err := c.do(ctx, http.MethodPost, bookingPath, req)
	if err != nil {
		return nil, err
	}
	return DecodeBookingResult(body)
}

// Pricing fetches the pricing card for a service.
func (c *Client) Pricing(ctx context.Context, service string) (*models.PricingInfo, error) {
	path := pricingPath + "?service=" + url.QueryEscape(service)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return DecodePricing(body)
}

// CalendarAuthURL fetches the calendar OAuth URL.
func (c *Client) CalendarAuthURL(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, calendarAuthPath, nil)
	if err != nil {
		return "", err
	}
	return DecodeAuthURL(body)
}

// HubSpotAuthURL is opened directly by the widget; it is never fetched here.
func (c *Client) HubSpotAuthURL() string {
	return c.baseURL + hubspotAuthPath
}

// UpsertLead pushes lead data to the CRM.
func (c *Client) UpsertLead(ctx context.Context, lead LeadUpsert) (*LeadUpsertResult, error) {
	body, err := c.do(ctx, http.MethodPost, leadUpsertPath, lead)
	if err != nil {
		return nil, err
	}
	return DecodeLeadUpsertResult(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request for %s: %w", path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrTransport, path, err)
	}

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
