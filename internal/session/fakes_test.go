package session

import (
	"chatwidget-gateway/internal/backend"
	"chatwidget-gateway/internal/models"
	"context"
	"errors"
	"sync"
	"time"
)

var errBackendDown = errors.New("backend down")

// fakeBackend records every call and answers from its function fields.
// A nil function field returns a zero-value success.
type fakeBackend struct {
	mu sync.Mutex

	chatFn     func(ctx context.Context, message, sessionID string) (*backend.ChatReply, error)
	scheduleFn func(req backend.ScheduleRequest) (*backend.ScheduleResult, error)
	bookingFn  func(req backend.BookingRequest) (*backend.BookingResult, error)
	pricingFn  func(service string) (*models.PricingInfo, error)
	authFn     func() (string, error)
	upsertFn   func(lead backend.LeadUpsert) (*backend.LeadUpsertResult, error)

	chatCalls     []string
	scheduleCalls []backend.ScheduleRequest
	bookingCalls  []backend.BookingRequest
	pricingCalls  []string
	authCalls     int
	upsertCalls   []backend.LeadUpsert
}

func (f *fakeBackend) Chat(ctx context.Context, message, sessionID string) (*backend.ChatReply, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, message)
	fn := f.chatFn
	f.mu.Unlock()
	if fn == nil {
		return &backend.ChatReply{Answer: "ok", Suggestions: []string{}}, nil
	}
	return fn(ctx, message, sessionID)
}

func (f *fakeBackend) CheckSchedule(_ context.Context, req backend.ScheduleRequest) (*backend.ScheduleResult, error) {
	f.mu.Lock()
	f.scheduleCalls = append(f.scheduleCalls, req)
	fn := f.scheduleFn
	f.mu.Unlock()
	if fn == nil {
		return &backend.ScheduleResult{Allowed: true}, nil
	}
	return fn(req)
}

func (f *fakeBackend) CreateBooking(_ context.Context, req backend.BookingRequest) (*backend.BookingResult, error) {
	f.mu.Lock()
	f.bookingCalls = append(f.bookingCalls, req)
	fn := f.bookingFn
	f.mu.Unlock()
	if fn == nil {
		return &backend.BookingResult{Allowed: true, EventID: "evt_default"}, nil
	}
	return fn(req)
}

func (f *fakeBackend) Pricing(_ context.Context, service string) (*models.PricingInfo, error) {
	f.mu.Lock()
	f.pricingCalls = append(f.pricingCalls, service)
	fn := f.pricingFn
	f.mu.Unlock()
	if fn == nil {
		return &models.PricingInfo{Service: service}, nil
	}
	return fn(service)
}

func (f *fakeBackend) CalendarAuthURL(context.Context) (string, error) {
	f.mu.Lock()
	f.authCalls++
	fn := f.authFn
	f.mu.Unlock()
	if fn == nil {
		return "https://accounts.example.com/auth", nil
	}
	return fn()
}

func (f *fakeBackend) HubSpotAuthURL() string {
	return "https://backend.example.com/api/hubspot/auth"
}

func (f *fakeBackend) UpsertLead(_ context.Context, lead backend.LeadUpsert) (*backend.LeadUpsertResult, error) {
	f.mu.Lock()
	f.upsertCalls = append(f.upsertCalls, lead)
	fn := f.upsertFn
	f.mu.Unlock()
	if fn == nil {
		return &backend.LeadUpsertResult{ContactID: "contact-1", Status: "created"}, nil
	}
	return fn(lead)
}

func (f *fakeBackend) counts() (chat, schedule, booking, pricing int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chatCalls), len(f.scheduleCalls), len(f.bookingCalls), len(f.pricingCalls)
}

type fakeNotifier struct {
	mu      sync.Mutex
	err     error
	notices []models.BookingNotice
}

func (n *fakeNotifier) NotifyBooking(_ context.Context, notice models.BookingNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

var fixedNow = time.Date(2025, 3, 10, 14, 25, 0, 0, time.UTC)

func testOptions() Options {
	return Options{Now: func() time.Time { return fixedNow }}
}

func lastMessage(s *models.Snapshot) models.Message {
	return s.Messages[len(s.Messages)-1]
}
