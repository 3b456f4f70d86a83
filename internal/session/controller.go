package session

import (
	"chatwidget-gateway/internal/backend"
	"chatwidget-gateway/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultGreeting opens every new transcript.
	DefaultGreeting = "Hi, I'm Metalogics Assistant. How can I help today?"

	// ApologyMessage replaces the assistant reply whenever a chat turn fails.
	ApologyMessage = "Sorry, something went wrong. Please try again later."
)

// DefaultQuickActions are the one-click prompts a new transcript offers.
var DefaultQuickActions = []string{
	"What services do you offer?",
	"Can you show me your pricing for web development?",
	"Can you tell me about your previous projects?",
	"I'd like to book a demo call",
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyDateTime   = errors.New("booking date/time is required")
	ErrInvalidDuration = errors.New("unsupported booking duration")
)

// Backend is the subset of the external service the controller drives.
type Backend interface {
	Chat(ctx context.Context, message, sessionID string) (*backend.ChatReply, error)
	CheckSchedule(ctx context.Context, req backend.ScheduleRequest) (*backend.ScheduleResult, error)
	CreateBooking(ctx context.Context, req backend.BookingRequest) (*backend.BookingResult, error)
	Pricing(ctx context.Context, service string) (*models.PricingInfo, error)
	CalendarAuthURL(ctx context.Context) (string, error)
	HubSpotAuthURL() string
	UpsertLead(ctx context.Context, lead backend.LeadUpsert) (*backend.LeadUpsertResult, error)
}

// Notifier is told about confirmed bookings. Failures are recorded, never shown.
type Notifier interface {
	NotifyBooking(ctx context.Context, notice models.BookingNotice) error
}

// Options configures controllers created by a Manager or directly.
type Options struct {
	Greeting   string
	User       string // value of the "user" field sent with booking calls
	CalendarID string
	Timezone   string

	// QuickActions seed the suggestions of a new session. Nil means
	// DefaultQuickActions; an empty slice offers none.
	QuickActions []string
	Notifier     Notifier
	Logger       *zap.Logger
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Greeting == "" {
		o.Greeting = DefaultGreeting
	}
	if o.User == "" {
		o.User = "user"
	}
	if o.CalendarID == "" {
		o.CalendarID = "primary"
	}
	if o.Timezone == "" {
		o.Timezone = "UTC"
	}
	if o.QuickActions == nil {
		o.QuickActions = DefaultQuickActions
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Controller owns the state of one widget session. Every mutation goes
// through its methods; the lock is never held across a backend call.
type Controller struct {
	mu      sync.Mutex
	state   *models.Snapshot
	backend Backend
	opts    Options
	logger  *zap.Logger

	// typing is shown while a chat turn or any booking submission is outstanding
	chatBusy        bool
	bookingInFlight int

	// saveMu orders persistence so an older snapshot never overwrites a newer one
	saveMu sync.Mutex
}

// NewController starts a fresh transcript with the greeting message.
func NewController(id uuid.UUID, b Backend, opts Options) *Controller {
	opts = opts.withDefaults()
	now := opts.Now().UTC()
	c := &Controller{
		state: &models.Snapshot{
			SessionID:   id,
			Messages:    []models.Message{},
			Suggestions: append([]string{}, opts.QuickActions...),
			Booking:     models.NewBookingDraft(),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		backend: b,
		opts:    opts,
		logger:  opts.Logger.With(zap.String("session_id", id.String())),
	}
	c.appendLocked(models.Message{Role: models.RoleAssistant, Content: opts.Greeting})
	return c
}

// RestoreController rebuilds a controller from a persisted snapshot.
// Requests that were in flight when the snapshot was taken are gone, so the
// typing flag is cleared.
func RestoreController(snap *models.Snapshot, b Backend, opts Options) *Controller {
	opts = opts.withDefaults()
	state := snap.Clone()
	state.Typing = false
	if state.Messages == nil {
		state.Messages = []models.Message{}
	}
	if state.Suggestions == nil {
		state.Suggestions = []string{}
	}
	if state.Booking.DurationMinutes == 0 {
		state.Booking.DurationMinutes = models.DefaultBookingDuration
	}
	if n := uint64(len(state.Messages)); state.NextMessageSeq < n {
		state.NextMessageSeq = n
	}
	return &Controller{
		state:   state,
		backend: b,
		opts:    opts,
		logger:  opts.Logger.With(zap.String("session_id", state.SessionID.String())),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SessionID
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() *models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// SendMessage runs one chat turn. Blank input is ignored. Backend failures
// are turned into a single apology message; nothing is retried. A response
// that arrives after a newer turn was issued is dropped.
func (c *Controller) SendMessage(ctx context.Context, text string) *models.Snapshot {
	text = strings.TrimSpace(text)
	if text == "" {
		return c.Snapshot()
	}

	c.mu.Lock()
	c.appendLocked(models.Message{Role: models.RoleUser, Content: text})
	c.chatBusy = true
	c.syncTypingLocked()
	c.state.Suggestions = []string{}
	c.state.LatestRequest++
	token := c.state.LatestRequest
	sessionID := c.state.SessionID.String()
	c.mu.Unlock()

	reply, err := c.backend.Chat(ctx, text, sessionID)

	c.mu.Lock()
	if !c.isLatestLocked(token) {
		c.mu.Unlock()
		c.logger.Info("discarding stale chat response", zap.Uint64("request", token))
		return c.Snapshot()
	}
	if err != nil {
		c.logger.Warn("chat request failed", zap.Uint64("request", token), zap.Error(err))
		c.appendLocked(models.Message{Role: models.RoleAssistant, Content: ApologyMessage})
		c.chatBusy = false
		c.syncTypingLocked()
		c.mu.Unlock()
		return c.Snapshot()
	}
	c.appendLocked(models.Message{Role: models.RoleAssistant, Content: reply.Answer})
	c.state.Suggestions = append([]string{}, reply.Suggestions...)
	c.mu.Unlock()

	c.dispatchIntent(ctx, token, reply)

	c.mu.Lock()
	if c.isLatestLocked(token) {
		c.chatBusy = false
		c.syncTypingLocked()
	}
	c.mu.Unlock()
	return c.Snapshot()
}

func (c *Controller) syncTypingLocked() {
	c.state.Typing = c.chatBusy || c.bookingInFlight > 0
}

func (c *Controller) isLatestLocked(token uint64) bool {
	return token == c.state.LatestRequest
}

// appendLocked assigns the next message id and appends. Caller holds mu,
// except during construction.
func (c *Controller) appendLocked(m models.Message) models.Message {
	c.state.NextMessageSeq++
	m.ID = fmt.Sprintf("msg-%d", c.state.NextMessageSeq)
	if m.RenderKind == "" {
		m.RenderKind = models.RenderPlain
	}
	now := c.opts.Now().UTC()
	m.CreatedAt = now
	c.state.Messages = append(c.state.Messages, m)
	c.state.UpdatedAt = now
	return m
}

// appendIfLatest appends an assistant message only while token is still current.
func (c *Controller) appendIfLatest(token uint64, m models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isLatestLocked(token) {
		c.logger.Info("discarding stale follow-up", zap.Uint64("request", token), zap.String("render_kind", string(m.RenderKind)))
		return false
	}
	c.appendLocked(m)
	return true
}
