package services

import (
	"chatwidget-gateway/internal/auth"
	"chatwidget-gateway/internal/models"
	"chatwidget-gateway/internal/session"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrValidation    = errors.New("input validation failed")
	ErrCreatingToken = errors.New("failed to create session token")
)

// WidgetService is what the HTTP handlers call. It resolves sessions through
// the Manager, runs the controller operation and persists the result.
type WidgetService struct {
	manager    *session.Manager
	secret     string
	tokenTTL   time.Duration
	hubspotURL string
	logger     *zap.Logger
}

func NewWidgetService(m *session.Manager, secret string, tokenTTL time.Duration, hubspotURL string, logger *zap.Logger) *WidgetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WidgetService{
		manager:    m,
		secret:     secret,
		tokenTTL:   tokenTTL,
		hubspotURL: hubspotURL,
		logger:     logger.Named("widget_service"),
	}
}

// StartSession resumes the session named by token when it is valid and still
// stored, and otherwise creates a fresh one. A new token is issued either way.
func (s *WidgetService) StartSession(ctx context.Context, token string) (string, *models.Snapshot, error) {
	if token != "" {
		id, err := auth.ParseSessionToken(token, s.secret)
		if err == nil {
			c, err := s.manager.Get(ctx, id)
			if err == nil {
				return s.issue(c)
			}
			if !errors.Is(err, session.ErrSessionNotFound) {
				return "", nil, err
			}
			s.logger.Info("token names an unknown session, starting a new one", zap.String("session_id", id.String()))
		} else {
			s.logger.Debug("ignoring unusable session token", zap.Error(err))
		}
	}

	c, err := s.manager.Create(ctx)
	if err != nil {
		return "", nil, err
	}
	return s.issue(c)
}

func (s *WidgetService) issue(c *session.Controller) (string, *models.Snapshot, error) {
	token, err := auth.NewSessionToken(c.ID(), s.secret, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCreatingToken, err)
	}
	return token, c.Snapshot(), nil
}

// GetSession returns the current snapshot.
func (s *WidgetService) GetSession(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	c, err := s.manager.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// SendMessage runs one chat turn.
func (s *WidgetService) SendMessage(ctx context.Context, id uuid.UUID, text string) (*models.Snapshot, error) {
	return s.mutate(ctx, id, func(c *session.Controller) (*models.Snapshot, error) {
		return c.SendMessage(ctx, text), nil
	})
}

// UpdateBooking edits the booking draft.
func (s *WidgetService) UpdateBooking(ctx context.Context, id uuid.UUID, req models.UpdateBookingRequest) (*models.Snapshot, error) {
	return s.mutate(ctx, id, func(c *session.Controller) (*models.Snapshot, error) {
		snap, err := c.UpdateBookingDraft(req)
		if errors.Is(err, session.ErrInvalidDuration) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return snap, err
	})
}

// OpenBooking shows the booking form.
func (s *WidgetService) OpenBooking(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return s.mutate(ctx, id, func(c *session.Controller) (*models.Snapshot, error) {
		return c.OpenBooking(), nil
	})
}

// SubmitBooking checks and books dateTime.
func (s *WidgetService) SubmitBooking(ctx context.Context, id uuid.UUID, dateTime string) (*models.Snapshot, error) {
	return s.mutate(ctx, id, func(c *session.Controller) (*models.Snapshot, error) {
		snap, err := c.SubmitBooking(ctx, dateTime)
		if errors.Is(err, session.ErrEmptyDateTime) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return snap, err
	})
}

// CancelBooking discards the booking draft.
func (s *WidgetService) CancelBooking(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return s.mutate(ctx, id, func(c *session.Controller) (*models.Snapshot, error) {
		return c.CancelBooking(), nil
	})
}

// HubSpotAuthURL returns the CRM authorization link for a live session.
func (s *WidgetService) HubSpotAuthURL(ctx context.Context, id uuid.UUID) (string, error) {
	if _, err := s.manager.Get(ctx, id); err != nil {
		return "", err
	}
	return s.hubspotURL, nil
}

// EndSession deletes the session. Its token stops resolving afterwards.
func (s *WidgetService) EndSession(ctx context.Context, id uuid.UUID) error {
	return s.manager.End(ctx, id)
}

// mutate loads the controller, applies op and persists the resulting state.
// Persisting is detached from ctx so a client disconnect cannot lose a
// transcript entry the backend already acted on.
func (s *WidgetService) mutate(ctx context.Context, id uuid.UUID, op func(*session.Controller) (*models.Snapshot, error)) (*models.Snapshot, error) {
	c, err := s.manager.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := op(c)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Save(context.WithoutCancel(ctx), c); err != nil {
		s.logger.Error("failed to persist session", zap.String("session_id", id.String()), zap.Error(err))
		return nil, err
	}
	return snap, nil
}
