package notify

import (
	"chatwidget-gateway/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the notifier has no token or channel.
var ErrNotConfigured = errors.New("slack notifier is not configured")

// SlackNotifier posts confirmed bookings to a Slack channel.
type SlackNotifier struct {
	client    *slack.Client
	channelID string
	logger    *zap.Logger
}

// NewSlackNotifier returns nil when botToken or channelID is empty, so the
// caller can treat lead notifications as switched off.
func NewSlackNotifier(botToken, channelID string, logger *zap.Logger, opts ...slack.Option) *SlackNotifier {
	if botToken == "" || channelID == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{
		client:    slack.New(botToken, opts...),
		channelID: channelID,
		logger:    logger.Named("slack"),
	}
}

// NotifyBooking posts notice to the configured channel.
func (n *SlackNotifier) NotifyBooking(ctx context.Context, notice models.BookingNotice) error {
	if n == nil || n.client == nil {
		return ErrNotConfigured
	}
	text := FormatBookingNotice(notice)
	_, ts, err := n.client.PostMessageContext(ctx, n.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to post message to Slack channel %s: %w", n.channelID, err)
	}
	n.logger.Debug("booking notification posted", zap.String("channel", n.channelID), zap.String("ts", ts))
	return nil
}

// FormatBookingNotice renders the Slack message body for a booking.
func FormatBookingNotice(notice models.BookingNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":calendar: *New booking* for %s (%d min)", notice.Start, notice.DurationMinutes)
	if notice.EventID != "" {
		fmt.Fprintf(&b, "\nEvent: %s", notice.EventID)
	}
	lead := notice.Lead
	if lead.Name != "" {
		fmt.Fprintf(&b, "\nName: %s", lead.Name)
	}
	if lead.Email != "" {
		fmt.Fprintf(&b, "\nEmail: %s", lead.Email)
	}
	if lead.Company != "" {
		fmt.Fprintf(&b, "\nCompany: %s", lead.Company)
	}
	if lead.Interest != "" {
		fmt.Fprintf(&b, "\nInterest: %s", lead.Interest)
	}
	fmt.Fprintf(&b, "\nSession: %s", notice.SessionID)
	return b.String()
}
