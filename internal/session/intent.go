package session

import (
	"chatwidget-gateway/internal/backend"
	"chatwidget-gateway/internal/models"
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// Intent hints the backend may attach to a chat reply.
const (
	IntentBooking      = "booking"
	IntentPricing      = "pricing"
	IntentCalendarAuth = "calendar_auth"
	IntentHubSpotAuth  = "hubspot_auth"
	IntentAuthRequired = "auth_required"
)

// ActionOpenBooking asks the widget to show the booking form.
const ActionOpenBooking = "open_booking"

// DefaultPricingService is quoted when the answer names no service.
const DefaultPricingService = "web-development"

const (
	scheduleCheckFailedMessage = "Unable to check schedule. Please try again."
	pricingFailedMessage       = "Unable to fetch pricing. Please try again."
	calendarAuthFailedMessage  = "Unable to start calendar authorization. Please try again."
	bookingPickerMessage       = "Pick a date and time that works for you and I'll check the calendar."
	calendarAuthMessage        = "Please authorize your calendar to continue."
	hubSpotAuthMessage         = "Please connect your HubSpot account to continue."
	authRequiredMessage        = "To proceed, please authenticate with your calendar or HubSpot account."
)

var servicePattern = regexp.MustCompile(`service:\s*([\w-]+)`)

// ExtractService returns the service slug named in an answer as
// "service: <slug>", or DefaultPricingService.
func ExtractService(answer string) string {
	if m := servicePattern.FindStringSubmatch(answer); m != nil {
		return m[1]
	}
	return DefaultPricingService
}

// dispatchIntent performs the follow-up a reply's intent asks for, after
// honouring an open_booking action. Unknown or empty intents do nothing.
func (c *Controller) dispatchIntent(ctx context.Context, token uint64, reply *backend.ChatReply) {
	if reply.Action == ActionOpenBooking {
		c.mu.Lock()
		if c.isLatestLocked(token) {
			c.state.Booking.Open = true
		}
		c.mu.Unlock()
	} else if reply.Action != "" {
		c.logger.Debug("ignoring unknown action", zap.String("action", reply.Action))
	}

	switch reply.Intent {
	case IntentBooking:
		c.offerBooking(ctx, token)
	case IntentPricing:
		c.showPricing(ctx, token, ExtractService(reply.Answer))
	case IntentCalendarAuth:
		c.showCalendarAuth(ctx, token)
	case IntentHubSpotAuth:
		c.showHubSpotAuth(token)
	case IntentAuthRequired:
		if c.appendIfLatest(token, models.Message{Role: models.RoleAssistant, Content: authRequiredMessage}) {
			c.showCalendarAuth(ctx, token)
			c.showHubSpotAuth(token)
		}
	case "":
	default:
		c.logger.Debug("ignoring unknown intent", zap.String("intent", reply.Intent))
	}
}

// offerBooking checks the draft's slot and, if free, shows the booking picker.
// Without a preferred time the next full hour is checked.
func (c *Controller) offerBooking(ctx context.Context, token uint64) {
	c.mu.Lock()
	draft := c.state.Booking
	c.mu.Unlock()

	start := c.nextFullHour()
	if draft.PreferredDateTime != nil {
		start = c.normalizeStart(*draft.PreferredDateTime)
	}

	res, err := c.backend.CheckSchedule(ctx, backend.ScheduleRequest{
		User:       c.opts.User,
		Start:      start,
		Duration:   draft.DurationMinutes,
		CalendarID: c.opts.CalendarID,
	})
	if err != nil {
		c.logger.Warn("schedule check for booking intent failed", zap.Error(err))
		c.appendIfLatest(token, models.Message{Role: models.RoleAssistant, Content: scheduleCheckFailedMessage})
		return
	}
	if !res.Allowed {
		c.appendIfLatest(token, models.Message{Role: models.RoleAssistant, Content: unavailableMessage(res)})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isLatestLocked(token) {
		return
	}
	c.state.Booking.Open = true
	c.appendLocked(models.Message{
		Role:       models.RoleAssistant,
		Content:    bookingPickerMessage,
		RenderKind: models.RenderBookingPicker,
	})
}

func (c *Controller) showPricing(ctx context.Context, token uint64, service string) {
	info, err := c.backend.Pricing(ctx, service)
	if err != nil {
		c.logger.Warn("pricing request failed", zap.String("service", service), zap.Error(err))
		c.appendIfLatest(token, models.Message{Role: models.RoleAssistant, Content: pricingFailedMessage})
		return
	}
	if info.Service == "" {
		info.Service = service
	}
	c.appendIfLatest(token, models.Message{
		Role:       models.RoleAssistant,
		Content:    fmt.Sprintf("Here are our pricing options for %s.", info.Service),
		RenderKind: models.RenderPricing,
		Pricing:    info,
	})
}

func (c *Controller) showCalendarAuth(ctx context.Context, token uint64) {
	url, err := c.backend.CalendarAuthURL(ctx)
	if err != nil {
		c.logger.Warn("calendar auth request failed", zap.Error(err))
		c.appendIfLatest(token, models.Message{Role: models.RoleAssistant, Content: calendarAuthFailedMessage})
		return
	}
	c.appendIfLatest(token, models.Message{
		Role:       models.RoleAssistant,
		Content:    calendarAuthMessage,
		RenderKind: models.RenderLink,
		Link:       url,
	})
}

func (c *Controller) showHubSpotAuth(token uint64) {
	c.appendIfLatest(token, models.Message{
		Role:       models.RoleAssistant,
		Content:    hubSpotAuthMessage,
		RenderKind: models.RenderLink,
		Link:       c.backend.HubSpotAuthURL(),
	})
}

func unavailableMessage(res *backend.ScheduleResult) string {
	msg := "Sorry, that time is not available."
	if res.Reason != "" {
		msg += " " + res.Reason
	}
	if res.SuggestedSlot != "" {
		msg += fmt.Sprintf(" The next available slot is %s.", res.SuggestedSlot)
	}
	return msg
}

func (c *Controller) nextFullHour() string {
	return c.opts.Now().UTC().Truncate(time.Hour).Add(time.Hour).Format(time.RFC3339)
}
