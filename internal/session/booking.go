package session

import (
	"chatwidget-gateway/internal/backend"
	"chatwidget-gateway/internal/models"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	bookingErrorMessage = "An error occurred while booking. Please try again."
	bookingSummary      = "Consultation Booking"
	bookingDescription  = "Booked via chatbot"
	defaultLeadName     = "Website visitor"
	defaultLeadInterest = "Booking Created"
)

// zone-less layouts produced by datetime-local inputs
var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// normalizeStart converts the visitor's date/time to RFC 3339 in UTC.
// Zone-less input is read in the configured booking timezone. Anything
// unparseable is passed through for the backend to judge.
func (c *Controller) normalizeStart(raw string) string {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	loc, err := time.LoadLocation(c.opts.Timezone)
	if err != nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return raw
}

// SubmitBooking checks availability for dateTime and, if the slot is free,
// creates the booking. Every outcome lands in the transcript. A refused slot
// keeps the draft open so the visitor can pick again; once the create call
// is attempted the draft is consumed.
func (c *Controller) SubmitBooking(ctx context.Context, dateTime string) (*models.Snapshot, error) {
	if strings.TrimSpace(dateTime) == "" {
		return nil, ErrEmptyDateTime
	}
	start := c.normalizeStart(dateTime)

	c.mu.Lock()
	draft := c.state.Booking
	sessionID := c.state.SessionID.String()
	c.bookingInFlight++
	c.syncTypingLocked()
	c.mu.Unlock()

	c.submitBooking(ctx, sessionID, start, draft)

	c.mu.Lock()
	c.bookingInFlight--
	c.syncTypingLocked()
	c.mu.Unlock()
	return c.Snapshot(), nil
}

func (c *Controller) submitBooking(ctx context.Context, sessionID, start string, draft models.BookingDraft) {
	sched, err := c.backend.CheckSchedule(ctx, backend.ScheduleRequest{
		User:       c.opts.User,
		Start:      start,
		Duration:   draft.DurationMinutes,
		CalendarID: c.opts.CalendarID,
	})
	if err != nil {
		c.logger.Warn("schedule check failed", zap.String("start", start), zap.Error(err))
		c.appendAssistant(models.Message{Content: bookingErrorMessage})
		return
	}
	if !sched.Allowed {
		c.appendAssistant(models.Message{Content: unavailableMessage(sched)})
		return
	}

	res, err := c.backend.CreateBooking(ctx, backend.BookingRequest{
		User:        c.opts.User,
		Start:       start,
		Duration:    draft.DurationMinutes,
		Summary:     bookingSummary,
		Description: bookingDescriptionFor(draft.Lead),
		CalendarID:  c.opts.CalendarID,
		Timezone:    c.opts.Timezone,
	})

	c.mu.Lock()
	c.state.Booking = models.NewBookingDraft()
	c.mu.Unlock()

	switch {
	case err != nil:
		c.logger.Warn("create booking failed", zap.String("start", start), zap.Error(err))
		c.appendAssistant(models.Message{Content: bookingErrorMessage})
	case !res.Allowed:
		msg := "Unable to book that slot."
		if res.Reason != "" {
			msg = fmt.Sprintf("Unable to book: %s", res.Reason)
		}
		c.appendAssistant(models.Message{Content: msg})
	default:
		content := "Booking confirmed!"
		if res.EventID != "" {
			content = fmt.Sprintf("Booking confirmed! Event ID: %s", res.EventID)
		}
		confirmation := c.appendAssistant(models.Message{
			Content:    content,
			RenderKind: models.RenderBookingConfirmation,
			EventID:    res.EventID,
		})
		c.runBookingSideEffects(ctx, confirmation.ID, models.BookingNotice{
			SessionID:       sessionID,
			EventID:         res.EventID,
			Start:           start,
			DurationMinutes: draft.DurationMinutes,
			Lead:            draft.Lead,
		})
	}
}

// runBookingSideEffects performs the CRM upsert and lead notification that
// follow a confirmed booking. Their outcomes are recorded against the
// confirmation message and never surface as transcript messages.
func (c *Controller) runBookingSideEffects(ctx context.Context, messageID string, notice models.BookingNotice) {
	lead := notice.Lead
	if strings.TrimSpace(lead.Email) == "" {
		c.recordSideEffect(models.SideEffect{MessageID: messageID, Kind: models.SideEffectCRMUpsert, Status: models.SideEffectSkipped, Detail: "no lead email"})
	} else {
		upsert := backend.LeadUpsert{
			Name:      lead.Name,
			Email:     lead.Email,
			Company:   lead.Company,
			Interest:  lead.Interest,
			SessionID: notice.SessionID,
		}
		if upsert.Name == "" {
			upsert.Name = defaultLeadName
		}
		if upsert.Interest == "" {
			upsert.Interest = defaultLeadInterest
		}
		res, err := c.backend.UpsertLead(ctx, upsert)
		if err != nil {
			c.logger.Warn("crm upsert failed", zap.String("message_id", messageID), zap.Error(err))
			c.recordSideEffect(models.SideEffect{MessageID: messageID, Kind: models.SideEffectCRMUpsert, Status: models.SideEffectFailed, Detail: err.Error()})
		} else {
			c.recordSideEffect(models.SideEffect{MessageID: messageID, Kind: models.SideEffectCRMUpsert, Status: models.SideEffectSucceeded, Detail: res.ContactID})
		}
	}

	if c.opts.Notifier == nil {
		c.recordSideEffect(models.SideEffect{MessageID: messageID, Kind: models.SideEffectLeadNotification, Status: models.SideEffectSkipped, Detail: "notifier not configured"})
		return
	}
	if err := c.opts.Notifier.NotifyBooking(ctx, notice); err != nil {
		c.logger.Warn("lead notification failed", zap.String("message_id", messageID), zap.Error(err))
		c.recordSideEffect(models.SideEffect{MessageID: messageID, Kind: models.SideEffectLeadNotification, Status: models.SideEffectFailed, Detail: err.Error()})
		return
	}
	c.recordSideEffect(models.SideEffect{MessageID: messageID, Kind: models.SideEffectLeadNotification, Status: models.SideEffectSucceeded})
}

func bookingDescriptionFor(lead models.LeadInfo) string {
	var b strings.Builder
	b.WriteString(bookingDescription)
	if lead.Name != "" {
		fmt.Fprintf(&b, "\nName: %s", lead.Name)
	}
	if lead.Company != "" {
		fmt.Fprintf(&b, "\nCompany: %s", lead.Company)
	}
	if lead.Interest != "" {
		fmt.Fprintf(&b, "\nInterest: %s", lead.Interest)
	}
	return b.String()
}

// UpdateBookingDraft applies the fields present in req to the draft.
func (c *Controller) UpdateBookingDraft(req models.UpdateBookingRequest) (*models.Snapshot, error) {
	if req.DurationMinutes != nil && !slices.Contains(models.AllowedBookingDurations, *req.DurationMinutes) {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, *req.DurationMinutes)
	}

	c.mu.Lock()
	d := &c.state.Booking
	if req.DurationMinutes != nil {
		d.DurationMinutes = *req.DurationMinutes
	}
	if req.PreferredDateTime != nil {
		if v := strings.TrimSpace(*req.PreferredDateTime); v != "" {
			d.PreferredDateTime = &v
		} else {
			d.PreferredDateTime = nil
		}
	}
	if req.Name != nil {
		d.Lead.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		d.Lead.Email = strings.TrimSpace(*req.Email)
	}
	if req.Company != nil {
		d.Lead.Company = strings.TrimSpace(*req.Company)
	}
	if req.Interest != nil {
		d.Lead.Interest = strings.TrimSpace(*req.Interest)
	}
	c.state.UpdatedAt = c.opts.Now().UTC()
	c.mu.Unlock()
	return c.Snapshot(), nil
}

// OpenBooking shows the booking form without waiting for a booking intent.
func (c *Controller) OpenBooking() *models.Snapshot {
	c.mu.Lock()
	c.state.Booking.Open = true
	c.mu.Unlock()
	return c.Snapshot()
}

// CancelBooking discards the draft.
func (c *Controller) CancelBooking() *models.Snapshot {
	c.mu.Lock()
	c.state.Booking = models.NewBookingDraft()
	c.state.UpdatedAt = c.opts.Now().UTC()
	c.mu.Unlock()
	return c.Snapshot()
}

func (c *Controller) appendAssistant(m models.Message) models.Message {
	m.Role = models.RoleAssistant
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(m)
}

func (c *Controller) recordSideEffect(se models.SideEffect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SideEffects = append(c.state.SideEffects, se)
}
