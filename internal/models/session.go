package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultBookingDuration is used until the visitor picks another duration.
const DefaultBookingDuration = 60

// AllowedBookingDurations lists the meeting lengths the widget offers, in minutes.
var AllowedBookingDurations = []int{15, 30, 60}

// LeadInfo is the contact data collected by the booking form and forwarded to the CRM.
type LeadInfo struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Company  string `json:"company,omitempty"`
	Interest string `json:"interest,omitempty"`
}

// BookingDraft holds the booking form state between the picker being offered
// and the visitor submitting or cancelling it.
type BookingDraft struct {
	Open              bool     `json:"open"`
	DurationMinutes   int      `json:"duration_minutes"`
	PreferredDateTime *string  `json:"preferred_date_time"`
	Lead              LeadInfo `json:"lead"`
}

// NewBookingDraft returns a closed draft with the default duration.
func NewBookingDraft() BookingDraft {
	return BookingDraft{DurationMinutes: DefaultBookingDuration}
}

// Snapshot is a point-in-time copy of a widget session. It is what the
// gateway renders to the widget and what stores persist.
type Snapshot struct {
	SessionID      uuid.UUID    `json:"session_id"`
	Messages       []Message    `json:"messages"`
	Suggestions    []string     `json:"suggestions"`
	Typing         bool         `json:"typing"`
	Booking        BookingDraft `json:"booking"`
	SideEffects    []SideEffect `json:"side_effects,omitempty"`
	LatestRequest  uint64       `json:"latest_request"`
	NextMessageSeq uint64       `json:"next_message_seq"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		if m.Pricing != nil {
			p := *m.Pricing
			p.DurationOptions = append([]PricingOption(nil), m.Pricing.DurationOptions...)
			m.Pricing = &p
		}
		out.Messages[i] = m
	}
	out.Suggestions = append([]string{}, s.Suggestions...)
	out.SideEffects = append([]SideEffect(nil), s.SideEffects...)
	if s.Booking.PreferredDateTime != nil {
		v := *s.Booking.PreferredDateTime
		out.Booking.PreferredDateTime = &v
	}
	return &out
}

// BookingNotice describes a confirmed booking for lead notifications.
type BookingNotice struct {
	SessionID       string
	EventID         string
	Start           string
	DurationMinutes int
	Lead            LeadInfo
}
