package models

import (
	"time"
)

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RenderKind tells the widget which UI block to draw for a message.
type RenderKind string

const (
	RenderPlain               RenderKind = "plain"
	RenderPricing             RenderKind = "pricing"
	RenderBookingConfirmation RenderKind = "booking_confirmation"
	RenderBookingPicker       RenderKind = "booking_picker"
	RenderLink                RenderKind = "link"
)

// Message represents a single turn in a widget transcript.
// Messages are never modified after they are appended to a session.
type Message struct {
	ID         string       `json:"id"`
	Role       Role         `json:"role"`
	Content    string       `json:"content"`
	RenderKind RenderKind   `json:"render_kind"`
	Pricing    *PricingInfo `json:"pricing,omitempty"` // Set when RenderKind is pricing
	Link       string       `json:"link,omitempty"`    // Set when RenderKind is link
	EventID    string       `json:"event_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// PricingInfo is the pricing card rendered for a pricing message.
type PricingInfo struct {
	Service         string          `json:"service"`
	DurationOptions []PricingOption `json:"duration_options"`
	DefaultCTA      string          `json:"default_cta,omitempty"`
}

// PricingOption is one row of a pricing card.
type PricingOption struct {
	Duration  string  `json:"duration"`
	Price     float64 `json:"price"`
	Breakdown string  `json:"breakdown,omitempty"`
}

// SideEffectKind names a secondary call triggered by a transcript message.
type SideEffectKind string

const (
	SideEffectCRMUpsert        SideEffectKind = "crm_upsert"
	SideEffectLeadNotification SideEffectKind = "lead_notification"
)

// SideEffectStatus is the outcome of a secondary call.
type SideEffectStatus string

const (
	SideEffectSucceeded SideEffectStatus = "succeeded"
	SideEffectFailed    SideEffectStatus = "failed"
	SideEffectSkipped   SideEffectStatus = "skipped"
)

// SideEffect records the outcome of a best-effort call attached to the
// message that triggered it. The widget may ignore these.
type SideEffect struct {
	MessageID string           `json:"message_id"`
	Kind      SideEffectKind   `json:"kind"`
	Status    SideEffectStatus `json:"status"`
	Detail    string           `json:"detail,omitempty"`
}
