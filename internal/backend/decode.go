package backend

import (
	"chatwidget-gateway/internal/models"
	"encoding/json"
	"fmt"
	"strings"
)

// The backend has been deployed in several revisions that disagree on field
// names. Everything below folds those aliases into one schema so the session
// controller never sees them.

// ChatReply is the normalised answer to a chat turn.
type ChatReply struct {
	Answer      string
	Suggestions []string
	Intent      string
	Action      string
}

// ScheduleResult is the normalised availability answer.
type ScheduleResult struct {
	Allowed       bool
	Reason        string
	SuggestedSlot string
}

// BookingResult is the normalised booking-creation answer.
type BookingResult struct {
	Allowed bool
	EventID string
	Reason  string
}

// LeadUpsertResult is the CRM response. Both fields may be empty.
type LeadUpsertResult struct {
	ContactID string
	Status    string
}

type rawFields map[string]json.RawMessage

func decodeFields(body []byte) (rawFields, error) {
	var fields rawFields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	return fields, nil
}

// str returns the first alias that holds a JSON string.
func (f rawFields) str(keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return "", false
}

// boolean returns the first alias that holds a JSON boolean.
func (f rawFields) boolean(keys ...string) (bool, bool) {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok || isNull(raw) {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b, true
		}
	}
	return false, false
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// DecodeChatReply normalises a /api/chat body.
func DecodeChatReply(body []byte) (*ChatReply, error) {
	fields, err := decodeFields(body)
	if err != nil {
		return nil, err
	}

	answer, ok := fields.str("answer", "reply", "response")
	if !ok {
		return nil, fmt.Errorf("%w: chat response has no answer", ErrMalformedResponse)
	}

	reply := &ChatReply{Answer: answer, Suggestions: []string{}}
	for _, k := range []string{"suggestions", "upsell", "upsells"} {
		if raw, ok := fields[k]; ok && !isNull(raw) {
			reply.Suggestions = decodeSuggestions(raw)
			break
		}
	}
	reply.Intent, _ = fields.str("intent_hint", "intent")
	reply.Intent = strings.TrimSpace(reply.Intent)
	reply.Action, _ = fields.str("action")
	return reply, nil
}

// decodeSuggestions accepts a list of strings, a list of objects carrying
// text/label/service, or a single string. Unusable entries are dropped.
func decodeSuggestions(raw json.RawMessage) []string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
		return []string{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj rawFields
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		if s, ok := obj.str("text", "label", "service"); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// DecodeScheduleResult normalises a /api/schedule-check body.
func DecodeScheduleResult(body []byte) (*ScheduleResult, error) {
	fields, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	allowed, ok := fields.boolean("allowed", "available")
	if !ok {
		return nil, fmt.Errorf("%w: schedule response has no availability flag", ErrMalformedResponse)
	}
	res := &ScheduleResult{Allowed: allowed}
	res.Reason, _ = fields.str("reason", "message")
	res.SuggestedSlot, _ = fields.str("suggested_slot")
	return res, nil
}

// DecodeBookingResult normalises a /api/create-booking body.
func DecodeBookingResult(body []byte) (*BookingResult, error) {
	fields, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	allowed, ok := fields.boolean("allowed", "success")
	if !ok {
		return nil, fmt.Errorf("%w: booking response has no success flag", ErrMalformedResponse)
	}
	res := &BookingResult{Allowed: allowed}
	res.EventID, _ = fields.str("event_id", "eventLink")
	res.Reason, _ = fields.str("reason", "message")
	return res, nil
}

// DecodePricing decodes a /api/pricing body.
func DecodePricing(body []byte) (*models.PricingInfo, error) {
	var info models.PricingInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if info.DurationOptions == nil {
		info.DurationOptions = []models.PricingOption{}
	}
	return &info, nil
}

// DecodeAuthURL extracts auth_url from a /api/calendar/auth body.
func DecodeAuthURL(body []byte) (string, error) {
	fields, err := decodeFields(body)
	if err != nil {
		return "", err
	}
	url, ok := fields.str("auth_url", "url")
	if !ok || url == "" {
		return "", fmt.Errorf("%w: auth response has no auth_url", ErrMalformedResponse)
	}
	return url, nil
}

// DecodeLeadUpsertResult tolerates any JSON object, including an empty one.
func DecodeLeadUpsertResult(body []byte) *LeadUpsertResult {
	res := &LeadUpsertResult{}
	fields, err := decodeFields(body)
	if err != nil {
		return res
	}
	res.ContactID, _ = fields.str("hubspot_contact_id", "contact_id")
	res.Status, _ = fields.str("status")
	return res
}
