package models

// --- Request Structs ---

// CreateSessionRequest is the body of POST /v1/sessions. A token previously
// issued by the gateway restores that session instead of creating a new one.
type CreateSessionRequest struct {
	Token string `json:"token,omitempty"`
}

// SendMessageRequest is the body of POST /v1/session/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// UpdateBookingRequest is the body of PUT /v1/session/booking.
// Only fields present in the request are updated.
type UpdateBookingRequest struct {
	DurationMinutes   *int    `json:"duration_minutes,omitempty"`
	PreferredDateTime *string `json:"preferred_date_time,omitempty"`
	Name              *string `json:"name,omitempty"`
	Email             *string `json:"email,omitempty"`
	Company           *string `json:"company,omitempty"`
	Interest          *string `json:"interest,omitempty"`
}

// SubmitBookingRequest is the body of POST /v1/session/booking.
type SubmitBookingRequest struct {
	DateTime string `json:"date_time"`
}

// --- Response Structs ---

// SessionResponse carries the session token together with the rendered state.
type SessionResponse struct {
	Token   string    `json:"token"`
	Session *Snapshot `json:"session"`
}

// AuthLinkResponse carries an authorization URL for the widget to open.
type AuthLinkResponse struct {
	URL string `json:"url"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
