package handlers

import (
	"chatwidget-gateway/internal/auth"
	"chatwidget-gateway/internal/models"
	"chatwidget-gateway/internal/services"
	"chatwidget-gateway/internal/session"
	"chatwidget-gateway/pkg/httputil"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WidgetService defines the interface expected from the widget service.
type WidgetService interface {
	StartSession(ctx context.Context, token string) (string, *models.Snapshot, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	SendMessage(ctx context.Context, id uuid.UUID, text string) (*models.Snapshot, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, req models.UpdateBookingRequest) (*models.Snapshot, error)
	OpenBooking(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	SubmitBooking(ctx context.Context, id uuid.UUID, dateTime string) (*models.Snapshot, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	HubSpotAuthURL(ctx context.Context, id uuid.UUID) (string, error)
	EndSession(ctx context.Context, id uuid.UUID) error
}

type SessionHandler struct {
	service WidgetService
	logger  *zap.Logger
}

func NewSessionHandler(svc WidgetService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{service: svc, logger: logger.Named("handlers")}
}

// HandleStartSession handles POST /v1/sessions. The token may come in the
// body or as a bearer header; an absent body is allowed.
func (h *SessionHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = httputil.BearerToken(r)
	}

	newToken, snap, err := h.service.StartSession(r.Context(), token)
	if err != nil {
		h.respondServiceError(w, "start session", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.SessionResponse{Token: newToken, Session: snap})
}

// HandleGetSession handles GET /v1/session.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	snap, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get session", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snap)
}

// HandleSendMessage handles POST /v1/session/messages.
func (h *SessionHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	snap, err := h.service.SendMessage(r.Context(), id, req.Message)
	if err != nil {
		h.respondServiceError(w, "send message", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snap)
}

// HandleUpdateBooking handles PUT /v1/session/booking.
func (h *SessionHandler) HandleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	var req models.UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	snap, err := h.service.UpdateBooking(r.Context(), id, req)
	if err != nil {
		h.respondServiceError(w, "update booking", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snap)
}

// HandleOpenBooking handles POST /v1/session/booking/open.
func (h *SessionHandler) HandleOpenBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	snap, err := h.service.OpenBooking(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "open booking", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snap)
}

// HandleSubmitBooking handles POST /v1/session/booking.
func (h *SessionHandler) HandleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	var req models.SubmitBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	snap, err := h.service.SubmitBooking(r.Context(), id, req.DateTime)
	if err != nil {
		h.respondServiceError(w, "submit booking", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snap)
}

// HandleCancelBooking handles DELETE /v1/session/booking.
func (h *SessionHandler) HandleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	snap, err := h.service.CancelBooking(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "cancel booking", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, snap)
}

// HandleHubSpotAuth handles GET /v1/session/hubspot-auth.
func (h *SessionHandler) HandleHubSpotAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	url, err := h.service.HubSpotAuthURL(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "hubspot auth", err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.AuthLinkResponse{URL: url})
}

// HandleEndSession handles DELETE /v1/session.
func (h *SessionHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.EndSession(r.Context(), id); err != nil {
		h.respondServiceError(w, "end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError maps service errors to HTTP status codes.
func (h *SessionHandler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, services.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func sessionIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.GetSessionIDFromContext(r.Context())
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

// decodeOptional decodes a JSON body into v, treating an empty body as {}.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
