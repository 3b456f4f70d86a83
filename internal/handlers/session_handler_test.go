package handlers

import (
	"chatwidget-gateway/internal/auth"
	"chatwidget-gateway/internal/models"
	"chatwidget-gateway/internal/services"
	"chatwidget-gateway/internal/session"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	err       error
	lastToken string
	lastText  string
}

func (f *fakeService) snapshot(id uuid.UUID) (*models.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Snapshot{SessionID: id, Messages: []models.Message{}, Suggestions: []string{}}, nil
}

func (f *fakeService) StartSession(_ context.Context, token string) (string, *models.Snapshot, error) {
	f.lastToken = token
	snap, err := f.snapshot(uuid.New())
	return "issued-token", snap, err
}

func (f *fakeService) GetSession(_ context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return f.snapshot(id)
}

func (f *fakeService) SendMessage(_ context.Context, id uuid.UUID, text string) (*models.Snapshot, error) {
	f.lastText = text
	return f.snapshot(id)
}

func (f *fakeService) UpdateBooking(_ context.Context, id uuid.UUID, _ models.UpdateBookingRequest) (*models.Snapshot, error) {
	return f.snapshot(id)
}

func (f *fakeService) OpenBooking(_ context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return f.snapshot(id)
}

func (f *fakeService) SubmitBooking(_ context.Context, id uuid.UUID, _ string) (*models.Snapshot, error) {
	return f.snapshot(id)
}

func (f *fakeService) CancelBooking(_ context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return f.snapshot(id)
}

func (f *fakeService) HubSpotAuthURL(context.Context, uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://backend.example.com/api/hubspot/auth", nil
}

func (f *fakeService) EndSession(context.Context, uuid.UUID) error {
	return f.err
}

func withSession(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(auth.WithSessionID(r.Context(), id))
}

func TestHandleStartSessionTokenSources(t *testing.T) {
	svc := &fakeService{}
	h := NewSessionHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.HandleStartSession(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", svc.lastToken)
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "issued-token", resp.Token)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"token":" body-token "}`))
	req.Header.Set("Authorization", "Bearer header-token")
	h.HandleStartSession(httptest.NewRecorder(), req)
	assert.Equal(t, "body-token", svc.lastToken)

	req = httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer header-token")
	h.HandleStartSession(httptest.NewRecorder(), req)
	assert.Equal(t, "header-token", svc.lastToken)

	rec = httptest.NewRecorder()
	h.HandleStartSession(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`[1,2`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSendMessagePassesText(t *testing.T) {
	svc := &fakeService{}
	h := NewSessionHandler(svc, nil)
	id := uuid.New()

	req := withSession(httptest.NewRequest(http.MethodPost, "/v1/session/messages", strings.NewReader(`{"message":"hi there"}`)), id)
	rec := httptest.NewRecorder()
	h.HandleSendMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi there", svc.lastText)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, id, snap.SessionID)
}

func TestHandlersRequireSessionContext(t *testing.T) {
	h := NewSessionHandler(&fakeService{}, nil)
	rec := httptest.NewRecorder()
	h.HandleGetSession(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEndSession(t *testing.T) {
	h := NewSessionHandler(&fakeService{}, nil)
	rec := httptest.NewRecorder()
	h.HandleEndSession(rec, withSession(httptest.NewRequest(http.MethodDelete, "/v1/session", nil), uuid.New()))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{err: session.ErrSessionNotFound, code: http.StatusNotFound},
		{err: fmt.Errorf("%w: bad duration", services.ErrValidation), code: http.StatusBadRequest},
		{err: errors.New("redis down"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewSessionHandler(&fakeService{err: tt.err}, nil)
			id := uuid.New()

			for _, call := range []struct {
				fn   http.HandlerFunc
				body string
			}{
				{fn: h.HandleGetSession},
				{fn: h.HandleSendMessage, body: `{"message":"x"}`},
				{fn: h.HandleUpdateBooking, body: `{}`},
				{fn: h.HandleOpenBooking},
				{fn: h.HandleSubmitBooking, body: `{"date_time":"2025-03-11T10:00:00Z"}`},
				{fn: h.HandleCancelBooking},
				{fn: h.HandleHubSpotAuth},
				{fn: h.HandleEndSession},
			} {
				req := withSession(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(call.body)), id)
				rec := httptest.NewRecorder()
				call.fn(rec, req)
				assert.Equal(t, tt.code, rec.Code)
			}
		})
	}
}
