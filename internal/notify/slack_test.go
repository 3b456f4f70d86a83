package notify

import (
	"chatwidget-gateway/internal/models"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotice() models.BookingNotice {
	return models.BookingNotice{
		SessionID:       "3f0c9d2e-0000-4000-8000-000000000001",
		EventID:         "evt_1",
		Start:           "2025-03-11T10:00:00Z",
		DurationMinutes: 30,
		Lead:            models.LeadInfo{Name: "Ada", Email: "ada@example.com"},
	}
}

func TestNewSlackNotifierDisabled(t *testing.T) {
	assert.Nil(t, NewSlackNotifier("", "C123", nil))
	assert.Nil(t, NewSlackNotifier("xoxb-token", "", nil))

	var n *SlackNotifier
	assert.ErrorIs(t, n.NotifyBooking(context.Background(), testNotice()), ErrNotConfigured)
}

func TestNotifyBookingPostsMessage(t *testing.T) {
	var gotChannel, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		gotChannel = r.FormValue("channel")
		gotText = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier("xoxb-token", "C123", nil, slack.OptionAPIURL(srv.URL+"/"))
	require.NotNil(t, n)

	require.NoError(t, n.NotifyBooking(context.Background(), testNotice()))
	assert.Equal(t, "C123", gotChannel)
	assert.Contains(t, gotText, "evt_1")
	assert.Contains(t, gotText, "ada@example.com")
}

func TestNotifyBookingSlackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier("xoxb-token", "C404", nil, slack.OptionAPIURL(srv.URL+"/"))
	err := n.NotifyBooking(context.Background(), testNotice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestFormatBookingNotice(t *testing.T) {
	text := FormatBookingNotice(testNotice())
	assert.Contains(t, text, "2025-03-11T10:00:00Z (30 min)")
	assert.Contains(t, text, "Name: Ada")
	assert.NotContains(t, text, "Company:")
}
