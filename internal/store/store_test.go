package store

import (
	"bytes"
	"chatwidget-gateway/internal/crypto"
	"chatwidget-gateway/internal/models"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *models.Snapshot {
	when := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		SessionID: uuid.New(),
		Messages: []models.Message{
			{ID: "msg-1", Role: models.RoleAssistant, Content: "Hi there", RenderKind: models.RenderPlain, CreatedAt: when},
		},
		Suggestions:    []string{"Pricing"},
		Booking:        models.NewBookingDraft(),
		NextMessageSeq: 1,
		CreatedAt:      when,
		UpdatedAt:      when,
	}
}

func TestCodecPlainJSON(t *testing.T) {
	codec := NewCodec(nil)
	snap := testSnapshot()

	payload, err := codec.Encode(snap)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(payload, []byte("Hi there")))

	got, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestCodecSealed(t *testing.T) {
	key, err := crypto.ParseHexKey("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	sealer, err := crypto.NewSealer(key)
	require.NoError(t, err)
	codec := NewCodec(sealer)
	snap := testSnapshot()

	payload, err := codec.Encode(snap)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(payload, []byte("Hi there")))

	got, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, got.SessionID)
	assert.Equal(t, snap.Messages, got.Messages)

	_, err = NewCodec(nil).Decode(payload)
	assert.Error(t, err)
}
