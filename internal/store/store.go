package store

import (
	"chatwidget-gateway/internal/crypto"
	"chatwidget-gateway/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no session is stored under an id.
var ErrNotFound = errors.New("record not found")

// Store persists widget session snapshots.
type Store interface {
	// Get returns the snapshot for id or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	// Save inserts or replaces the snapshot keyed by its SessionID.
	Save(ctx context.Context, snap *models.Snapshot) error
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}

// Codec turns snapshots into stored payloads. With a Sealer configured the
// JSON is encrypted at rest.
type Codec struct {
	sealer *crypto.Sealer
}

// NewCodec creates a Codec. A nil sealer stores plain JSON.
func NewCodec(sealer *crypto.Sealer) *Codec {
	return &Codec{sealer: sealer}
}

// Encode marshals and optionally seals snap.
func (c *Codec) Encode(snap *models.Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if c == nil || c.sealer == nil {
		return payload, nil
	}
	sealed, err := c.sealer.Seal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt session: %w", err)
	}
	return sealed, nil
}

// Decode reverses Encode.
func (c *Codec) Decode(payload []byte) (*models.Snapshot, error) {
	if c != nil && c.sealer != nil {
		opened, err := c.sealer.Open(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt session: %w", err)
		}
		payload = opened
	}
	var snap models.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &snap, nil
}
