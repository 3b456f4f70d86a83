package postgres

import (
	"chatwidget-gateway/internal/models"
	"chatwidget-gateway/internal/store"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS widget_sessions (
	id         UUID PRIMARY KEY,
	payload    BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// querier is the part of *pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db     querier
	pool   *pgxpool.Pool
	codec  *store.Codec
	logger *zap.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, codec *store.Codec, logger *zap.Logger) *PostgresStore {
	s := newStore(pool, codec, logger)
	s.pool = pool
	return s
}

func newStore(db querier, codec *store.Codec, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, codec: codec, logger: logger.Named("postgres_store")}
}

// EnsureSchema creates the widget_sessions table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create widget_sessions table: %w", err)
	}
	return nil
}

// Get retrieves a session snapshot by id.
// Returns store.ErrNotFound if the session does not exist.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	query := `SELECT payload FROM widget_sessions WHERE id = $1`

	var payload []byte
	if err := s.db.QueryRow(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.logger.Error("failed to fetch session", zap.String("session_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("database error fetching session: %w", err)
	}
	return s.codec.Decode(payload)
}

// Save upserts the snapshot. created_at is kept from the first insert.
func (s *PostgresStore) Save(ctx context.Context, snap *models.Snapshot) error {
	payload, err := s.codec.Encode(snap)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO widget_sessions (id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	if _, err := s.db.Exec(ctx, query, snap.SessionID, payload, snap.CreatedAt, snap.UpdatedAt); err != nil {
		s.logger.Error("failed to save session", zap.String("session_id", snap.SessionID.String()), zap.Error(err))
		return fmt.Errorf("database error saving session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM widget_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database error deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
