package redis

import (
	"chatwidget-gateway/internal/models"
	"chatwidget-gateway/internal/store"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "widget:session:"

var _ store.Store = (*RedisStore)(nil)

// RedisStore keeps encoded snapshots under widget:session:<id>. Every save
// refreshes the key's TTL, so idle sessions expire on their own.
type RedisStore struct {
	client *goredis.Client
	codec  *store.Codec
	ttl    time.Duration
}

// Options holds connection settings for NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with a PING.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// NewRedisStore wraps client. A ttl of zero keeps sessions forever.
func NewRedisStore(client *goredis.Client, codec *store.Codec, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, codec: codec, ttl: ttl}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	payload, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redis error fetching session %s: %w", id, err)
	}
	return s.codec.Decode(payload)
}

func (s *RedisStore) Save(ctx context.Context, snap *models.Snapshot) error {
	payload, err := s.codec.Encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key(snap.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis error saving session %s: %w", snap.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.client.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis error deleting session %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
