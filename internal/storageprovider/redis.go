package storageprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/session"
	"github.com/getsentry/tickprof/internal/storageutil"
)

// Redis implements session.Store with a single compressed value per key.
type Redis struct {
	client *backend.Client
	prefix string
	name   string
	ttl    time.Duration
}

type RedisOption func(*Redis)

// WithTTL sets the expiration of the stored session. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix replaces the default "tickprof:session:" key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis returns a store for key using an existing client.
func NewRedis(client *backend.Client, key string, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "tickprof:session:",
		name:   key,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedisFromURL parses a redis:// URL and returns a store for key.
func NewRedisFromURL(url, key string, opts ...RedisOption) (*Redis, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedis(backend.NewClient(options), key, opts...), nil
}

func (r *Redis) key() string {
	return r.prefix + r.name
}

func (r *Redis) Load(ctx context.Context) (*session.Session, error) {
	b, err := r.client.Get(ctx, r.key()).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%s: %w", r.key(), errorutil.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load from redis: %w", err)
	}
	var s session.Session
	if err := storageutil.Decompress(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Redis) Save(ctx context.Context, s *session.Session) error {
	b, err := storageutil.Compress(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
