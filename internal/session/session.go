// Package session keeps the server-side half of login sessions: an opaque
// token handed to the browser as a cookie, mapped to a user id.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"computer-booking-backend/config"
)

// ErrNoSession is returned by Lookup for unknown or expired tokens.
var ErrNoSession = errors.New("no such session")

// Store creates, resolves and destroys session tokens.
type Store interface {
	Create(ctx context.Context, userID int64) (string, error)
	Lookup(ctx context.Context, token string) (int64, error)
	Delete(ctx context.Context, token string) error
}

// New builds the backend selected by cfg.Backend.
func New(cfg *config.SessionConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(rdb, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}

func newToken() string {
	return uuid.NewString()
}

type memoryStore struct {
	c   *cache.Cache
	ttl time.Duration
}

// NewMemoryStore keeps sessions in process memory. Sessions are lost on restart.
func NewMemoryStore(ttl time.Duration) Store {
	return &memoryStore{c: cache.New(ttl, 10*time.Minute), ttl: ttl}
}

func (s *memoryStore) Create(_ context.Context, userID int64) (string, error) {
	tok := newToken()
	s.c.Set(tok, userID, s.ttl)
	return tok, nil
}

func (s *memoryStore) Lookup(_ context.Context, token string) (int64, error) {
	v, found := s.c.Get(token)
	if !found {
		return 0, ErrNoSession
	}
	return v.(int64), nil
}

func (s *memoryStore) Delete(_ context.Context, token string) error {
	s.c.Delete(token)
	return nil
}

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore keeps sessions in Redis under "sess:<token>" with a TTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	return &redisStore{rdb: rdb, ttl: ttl}
}

func (s *redisStore) key(tok string) string { return "sess:" + tok }

func (s *redisStore) Create(ctx context.Context, userID int64) (string, error) {
	tok := newToken()
	if err := s.rdb.Set(ctx, s.key(tok), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return tok, nil
}

func (s *redisStore) Lookup(ctx context.Context, token string) (int64, error) {
	v, err := s.rdb.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session: %w", err)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value %q: %w", v, err)
	}
	return id, nil
}

func (s *redisStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
