package httpx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-order-desk/internal/redisx"
	"github.com/ariefcatur/go-order-desk/internal/users"
)

const sessionCookie = "order_desk_session"

var ErrNoSession = errors.New("no session")

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Name   string
	Role   users.Role
}

// SessionStore is what the middleware and auth handler need; RedisSessions
// is the real one, tests use a fake.
type SessionStore interface {
	Create(ctx context.Context, u users.User) (string, error)
	Get(ctx context.Context, id string) (Principal, error)
	Destroy(ctx context.Context, id string) error
}

// RedisSessions keeps one hash per session under sess:{id} with the TTL
// refreshed on every hit, so active sessions stay alive.
type RedisSessions struct {
	Redis *redis.Client
	TTL   time.Duration
}

func (s *RedisSessions) Create(ctx context.Context, u users.User) (string, error) {
	id := uuid.NewString()
	key := fmt.Sprintf(redisx.KeySession, id)
	if err := s.Redis.HSet(ctx, key, "user_id", u.ID, "name", u.Name, "role", string(u.Role)).Err(); err != nil {
		return "", err
	}
	if err := s.Redis.Expire(ctx, key, s.TTL).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisSessions) Get(ctx context.Context, id string) (Principal, error) {
	key := fmt.Sprintf(redisx.KeySession, id)
	vals, err := s.Redis.HGetAll(ctx, key).Result()
	if err != nil {
		return Principal{}, err
	}
	if len(vals) == 0 {
		return Principal{}, ErrNoSession
	}
	role, ok := users.ParseRole(vals["role"])
	if !ok {
		return Principal{}, ErrNoSession
	}
	_ = s.Redis.Expire(ctx, key, s.TTL).Err()
	return Principal{UserID: vals["user_id"], Name: vals["name"], Role: role}, nil
}

func (s *RedisSessions) Destroy(ctx context.Context, id string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeySession, id)).Err()
}
