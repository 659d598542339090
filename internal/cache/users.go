package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const userKeyPrefix = "messaging:user:"

// Users is a read-through redis cache in front of a UserRepository. Only
// display attributes are cached; the follow graph is always read from the
// store. Any redis failure falls back to the store.
type Users struct {
	next   repositories.UserRepository
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

// NewUsers wraps next. A nil client disables caching.
func NewUsers(next repositories.UserRepository, client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *Users {
	return &Users{next: next, client: client, ttl: ttl, log: log}
}

// GetUser returns the cached profile or loads and caches it.
func (u *Users) GetUser(ctx context.Context, userID string) (models.User, error) {
	if u.client == nil {
		return u.next.GetUser(ctx, userID)
	}

	raw, err := u.client.Get(ctx, userKeyPrefix+userID).Bytes()
	switch {
	case err == nil:
		var user models.User
		if jsonErr := json.Unmarshal(raw, &user); jsonErr == nil {
			return user, nil
		}
		u.log.Warn().Str("user_id", userID).Msg("discarding unreadable cached profile")
	case !errors.Is(err, redis.Nil):
		u.log.Debug().Err(err).Str("user_id", userID).Msg("profile cache read failed")
	}

	user, err := u.next.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	if payload, err := json.Marshal(user); err == nil {
		if err := u.client.Set(ctx, userKeyPrefix+userID, payload, u.ttl).Err(); err != nil {
			u.log.Debug().Err(err).Str("user_id", userID).Msg("profile cache write failed")
		}
	}
	return user, nil
}

// ListFollowing is not cached.
func (u *Users) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return u.next.ListFollowing(ctx, userID)
}

// NewRedisClient builds a client for addr, or nil when addr is empty.
func NewRedisClient(ctx context.Context, addr, password string, log zerolog.Logger) redis.UniversalClient {
	if addr == "" {
		log.Info().Msg("profile cache disabled: empty redis addr")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, profile reads fall back to the store")
	} else {
		log.Info().Str("addr", addr).Msg("redis connected")
	}
	return client
}
