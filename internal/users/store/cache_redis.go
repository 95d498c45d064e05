package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rolegate/internal/users/models"
	id "rolegate/pkg/domain"
	"rolegate/pkg/platform/sentinel"
)

const (
	userCacheKeyPrefix       = "rolegate:user:"
	userGenerationKeyPrefix  = "rolegate:user-gen:"
	userGenerationRetainTime = 24 * time.Hour
)

// RedisCache shares resolved identities between instances. Invalidation
// generations live in Redis too, so an invalidate on one instance fences
// in-flight loads on every other.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// cachedUser keeps the password hash, which the public JSON shape omits.
type cachedUser struct {
	*models.User
	HashedPassword string `json:"hashed_password"`
}

func userCacheKey(userID id.UserID) string {
	return userCacheKeyPrefix + userID.String()
}

func userGenerationKey(userID id.UserID) string {
	return userGenerationKeyPrefix + userID.String()
}

func (c *RedisCache) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	raw, err := c.client.Get(ctx, userCacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get user: %w", err)
	}
	entry := cachedUser{User: &models.User{}}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	entry.User.HashedPassword = entry.HashedPassword
	return entry.User, nil
}

func (c *RedisCache) Generation(ctx context.Context, userID id.UserID) (uint64, error) {
	gen, err := readGeneration(ctx, c.client, userID)
	if err != nil {
		return 0, fmt.Errorf("redis get user generation: %w", err)
	}
	return gen, nil
}

// stringGetter is satisfied by both *redis.Client and a WATCH transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd stringGetter, userID id.UserID) (uint64, error) {
	gen, err := cmd.Get(ctx, userGenerationKey(userID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores user while the generation key is WATCHed, so an Invalidate that
// lands between the check and the write aborts the write.
func (c *RedisCache) Set(ctx context.Context, user *models.User, generation uint64) error {
	raw, err := json.Marshal(cachedUser{User: user, HashedPassword: user.HashedPassword})
	if err != nil {
		return fmt.Errorf("encode cached user: %w", err)
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userCacheKey(user.ID), raw, c.ttl)
			return nil
		})
		return err
	}, userGenerationKey(user.ID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set user: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, userID id.UserID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, userGenerationKey(userID))
		pipe.Expire(ctx, userGenerationKey(userID), userGenerationRetainTime)
		pipe.Del(ctx, userCacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate user: %w", err)
	}
	return nil
}
