package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "secure-user-api/internal/domain/user"
)

// UserCache defines the interface for user caching operations.
type UserCache interface {
	// Get retrieves a user from cache by ID.
	// Returns nil if user is not found in cache.
	Get(ctx context.Context, id int64) (*domain.User, error)

	// Set stores a user in cache with the configured TTL unless the cache
	// already holds the same or a later version of it.
	Set(ctx context.Context, user *domain.User) error

	// Delete evicts a user and keeps older versions from being cached again.
	Delete(ctx context.Context, id int64) error
}

// Each user is a hash holding its version and its JSON form. The version is
// the user's last modification time in nanoseconds, zero padded so versions
// compare as strings. A deleted user keeps a tombstone version that no write
// can beat until the key expires.
const (
	fieldVersion = "v"
	fieldData    = "data"
)

var tombstone = fmt.Sprintf("%019d", int64(math.MaxInt64))

// setIfNewerScript writes the entry only when its version is greater than the
// cached one. It returns 1 when the entry was written.
var setIfNewerScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'v')
if current and current >= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisUserCache implements UserCache using Redis as the backing store.
type RedisUserCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache creates a new Redis-backed user cache.
func NewRedisUserCache(client redis.Cmdable, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Version orders cached copies of a user.
func Version(u *domain.User) string {
	return fmt.Sprintf("%019d", u.LastModified().UnixNano())
}

// entry is the cached JSON form of a user.
type entry struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Bio       *string    `json:"bio"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Key returns the Redis key for a user ID.
func Key(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// Get retrieves a user from Redis cache.
func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.User, error) {
	data, err := c.client.HGet(ctx, Key(id), fieldData).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("cache miss", zap.Int64("user_id", id))
		return nil, nil
	}
	if err != nil {
		c.log.Error("failed to get from cache", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Error("failed to unmarshal cached user", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	c.log.Debug("cache hit", zap.Int64("user_id", id))
	return &domain.User{
		ID:        e.ID,
		Email:     e.Email,
		FullName:  e.FullName,
		Bio:       e.Bio,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

// Set stores a user in Redis cache with TTL. A copy older than the cached one
// is dropped without error.
func (c *RedisUserCache) Set(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(entry{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Bio:       user.Bio,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err != nil {
		c.log.Error("failed to marshal user for cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return err
	}

	written, err := setIfNewerScript.Run(ctx, c.client, []string{Key(user.ID)}, Version(user), data, c.ttl.Milliseconds()).Int64()
	if err != nil {
		c.log.Error("failed to set cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return err
	}
	if written == 0 {
		c.log.Debug("kept newer cached user", zap.Int64("user_id", user.ID))
		return nil
	}

	c.log.Debug("cached user", zap.Int64("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return nil
}

// Delete replaces the cached user with a tombstone for one TTL.
func (c *RedisUserCache) Delete(ctx context.Context, id int64) error {
	key := Key(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, fieldData)
		pipe.HSet(ctx, key, fieldVersion, tombstone)
		pipe.PExpire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		c.log.Error("failed to delete from cache", zap.Int64("user_id", id), zap.Error(err))
		return err
	}

	c.log.Debug("deleted from cache", zap.Int64("user_id", id))
	return nil
}
