package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bisonbooks/backend/internal/models"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	subscriptionCachePrefix = "billing:sub:"
	generationCachePrefix   = "billing:sub:gen:"
	defaultCacheTTL         = 5 * time.Minute
)

// SubscriptionCache keeps resolved subscriptions close to the API.
// Implementations swallow their own failures; a miss falls through to the store.
//
// Generation is read before the store lookup and handed back to Set. Every
// Invalidate moves the generation on, so a row read before an invalidation is
// never written over it.
type SubscriptionCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Subscription, bool)
	Generation(ctx context.Context, userID uuid.UUID) string
	Set(ctx context.Context, userID uuid.UUID, sub *models.Subscription, generation string)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// setIfGenerationScript writes KEYS[1] only while KEYS[2] still holds ARGV[1]
var setIfGenerationScript = redis.NewScript(`
local current = redis.call("GET", KEYS[2]) or ""
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisSubscriptionCache stores subscriptions as JSON in redis
type RedisSubscriptionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSubscriptionCache creates a redis backed cache
func NewRedisSubscriptionCache(client *redis.Client, ttl time.Duration) *RedisSubscriptionCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisSubscriptionCache{client: client, ttl: ttl}
}

func subscriptionCacheKey(userID uuid.UUID) string {
	return subscriptionCachePrefix + userID.String()
}

func generationCacheKey(userID uuid.UUID) string {
	return generationCachePrefix + userID.String()
}

// Get returns the cached subscription for the user
func (c *RedisSubscriptionCache) Get(ctx context.Context, userID uuid.UUID) (*models.Subscription, bool) {
	data, err := c.client.Get(ctx, subscriptionCacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			utils.Logger.WithError(err).WithField("user_id", userID).Warn("Subscription cache read failed")
		}
		return nil, false
	}

	var sub models.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		utils.Logger.WithError(err).WithField("user_id", userID).Warn("Discarding unreadable cached subscription")
		c.Invalidate(ctx, userID)
		return nil, false
	}
	return &sub, true
}

// Generation returns the user's current cache generation, "" if none
func (c *RedisSubscriptionCache) Generation(ctx context.Context, userID uuid.UUID) string {
	gen, err := c.client.Get(ctx, generationCacheKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		utils.Logger.WithError(err).WithField("user_id", userID).Warn("Subscription cache generation read failed")
	}
	return gen
}

// Set caches the subscription for the configured TTL unless the user was
// invalidated since generation was read
func (c *RedisSubscriptionCache) Set(ctx context.Context, userID uuid.UUID, sub *models.Subscription, generation string) {
	data, err := json.Marshal(sub)
	if err != nil {
		utils.Logger.WithError(err).WithField("user_id", userID).Warn("Could not encode subscription for cache")
		return
	}

	keys := []string{subscriptionCacheKey(userID), generationCacheKey(userID)}
	written, err := setIfGenerationScript.Run(ctx, c.client, keys, generation, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		utils.Logger.WithError(err).WithField("user_id", userID).Warn("Subscription cache write failed")
		return
	}
	if written == 0 {
		utils.Logger.WithField("user_id", userID).Debug("Skipped caching subscription invalidated during lookup")
	}
}

// Invalidate drops the user's cached subscription and moves its generation on
func (c *RedisSubscriptionCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	genKey := generationCacheKey(userID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, subscriptionCacheKey(userID))
		pipe.Incr(ctx, genKey)
		pipe.PExpire(ctx, genKey, 2*c.ttl)
		return nil
	})
	if err != nil {
		utils.Logger.WithError(err).WithField("user_id", userID).Warn("Subscription cache invalidation failed")
	}
}

// noopCache is used when no cache is configured
type noopCache struct{}

func (noopCache) Get(context.Context, uuid.UUID) (*models.Subscription, bool)  { return nil, false }
func (noopCache) Generation(context.Context, uuid.UUID) string                 { return "" }
func (noopCache) Set(context.Context, uuid.UUID, *models.Subscription, string) {}
func (noopCache) Invalidate(context.Context, uuid.UUID)                        {}
