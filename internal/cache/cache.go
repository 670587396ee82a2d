// Package cache keeps the most-popular quiz list in Redis so repeated
// ranking queries skip the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	popularKey    = "quizzes:popular"
	generationKey = "quizzes:popular:generation"
)

// PopularCache stores the ranking returned by QuizRepository.ReadPopular.
// A miss is reported with ok == false and a nil error.
//
// Entries are tied to a generation. GetPopular reports the generation it
// looked at and SetPopular writes under it; Invalidate moves to the next
// generation, so a ranking read from the store before an invalidation is
// never served after it.
type PopularCache interface {
	GetPopular(ctx context.Context) (quizzes []models.Quiz, generation int64, ok bool, err error)
	SetPopular(ctx context.Context, generation int64, quizzes []models.Quiz) error
	Invalidate(ctx context.Context) error
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

type RedisCache struct {
	client        *redis.Client
	ttl           time.Duration
	key           string
	generationKey string
}

func NewRedisCache(config RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisCacheWithClient(client, config.TTL, config.Prefix)
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration, prefix string) *RedisCache {
	return &RedisCache{
		client:        client,
		ttl:           ttl,
		key:           prefix + popularKey,
		generationKey: prefix + generationKey,
	}
}

func (c *RedisCache) entryKey(generation int64) string {
	return fmt.Sprintf("%s:%d", c.key, generation)
}

// Ping reports whether Redis answers. The cache stays usable when it does
// not; every call misses until Redis comes back.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error connect to Redis: %w", err)
	}
	return nil
}

func (c *RedisCache) GetPopular(ctx context.Context) ([]models.Quiz, int64, bool, error) {
	generation, err := c.client.Get(ctx, c.generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("error get popular quizzes generation: %w", err)
	}

	raw, err := c.client.Get(ctx, c.entryKey(generation)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, generation, false, nil
	}
	if err != nil {
		return nil, generation, false, fmt.Errorf("error get popular quizzes in cache: %w", err)
	}

	var quizzes []models.Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, generation, false, fmt.Errorf("error decoding cached popular quizzes: %w", err)
	}
	for i := range quizzes {
		quizzes[i].Normalize()
	}
	return quizzes, generation, true, nil
}

// SetPopular writes under the given generation. After an Invalidate the
// entry is left to expire unread.
func (c *RedisCache) SetPopular(ctx context.Context, generation int64, quizzes []models.Quiz) error {
	val, err := json.Marshal(quizzes)
	if err != nil {
		return fmt.Errorf("error saving popular quizzes to cache: %w", err)
	}
	if err := c.client.Set(ctx, c.entryKey(generation), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("error saving popular quizzes to cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey).Err(); err != nil {
		return fmt.Errorf("error bumping key %s: %w", c.generationKey, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Nop never holds anything. It is used when no Redis address is configured.
type Nop struct{}

func (Nop) GetPopular(context.Context) ([]models.Quiz, int64, bool, error) {
	return nil, 0, false, nil
}

func (Nop) SetPopular(context.Context, int64, []models.Quiz) error { return nil }

func (Nop) Invalidate(context.Context) error { return nil }
