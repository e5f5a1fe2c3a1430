package sessioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"smartsite/edge-gateway/internal/domain/session"
)

const redisKeyPrefix = "session:v1:"

// RedisStore keeps session entries in Redis so multiple gateway instances
// share one verification cache. Per-key TTLs enforce the retention window;
// Purge is therefore a no-op and the entry cap is left to Redis maxmemory.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
	opTimeout time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, retention time.Duration) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Info().Msg("Connected to Redis session cache")
	return &RedisStore{
		client:    client,
		retention: retention,
		opTimeout: 2 * time.Second,
	}, nil
}

func (s *RedisStore) Get(token string) (session.Entry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if err != nil {
		return session.Entry{}, false
	}

	var entry session.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return session.Entry{}, false
	}
	return entry, true
}

func (s *RedisStore) Set(token string, entry session.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, redisKeyPrefix+token, data, s.retention).Err(); err != nil {
		log.Warn().Err(err).Msg("session cache write failed")
	}
}

// Purge is handled by per-key TTLs.
func (s *RedisStore) Purge(_ time.Time, _ int) int { return 0 }

func (s *RedisStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	var count int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
