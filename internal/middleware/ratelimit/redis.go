package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisStore shares the request windows between replicas.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	limit  int
	period time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, requestsPerMinute int) *RedisStore {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "finanzas:rate_limit"
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	return &RedisStore{client: client, prefix: prefix, limit: requestsPerMinute, period: time.Minute}
}

// NewRedisClient parses url and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(subject string) string {
	return s.prefix + ":" + subject
}

func (s *RedisStore) Allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	raw, err := windowScript.Run(ctx, s.client, []string{s.key(subject)}, s.period.Milliseconds()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("run rate limit script: %w", err)
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttl, ok := values[1].(int64)
	if !ok || ttl < 0 {
		ttl = s.period.Milliseconds()
	}
	return count <= int64(s.limit), time.Duration(ttl) * time.Millisecond, nil
}
