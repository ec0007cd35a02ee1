package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"talentflow/internal/common"
)

// RedisLimiter is a sliding-window log shared by every API instance. Each
// accepted request is a sorted-set member scored by its arrival time; members
// older than the window are trimmed on every call. Redis errors fail open so a
// cache outage never blocks pipeline writes.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix, timeout: 250 * time.Millisecond, logger: slog.Default(), now: time.Now}
}

func (l *RedisLimiter) Allow(key string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	now := l.now()
	redisKey := l.prefix + ":" + key
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + common.NewUUID().String()
	var count *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(now.Add(-window).UnixMicro(), 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		count = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request", slog.String("key", key), slog.String("error", err.Error()))
		return true
	}
	if count.Val() <= int64(limit) {
		return true
	}
	// Rejected attempts do not occupy the window.
	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		l.logger.Warn("rate limiter cleanup failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return false
}
