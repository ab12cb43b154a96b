package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatbot_server/internal/config"

	"github.com/go-redis/redis/v8"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter 按用户限流
type RateLimiter interface {
	Allow(ctx context.Context, userId string) error
}

// FixedWindowLimiter 每个用户每个窗口一个计数 key，首次计数时设置过期时间
type FixedWindowLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisClient(conf config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Password: conf.Password,
		DB:       conf.Db,
	})
}

func NewFixedWindowLimiter(client *redis.Client, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (l *FixedWindowLimiter) key(userId string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return fmt.Sprintf("chatbot_rate_%s_%d", userId, bucket)
}

// Allow 计数超过上限时返回 ErrRateLimited
func (l *FixedWindowLimiter) Allow(ctx context.Context, userId string) error {
	if l.limit <= 0 {
		return nil
	}
	key := l.key(userId)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}
	if incr.Val() > l.limit {
		return ErrRateLimited
	}
	return nil
}

// Ping 启动时检查 redis 是否可用
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// NopLimiter 未启用 redis 时放行所有请求
type NopLimiter struct{}

func (NopLimiter) Allow(context.Context, string) error { return nil }
