package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter 记录消息重试次数，超过上限后转入死信队列
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// IncrementAndGet 自增并返回当前重试次数
func (r *RetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// 首次计数时设置过期，避免孤儿 key 长期占用
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
			return count, fmt.Errorf("expire retry key: %w", err)
		}
	}

	return count, nil
}

func (r *RetryCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// FormatRetryKey formats a retry key for a queue and event ID
func FormatRetryKey(queue, eventID string) string {
	return fmt.Sprintf("retry:%s:%s", queue, eventID)
}
