package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 Redis SetNX 的事件去重
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDeduper logger 可以传 nil
func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce tries to acquire a dedup lock for a given handler + eventID
// returns true if this is the FIRST time processing
// returns false if it's a duplicate
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, eventID string) bool {
	key := fmt.Sprintf("dedup:%s:%s", handler, eventID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理，下游唯一约束兜底
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release 处理失败时释放去重锁，允许消息重投后再次处理
func (d *Deduper) Release(ctx context.Context, handler string, eventID string) {
	key := fmt.Sprintf("dedup:%s:%s", handler, eventID)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("dedup_key", key),
			zap.Error(err),
		)
	}
}
