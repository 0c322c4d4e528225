package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stamp is the pair of generations a result was computed under. Entries are
// keyed by stamp, so a result computed before an invalidation lands on a key
// that is never read again.
type Stamp struct {
	User int64
	Pool int64
}

// Cache stores recommendation results per freelancer.
//
// Invalidate bumps one freelancer's generation (skills, preferences, own
// proposals, history). InvalidatePool bumps the generation shared by every
// freelancer (projects opened or leaving the open pool).
type Cache interface {
	// Stamp reads the current generations; ok is false when the cache is
	// unavailable, in which case nothing should be read or written.
	Stamp(ctx context.Context, freelancerID int64) (Stamp, bool)
	Get(ctx context.Context, freelancerID int64, st Stamp) (*Result, bool)
	Set(ctx context.Context, freelancerID int64, st Stamp, r *Result, ttl time.Duration)
	Invalidate(ctx context.Context, freelancerID int64)
	InvalidatePool(ctx context.Context)
}

type nopCache struct{}

func (nopCache) Stamp(context.Context, int64) (Stamp, bool)                 { return Stamp{}, false }
func (nopCache) Get(context.Context, int64, Stamp) (*Result, bool)          { return nil, false }
func (nopCache) Set(context.Context, int64, Stamp, *Result, time.Duration) {}
func (nopCache) Invalidate(context.Context, int64)                          {}
func (nopCache) InvalidatePool(context.Context)                             {}

const poolGenKey = "recommend:gen:pool"

// RedisCache Redis 推荐缓存
// Redis 不可用时按未命中处理，不影响推荐结果
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisCache(rdb *redis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, logger: logger}
}

func userGenKey(freelancerID int64) string {
	return fmt.Sprintf("recommend:gen:user:%d", freelancerID)
}

func cacheKey(freelancerID int64, st Stamp) string {
	return fmt.Sprintf("recommend:projects:%d:%d:%d", freelancerID, st.User, st.Pool)
}

func (c *RedisCache) Stamp(ctx context.Context, freelancerID int64) (Stamp, bool) {
	vals, err := c.rdb.MGet(ctx, userGenKey(freelancerID), poolGenKey).Result()
	if err != nil {
		c.logger.Warn("Recommendation cache generation read failed",
			zap.Int64("freelancer_id", freelancerID), zap.Error(err))
		return Stamp{}, false
	}
	user, err1 := parseGen(vals[0])
	pool, err2 := parseGen(vals[1])
	if err := errors.Join(err1, err2); err != nil {
		c.logger.Warn("Recommendation cache generation is not a number",
			zap.Int64("freelancer_id", freelancerID), zap.Error(err))
		return Stamp{}, false
	}
	return Stamp{User: user, Pool: pool}, true
}

// parseGen 未设置的 generation 视为 0
func parseGen(v any) (int64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(s, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
}

func (c *RedisCache) Get(ctx context.Context, freelancerID int64, st Stamp) (*Result, bool) {
	key := cacheKey(freelancerID, st)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Recommendation cache read failed",
				zap.Int64("freelancer_id", freelancerID), zap.Error(err))
		}
		return nil, false
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		c.logger.Warn("Dropping undecodable recommendation cache entry",
			zap.Int64("freelancer_id", freelancerID), zap.Error(err))
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("Failed to drop recommendation cache entry", zap.Error(err))
		}
		return nil, false
	}
	return &r, true
}

func (c *RedisCache) Set(ctx context.Context, freelancerID int64, st Stamp, r *Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("Failed to encode recommendations", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(freelancerID, st), raw, ttl).Err(); err != nil {
		c.logger.Warn("Recommendation cache write failed",
			zap.Int64("freelancer_id", freelancerID), zap.Error(err))
	}
}

// Invalidate 递增该 freelancer 的 generation，旧 key 随 TTL 过期
func (c *RedisCache) Invalidate(ctx context.Context, freelancerID int64) {
	if err := c.rdb.Incr(ctx, userGenKey(freelancerID)).Err(); err != nil {
		c.logger.Warn("Recommendation cache invalidation failed",
			zap.Int64("freelancer_id", freelancerID), zap.Error(err))
	}
}

// InvalidatePool 递增全局 generation，所有 freelancer 的缓存同时失效
func (c *RedisCache) InvalidatePool(ctx context.Context) {
	if err := c.rdb.Incr(ctx, poolGenKey).Err(); err != nil {
		c.logger.Warn("Recommendation pool invalidation failed", zap.Error(err))
	}
}
