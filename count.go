package queryengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

// CountCache stores total counts between requests. Get fills dest and
// reports a hit; a miss is (false, nil).
type CountCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttlSecs int) error
	Delete(ctx context.Context, key string) error
}

const _countCachePrefix = "queryengine:count:"

// CountCacheKeyPrefix is the prefix shared by every count cache key of table.
func CountCacheKeyPrefix(table string) string {
	return _countCachePrefix + table + ":"
}

// CountCacheKey returns the cache key of the total count of table under
// filters. Equal filter maps give equal keys.
func CountCacheKey(table string, filters Filters) string {
	if len(filters) == 0 {
		return CountCacheKeyPrefix(table) + "all"
	}

	// encoding/json writes map keys sorted.
	canonical, err := json.Marshal(filters)
	if err != nil {
		canonical = []byte(fmt.Sprintf("%v", filters))
	}

	return CountCacheKeyPrefix(table) + uuid.NewSHA1(uuid.NameSpaceOID, canonical).String()
}

// Count returns the number of rows matching filters. It runs its own
// count(*) query and never reuses a windowed statement.
func (e *Engine[T]) Count(ctx context.Context, filters Filters) (int64, error) {
	conditions, err := e.filters.Build(filters)
	if err != nil {
		return 0, err
	}

	return e.count(ctx, filters, conditions)
}

func (e *Engine[T]) count(ctx context.Context, filters Filters, conditions []clause.Expression) (int64, error) {
	cache := e.opts.countCache

	var key string
	if cache != nil {
		key = CountCacheKey(e.schema.Table, filters)

		var cached int64
		hit, err := cache.Get(ctx, key, &cached)
		if err != nil {
			e.opts.logger.Warn("count cache read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	tx := e.joinRelations(e.db.WithContext(ctx).Model(new(T)), e.filters.RequiredJoins(filters))
	if len(conditions) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: conditions})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("cannot count %s: %w", e.schema.Table, err)
	}

	if cache != nil {
		ttl := max(int(e.opts.countCacheTTL/time.Second), 1)
		if err := cache.Set(ctx, key, total, ttl); err != nil {
			e.opts.logger.Warn("count cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return total, nil
}
