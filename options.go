package queryengine

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	logger        *zap.Logger
	strictFilters bool
	search        SearchStrategy
	defaultLimit  int
	maxLimit      int
	countCache    CountCache
	countCacheTTL time.Duration
	cursorReset   bool
}

// Option configures an Engine.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:       zap.NewNop(),
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStrictFilters makes unusable filter keys fail the request instead of
// being dropped.
func WithStrictFilters() Option {
	return func(o *options) {
		o.strictFilters = true
	}
}

// WithSearchStrategy overrides the strategy picked from the dialector name.
func WithSearchStrategy(search SearchStrategy) Option {
	return func(o *options) {
		o.search = search
	}
}

func WithDefaultLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.defaultLimit = limit
		}
	}
}

func WithMaxLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.maxLimit = limit
		}
	}
}

// WithCountCache caches total counts for ttl. Counts may lag behind writes
// for up to ttl.
// Engines rebound with Engine.WithDB bypass the cache.
func WithCountCache(cache CountCache, ttl time.Duration) Option {
	return func(o *options) {
		o.countCache = cache
		o.countCacheTTL = ttl
	}
}

// WithCursorReset serves the first page instead of failing when a keyset
// cursor cannot be decoded or does not match the sort.
func WithCursorReset() Option {
	return func(o *options) {
		o.cursorReset = true
	}
}
