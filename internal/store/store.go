// Package store implements Postgres persistence for coins, market state,
// history, predictions, and generation leases. SQL is written against the
// pgx stdlib driver with upsert-by-primary-key semantics throughout.
package store

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "criptosee-api/internal/cache"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = sqlx.ErrNotFound

// Store wraps the database connection and the optional Redis cache.
type Store struct {
	conn  sqlx.SqlConn
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

// New constructs a Store. The cache may be nil, in which case cache hooks
// are no-ops.
func New(conn sqlx.SqlConn, cache gocache.Cache, ttl cachekeys.TTLSet) *Store {
	return &Store{conn: conn, cache: cache, ttl: ttl}
}

// Conn exposes the underlying connection for integration tests.
func (s *Store) Conn() sqlx.SqlConn {
	return s.conn
}

func (s *Store) setCache(ctx context.Context, key string, ttl time.Duration, v interface{}) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, v, ttl); err != nil {
		logx.WithContext(ctx).Errorf("store: set cache %s: %v", key, err)
	}
}

func (s *Store) delCache(ctx context.Context, keys ...string) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	if err := s.cache.DelCtx(ctx, keys...); err != nil {
		logx.WithContext(ctx).Errorf("store: del cache %v: %v", keys, err)
	}
}
