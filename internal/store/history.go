package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// HistoryPoint is one append-only time-series sample for a coin.
type HistoryPoint struct {
	CoinID    string    `db:"coin_id"`
	Ts        time.Time `db:"ts"`
	Price     float64   `db:"price"`
	MarketCap float64   `db:"market_cap"`
	Volume24h float64   `db:"volume_24h"`
	Change24h float64   `db:"change_24h"`
}

const insertHistorySQL = `
INSERT INTO markets_history (coin_id, ts, price, market_cap, volume_24h, change_24h)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (coin_id, ts) DO NOTHING;`

// AppendHistory inserts a single history row. Duplicate (coin, ts) pairs
// are silently ignored; history rows are never updated.
func (s *Store) AppendHistory(ctx context.Context, p HistoryPoint) error {
	if _, err := s.conn.ExecCtx(ctx, insertHistorySQL,
		p.CoinID, p.Ts.UTC(), p.Price, p.MarketCap, p.Volume24h, p.Change24h,
	); err != nil {
		return fmt.Errorf("append history %s: %w", p.CoinID, err)
	}
	return nil
}

// AppendHistoryBatch inserts rows one by one. A failed row is logged and
// skipped; history is non-critical to the sync run. Returns the count of
// rows that could not be written.
func (s *Store) AppendHistoryBatch(ctx context.Context, points []HistoryPoint) int {
	failed := 0
	for _, p := range points {
		if err := s.AppendHistory(ctx, p); err != nil {
			logx.WithContext(ctx).Errorf("store: %v", err)
			failed++
		}
	}
	return failed
}

// HistoryWindow returns up to limit points for a coin, most recent first.
func (s *Store) HistoryWindow(ctx context.Context, coinID string, limit int) ([]HistoryPoint, error) {
	const q = `SELECT coin_id, ts, price, market_cap, volume_24h, change_24h
FROM markets_history WHERE coin_id = $1 ORDER BY ts DESC LIMIT $2`
	var rows []HistoryPoint
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, coinID, limit); err != nil {
		return nil, fmt.Errorf("query history window %s: %w", coinID, err)
	}
	return rows, nil
}

// NearestPoint returns the latest history point for a coin inside
// [from, to], or ErrNotFound when the interval holds no sample.
func (s *Store) NearestPoint(ctx context.Context, coinID string, from, to time.Time) (*HistoryPoint, error) {
	const q = `SELECT coin_id, ts, price, market_cap, volume_24h, change_24h
FROM markets_history
WHERE coin_id = $1 AND ts >= $2 AND ts <= $3
ORDER BY ts DESC LIMIT 1`
	var row HistoryPoint
	err := s.conn.QueryRowCtx(ctx, &row, q, coinID, from.UTC(), to.UTC())
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query nearest point %s: %w", coinID, err)
	}
	return &row, nil
}

// PruneHistory keeps only the newest keep points per coin.
func (s *Store) PruneHistory(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	const q = `
DELETE FROM markets_history h
USING (
    SELECT coin_id, ts,
           ROW_NUMBER() OVER (PARTITION BY coin_id ORDER BY ts DESC) AS rn
    FROM markets_history
) ranked
WHERE h.coin_id = ranked.coin_id AND h.ts = ranked.ts AND ranked.rn > $1;`
	res, err := s.conn.ExecCtx(ctx, q, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
