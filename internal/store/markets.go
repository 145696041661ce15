package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "criptosee-api/internal/cache"
)

// Coin is the immutable-identifier metadata row.
type Coin struct {
	ID            string `db:"id"`
	Symbol        string `db:"symbol"`
	Name          string `db:"name"`
	Image         string `db:"image"`
	MarketCapRank int    `db:"market_cap_rank"`
}

// LatestMarket is the current snapshot for a coin, fully overwritten on
// every sync tick.
type LatestMarket struct {
	CoinID            string          `db:"coin_id"`
	Price             float64         `db:"price"`
	MarketCap         float64         `db:"market_cap"`
	Change1h          float64         `db:"change_1h"`
	Change24h         float64         `db:"change_24h"`
	Change7d          float64         `db:"change_7d"`
	Volume24h         float64         `db:"volume_24h"`
	CirculatingSupply float64         `db:"circulating_supply"`
	TotalSupply       float64         `db:"total_supply"`
	MaxSupply         sql.NullFloat64 `db:"max_supply"`
	ATH               float64         `db:"ath"`
	ATHDate           time.Time       `db:"ath_date"`
	ATL               float64         `db:"atl"`
	ATLDate           time.Time       `db:"atl_date"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// MarketRow joins coin metadata with its latest market state for coin
// selection queries.
type MarketRow struct {
	ID            string  `db:"id"`
	Symbol        string  `db:"symbol"`
	Name          string  `db:"name"`
	MarketCapRank int     `db:"market_cap_rank"`
	Price         float64 `db:"price"`
	Change1h      float64 `db:"change_1h"`
	Change24h     float64 `db:"change_24h"`
	Change7d      float64 `db:"change_7d"`
	Volume24h     float64 `db:"volume_24h"`
}

const upsertCoinSQL = `
INSERT INTO coins (id, symbol, name, image, market_cap_rank, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
    symbol = EXCLUDED.symbol,
    name = EXCLUDED.name,
    image = EXCLUDED.image,
    market_cap_rank = EXCLUDED.market_cap_rank,
    updated_at = NOW();`

const upsertLatestSQL = `
INSERT INTO latest_markets (
    coin_id, price, market_cap, change_1h, change_24h, change_7d, volume_24h,
    circulating_supply, total_supply, max_supply, ath, ath_date, atl, atl_date, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW()
)
ON CONFLICT (coin_id) DO UPDATE SET
    price = EXCLUDED.price,
    market_cap = EXCLUDED.market_cap,
    change_1h = EXCLUDED.change_1h,
    change_24h = EXCLUDED.change_24h,
    change_7d = EXCLUDED.change_7d,
    volume_24h = EXCLUDED.volume_24h,
    circulating_supply = EXCLUDED.circulating_supply,
    total_supply = EXCLUDED.total_supply,
    max_supply = EXCLUDED.max_supply,
    ath = EXCLUDED.ath,
    ath_date = EXCLUDED.ath_date,
    atl = EXCLUDED.atl,
    atl_date = EXCLUDED.atl_date,
    updated_at = NOW();`

// ApplySnapshot upserts coin metadata and latest market state inside one
// transaction. Any failure rolls back the whole batch. The Redis price
// cache is refreshed after commit.
func (s *Store) ApplySnapshot(ctx context.Context, coins []Coin, states []LatestMarket) error {
	if len(coins) == 0 {
		return nil
	}
	err := s.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, c := range coins {
			if _, err := session.ExecCtx(ctx, upsertCoinSQL,
				c.ID, c.Symbol, c.Name, c.Image, c.MarketCapRank,
			); err != nil {
				return fmt.Errorf("upsert coin %s: %w", c.ID, err)
			}
		}
		for _, m := range states {
			if _, err := session.ExecCtx(ctx, upsertLatestSQL,
				m.CoinID, m.Price, m.MarketCap, m.Change1h, m.Change24h, m.Change7d,
				m.Volume24h, m.CirculatingSupply, m.TotalSupply, m.MaxSupply,
				m.ATH, m.ATHDate, m.ATL, m.ATLDate,
			); err != nil {
				return fmt.Errorf("upsert latest market %s: %w", m.CoinID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, m := range states {
		s.setCache(ctx, cachekeys.PriceLatestKey(m.CoinID), s.ttl.Short, map[string]any{
			"price": m.Price,
			"ts":    time.Now().UTC().UnixMilli(),
		})
	}
	return nil
}

// UpsertLatest refreshes a single coin outside the batch path.
func (s *Store) UpsertLatest(ctx context.Context, c Coin, m LatestMarket) error {
	return s.ApplySnapshot(ctx, []Coin{c}, []LatestMarket{m})
}

const marketRowColumns = `
c.id, c.symbol, c.name, c.market_cap_rank,
lm.price, lm.change_1h, lm.change_24h, lm.change_7d, lm.volume_24h`

// TopByRank returns the n highest market-cap coins.
func (s *Store) TopByRank(ctx context.Context, n int) ([]MarketRow, error) {
	q := fmt.Sprintf(`SELECT %s FROM coins c
JOIN latest_markets lm ON lm.coin_id = c.id
WHERE c.market_cap_rank > 0
ORDER BY c.market_cap_rank ASC LIMIT $1`, marketRowColumns)
	var rows []MarketRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, n); err != nil {
		return nil, fmt.Errorf("query top by rank: %w", err)
	}
	return rows, nil
}

// RankRange returns up to limit coins whose market-cap rank falls in
// [lo, hi].
func (s *Store) RankRange(ctx context.Context, lo, hi, limit int) ([]MarketRow, error) {
	q := fmt.Sprintf(`SELECT %s FROM coins c
JOIN latest_markets lm ON lm.coin_id = c.id
WHERE c.market_cap_rank BETWEEN $1 AND $2
ORDER BY c.market_cap_rank ASC LIMIT $3`, marketRowColumns)
	var rows []MarketRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, lo, hi, limit); err != nil {
		return nil, fmt.Errorf("query rank range: %w", err)
	}
	return rows, nil
}

// MostVolatile returns the n coins with the largest absolute 24h move.
func (s *Store) MostVolatile(ctx context.Context, n int) ([]MarketRow, error) {
	q := fmt.Sprintf(`SELECT %s FROM coins c
JOIN latest_markets lm ON lm.coin_id = c.id
ORDER BY ABS(lm.change_24h) DESC LIMIT $1`, marketRowColumns)
	var rows []MarketRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, n); err != nil {
		return nil, fmt.Errorf("query most volatile: %w", err)
	}
	return rows, nil
}

// TopGainers returns the n coins with the largest positive 24h move.
func (s *Store) TopGainers(ctx context.Context, n int) ([]MarketRow, error) {
	q := fmt.Sprintf(`SELECT %s FROM coins c
JOIN latest_markets lm ON lm.coin_id = c.id
WHERE lm.change_24h > 0
ORDER BY lm.change_24h DESC LIMIT $1`, marketRowColumns)
	var rows []MarketRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, n); err != nil {
		return nil, fmt.Errorf("query top gainers: %w", err)
	}
	return rows, nil
}

// ExtremeGainers returns up to n coins whose 24h move exceeds minChange
// percent.
func (s *Store) ExtremeGainers(ctx context.Context, minChange float64, n int) ([]MarketRow, error) {
	q := fmt.Sprintf(`SELECT %s FROM coins c
JOIN latest_markets lm ON lm.coin_id = c.id
WHERE lm.change_24h > $1
ORDER BY lm.change_24h DESC LIMIT $2`, marketRowColumns)
	var rows []MarketRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, minChange, n); err != nil {
		return nil, fmt.Errorf("query extreme gainers: %w", err)
	}
	return rows, nil
}
