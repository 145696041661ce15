package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"criptosee-api/internal/store"
	"criptosee-api/pkg/coingecko"
)

// MarketProvider is the slice of the provider client the sync job needs.
type MarketProvider interface {
	Markets(ctx context.Context, page, perPage int) ([]coingecko.CoinMarket, error)
	Market(ctx context.Context, coinID string) (*coingecko.CoinMarket, error)
}

// SyncStore is the persistence surface of a sync run.
type SyncStore interface {
	ApplySnapshot(ctx context.Context, coins []store.Coin, states []store.LatestMarket) error
	UpsertLatest(ctx context.Context, c store.Coin, m store.LatestMarket) error
	AppendHistory(ctx context.Context, p store.HistoryPoint) error
	AppendHistoryBatch(ctx context.Context, points []store.HistoryPoint) int
	PruneHistory(ctx context.Context, keep int) (int64, error)
}

// Sync run states, logged as the run progresses.
const (
	stateFetching  = "fetching"
	stateUpserting = "upserting"
	stateAppending = "appending_history"
	stateDone      = "done"
	stateFailed    = "failed"
)

// SyncJob pulls paginated market snapshots from the provider and lands
// them in Postgres: coin metadata and latest state atomically, history
// best-effort.
type SyncJob struct {
	provider MarketProvider
	store    SyncStore

	perPage     int
	maxPages    int
	historyKeep int

	running atomic.Bool
	now     func() time.Time
}

// NewSyncJob builds a sync job. perPage and maxPages follow the provider
// configuration; historyKeep bounds per-coin retention (0 disables the
// prune).
func NewSyncJob(provider MarketProvider, st SyncStore, perPage, maxPages, historyKeep int) *SyncJob {
	if perPage <= 0 {
		perPage = 100
	}
	if maxPages <= 0 {
		maxPages = 3
	}
	return &SyncJob{
		provider:    provider,
		store:       st,
		perPage:     perPage,
		maxPages:    maxPages,
		historyKeep: historyKeep,
		now:         time.Now,
	}
}

// Run executes one sync pass. A pass still running when the next tick
// fires makes the new tick a no-op.
func (j *SyncJob) Run(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		logx.WithContext(ctx).Infow("sync: previous run still in progress, skipping tick")
		return nil
	}
	defer j.running.Store(false)

	logger := logx.WithContext(ctx)
	started := j.now()

	logger.Infow("sync: run started", logx.Field("state", stateFetching))
	markets, err := j.fetchAll(ctx)
	if err != nil {
		logger.Errorw("sync: fetch failed", logx.Field("state", stateFailed), logx.Field("error", err.Error()))
		return err
	}
	if len(markets) == 0 {
		logger.Infow("sync: provider returned no rows", logx.Field("state", stateDone))
		return nil
	}

	coins, states := splitSnapshot(markets, j.now())

	logger.Infow("sync: upserting snapshot",
		logx.Field("state", stateUpserting), logx.Field("coins", len(coins)))
	if err := j.store.ApplySnapshot(ctx, coins, states); err != nil {
		logger.Errorw("sync: snapshot upsert failed",
			logx.Field("state", stateFailed), logx.Field("error", err.Error()))
		return err
	}

	points := historyPoints(states)
	logger.Infow("sync: appending history",
		logx.Field("state", stateAppending), logx.Field("points", len(points)))
	if failed := j.store.AppendHistoryBatch(ctx, points); failed > 0 {
		logger.Errorw("sync: some history rows failed", logx.Field("failed", failed))
	}

	if j.historyKeep > 0 {
		if pruned, err := j.store.PruneHistory(ctx, j.historyKeep); err != nil {
			logger.Errorw("sync: history prune failed", logx.Field("error", err.Error()))
		} else if pruned > 0 {
			logger.Infow("sync: pruned history", logx.Field("rows", pruned))
		}
	}

	logger.Infow("sync: run finished",
		logx.Field("state", stateDone),
		logx.Field("coins", len(coins)),
		logx.Field("elapsed", j.now().Sub(started).String()))
	return nil
}

// SyncOne refreshes a single coin outside the paginated loop.
func (j *SyncJob) SyncOne(ctx context.Context, coinID string) error {
	m, err := j.provider.Market(ctx, coinID)
	if err != nil {
		return fmt.Errorf("sync one %s: %w", coinID, err)
	}
	now := j.now()
	coin, state := convertMarket(*m, now)
	if err := j.store.UpsertLatest(ctx, coin, state); err != nil {
		return err
	}
	if err := j.store.AppendHistory(ctx, historyPoint(state)); err != nil {
		logx.WithContext(ctx).Errorw("sync: history append failed",
			logx.Field("coin", coinID), logx.Field("error", err.Error()))
	}
	return nil
}

// fetchAll walks provider pages until one comes back empty or the page
// cap is reached.
func (j *SyncJob) fetchAll(ctx context.Context) ([]coingecko.CoinMarket, error) {
	var all []coingecko.CoinMarket
	for page := 1; page <= j.maxPages; page++ {
		rows, err := j.provider.Markets(ctx, page, j.perPage)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		all = append(all, rows...)
	}
	return all, nil
}

func splitSnapshot(markets []coingecko.CoinMarket, now time.Time) ([]store.Coin, []store.LatestMarket) {
	coins := make([]store.Coin, 0, len(markets))
	states := make([]store.LatestMarket, 0, len(markets))
	for _, m := range markets {
		coin, state := convertMarket(m, now)
		coins = append(coins, coin)
		states = append(states, state)
	}
	return coins, states
}

func convertMarket(m coingecko.CoinMarket, now time.Time) (store.Coin, store.LatestMarket) {
	coin := store.Coin{
		ID:            m.ID,
		Symbol:        m.Symbol,
		Name:          m.Name,
		Image:         m.Image,
		MarketCapRank: m.MarketCapRank,
	}
	state := store.LatestMarket{
		CoinID:            m.ID,
		Price:             m.CurrentPrice,
		MarketCap:         m.MarketCap,
		Change1h:          m.PriceChangePercentage1h,
		Change24h:         m.PriceChangePercentage24h,
		Change7d:          m.PriceChangePercentage7d,
		Volume24h:         m.TotalVolume,
		CirculatingSupply: m.CirculatingSupply,
		TotalSupply:       m.TotalSupply,
		ATH:               m.ATH,
		ATHDate:           m.ATHDate,
		ATL:               m.ATL,
		ATLDate:           m.ATLDate,
		UpdatedAt:         now,
	}
	if m.MaxSupply != nil {
		state.MaxSupply = sql.NullFloat64{Float64: *m.MaxSupply, Valid: true}
	}
	return coin, state
}

func historyPoints(states []store.LatestMarket) []store.HistoryPoint {
	points := make([]store.HistoryPoint, 0, len(states))
	for _, s := range states {
		points = append(points, historyPoint(s))
	}
	return points
}

func historyPoint(s store.LatestMarket) store.HistoryPoint {
	return store.HistoryPoint{
		CoinID:    s.CoinID,
		Ts:        s.UpdatedAt,
		Price:     s.Price,
		MarketCap: s.MarketCap,
		Volume24h: s.Volume24h,
		Change24h: s.Change24h,
	}
}
