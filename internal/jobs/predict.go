package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"criptosee-api/internal/store"
	"criptosee-api/pkg/llm"
	"criptosee-api/pkg/prompt"
)

// Verdict actions.
const (
	ActionBuy   = "buy"
	ActionSell  = "sell"
	ActionHold  = "hold"
	ActionWatch = "watch"
	ActionAlert = "alert"
)

// ErrLockHeld reports that another run holds the tier's generation lease.
// Callers treat it as a no-op, not a failure.
var ErrLockHeld = errors.New("jobs: generation lease held by another run")

// Verdict is the JSON object expected inside the LLM response.
type Verdict struct {
	Action          string          `json:"action"`
	ConfidenceLevel int             `json:"confidenceLevel"`
	Reasoning       string          `json:"reasoning"`
	Indicators      json.RawMessage `json:"indicators,omitempty"`
	PriceProjection float64         `json:"priceProjection"`
	Timeframe       string          `json:"timeframe,omitempty"`
	RiskScore       int             `json:"riskScore"`
}

func validAction(a string) bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionWatch, ActionAlert:
		return true
	}
	return false
}

// PredictStore is the persistence surface of a generation run.
type PredictStore interface {
	AcquireLease(ctx context.Context, tier string, owner uuid.UUID, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, tier string, owner uuid.UUID, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, tier string, owner uuid.UUID) error

	CountActivePredictions(ctx context.Context, tier string) (int, error)
	DeletePredictionsByTier(ctx context.Context, tier string) (int64, error)
	InsertPrediction(ctx context.Context, p store.Prediction) error

	TopByRank(ctx context.Context, n int) ([]store.MarketRow, error)
	RankRange(ctx context.Context, lo, hi, limit int) ([]store.MarketRow, error)
	MostVolatile(ctx context.Context, n int) ([]store.MarketRow, error)
	TopGainers(ctx context.Context, n int) ([]store.MarketRow, error)
	ExtremeGainers(ctx context.Context, minChange float64, n int) ([]store.MarketRow, error)

	HistoryWindow(ctx context.Context, coinID string, limit int) ([]store.HistoryPoint, error)
}

// PredictJob generates tiered AI predictions under a per-tier lease.
type PredictJob struct {
	store PredictStore
	chat  llm.ChatClient
	tmpl  *prompt.Template

	model         string
	historyWindow int
	leaseTTL      time.Duration

	now func() time.Time
}

// NewPredictJob builds a generation job. model may be empty to use the
// chat client's default; leaseTTL <= 0 uses the store default.
func NewPredictJob(st PredictStore, chat llm.ChatClient, tmpl *prompt.Template, model string, historyWindow int, leaseTTL time.Duration) *PredictJob {
	if historyWindow <= 0 {
		historyWindow = 26
	}
	if leaseTTL <= 0 {
		leaseTTL = store.DefaultLeaseTTL
	}
	return &PredictJob{
		store:         st,
		chat:          chat,
		tmpl:          tmpl,
		model:         model,
		historyWindow: historyWindow,
		leaseTTL:      leaseTTL,
		now:           time.Now,
	}
}

// Run generates predictions for every tier in order. A tier whose lease
// is held elsewhere is skipped, not failed.
func (j *PredictJob) Run(ctx context.Context) error {
	for _, tier := range Tiers {
		if err := j.RunTier(ctx, tier); err != nil && !errors.Is(err, ErrLockHeld) {
			logx.WithContext(ctx).Errorw("predict: tier run failed",
				logx.Field("tier", tier.Name), logx.Field("error", err.Error()))
		}
	}
	return nil
}

// RunTier generates one tier's batch. The lease is released on every exit
// path and renewed in the background while the batch runs.
func (j *PredictJob) RunTier(ctx context.Context, tier TierParams) error {
	logger := logx.WithContext(ctx)

	owner := uuid.New()
	acquired, err := j.store.AcquireLease(ctx, tier.Name, owner, j.leaseTTL)
	if err != nil {
		return fmt.Errorf("predict %s: %w", tier.Name, err)
	}
	if !acquired {
		logger.Infow("predict: lease held, skipping", logx.Field("tier", tier.Name))
		return ErrLockHeld
	}

	stopRenew := j.keepLeaseAlive(ctx, tier.Name, owner)
	defer func() {
		stopRenew()
		if err := j.store.ReleaseLease(context.WithoutCancel(ctx), tier.Name, owner); err != nil {
			logger.Errorw("predict: lease release failed",
				logx.Field("tier", tier.Name), logx.Field("error", err.Error()))
		}
	}()

	active, err := j.store.CountActivePredictions(ctx, tier.Name)
	if err != nil {
		return fmt.Errorf("predict %s: %w", tier.Name, err)
	}
	if active >= tier.MaxCoins {
		logger.Infow("predict: enough unexpired predictions, skipping",
			logx.Field("tier", tier.Name), logx.Field("active", active))
		return nil
	}

	coins, err := j.selectCoins(ctx, tier)
	if err != nil {
		return fmt.Errorf("predict %s: select coins: %w", tier.Name, err)
	}
	if len(coins) == 0 {
		logger.Infow("predict: no candidate coins", logx.Field("tier", tier.Name))
		return nil
	}

	if _, err := j.store.DeletePredictionsByTier(ctx, tier.Name); err != nil {
		return fmt.Errorf("predict %s: %w", tier.Name, err)
	}

	generated := 0
	for _, row := range coins {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p, err := j.generateOne(ctx, tier, row)
		if err != nil {
			logger.Errorw("predict: coin skipped",
				logx.Field("tier", tier.Name), logx.Field("coin", row.ID),
				logx.Field("error", err.Error()))
			continue
		}
		if err := j.store.InsertPrediction(ctx, *p); err != nil {
			logger.Errorw("predict: persist failed",
				logx.Field("tier", tier.Name), logx.Field("coin", row.ID),
				logx.Field("error", err.Error()))
			continue
		}
		generated++
	}

	logger.Infow("predict: tier batch finished",
		logx.Field("tier", tier.Name),
		logx.Field("selected", len(coins)),
		logx.Field("generated", generated))
	return nil
}

// keepLeaseAlive renews the lease on a fraction of its TTL until the
// returned stop function is called.
func (j *PredictJob) keepLeaseAlive(ctx context.Context, tier string, owner uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(j.leaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := j.store.RenewLease(ctx, tier, owner, j.leaseTTL)
				if err != nil {
					logx.WithContext(ctx).Errorw("predict: lease renewal failed",
						logx.Field("tier", tier), logx.Field("error", err.Error()))
				} else if !ok {
					logx.WithContext(ctx).Errorw("predict: lease lost mid-run",
						logx.Field("tier", tier))
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// selectCoins picks tier candidates from the latest market snapshot.
func (j *PredictJob) selectCoins(ctx context.Context, tier TierParams) ([]store.MarketRow, error) {
	switch tier.Name {
	case TierFree:
		return j.store.TopByRank(ctx, tier.MaxCoins)
	case TierBasic:
		return j.store.RankRange(ctx, 10, 30, tier.MaxCoins)
	case TierPremium:
		return j.selectPremium(ctx, tier.MaxCoins)
	default:
		return nil, fmt.Errorf("unknown tier %q", tier.Name)
	}
}

// selectPremium unions blue-chips, the most volatile movers, top gainers
// and extreme gainers, deduplicated, capped at limit.
func (j *PredictJob) selectPremium(ctx context.Context, limit int) ([]store.MarketRow, error) {
	groups := []func(context.Context) ([]store.MarketRow, error){
		func(ctx context.Context) ([]store.MarketRow, error) { return j.store.TopByRank(ctx, 5) },
		func(ctx context.Context) ([]store.MarketRow, error) { return j.store.MostVolatile(ctx, 10) },
		func(ctx context.Context) ([]store.MarketRow, error) { return j.store.TopGainers(ctx, 10) },
		func(ctx context.Context) ([]store.MarketRow, error) { return j.store.ExtremeGainers(ctx, 20, 10) },
	}

	seen := make(map[string]struct{})
	var out []store.MarketRow
	for _, fetch := range groups {
		rows, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if _, dup := seen[row.ID]; dup {
				continue
			}
			seen[row.ID] = struct{}{}
			out = append(out, row)
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// generateOne runs the full per-coin pipeline: history, indicators,
// prompt, LLM call, verdict extraction and validation.
func (j *PredictJob) generateOne(ctx context.Context, tier TierParams, row store.MarketRow) (*store.Prediction, error) {
	history, err := j.store.HistoryWindow(ctx, row.ID, j.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("history window: %w", err)
	}

	snap := ComputeSnapshot(row, history)
	rendered, err := j.tmpl.Render(buildPromptData(tier, row, snap))
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	resp, err := j.chat.Chat(ctx, &llm.ChatRequest{
		Model: j.model,
		Messages: []llm.Message{
			{Role: "user", Content: rendered},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm returned no choices")
	}

	var verdict Verdict
	if err := llm.ExtractJSON(resp.Choices[0].Message.Content, &verdict); err != nil {
		return nil, fmt.Errorf("parse verdict: %w", err)
	}
	if !validAction(verdict.Action) {
		return nil, fmt.Errorf("invalid action %q", verdict.Action)
	}
	if verdict.ConfidenceLevel < 0 {
		verdict.ConfidenceLevel = 0
	}
	if verdict.ConfidenceLevel > 100 {
		verdict.ConfidenceLevel = 100
	}

	indicatorsJSON, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal indicators: %w", err)
	}

	now := j.now()
	return &store.Prediction{
		ID:              uuid.New(),
		CoinID:          row.ID,
		Action:          verdict.Action,
		ConfidenceLevel: verdict.ConfidenceLevel,
		Reasoning:       verdict.Reasoning,
		Indicators:      indicatorsJSON,
		PriceProjection: verdict.PriceProjection,
		RiskScore:       tier.ClampRisk(verdict.RiskScore),
		Opportunity:     ClassifyOpportunity(verdict.Action, snap.RSI, snap.VolumeSpike, snap.Change7d),
		Tier:            tier.Name,
		CreatedAt:       now,
		ExpiresAt:       now.Add(tier.Expiry),
	}, nil
}
