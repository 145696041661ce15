package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"criptosee-api/internal/store"
)

// EvaluateStore is the persistence surface of an evaluation run.
type EvaluateStore interface {
	ExpiredUnevaluated(ctx context.Context, limit int) ([]store.Prediction, error)
	NearestPoint(ctx context.Context, coinID string, from, to time.Time) (*store.HistoryPoint, error)
	RecordOutcome(ctx context.Context, id uuid.UUID, outcome string, score int) (bool, error)
}

// EvaluateJob scores expired predictions against observed price history.
type EvaluateJob struct {
	store EvaluateStore
	batch int
}

func NewEvaluateJob(st EvaluateStore, batch int) *EvaluateJob {
	if batch <= 0 {
		batch = 200
	}
	return &EvaluateJob{store: st, batch: batch}
}

// Run evaluates one batch of expired, unscored predictions. Predictions
// with no history point in their lifetime window are left for a later
// pass; failed updates are counted but do not abort the batch.
func (j *EvaluateJob) Run(ctx context.Context) error {
	logger := logx.WithContext(ctx)

	pending, err := j.store.ExpiredUnevaluated(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	var scored, skipped, failed int
	for _, p := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		point, err := j.store.NearestPoint(ctx, p.CoinID, p.CreatedAt, p.ExpiresAt)
		if errors.Is(err, store.ErrNotFound) {
			skipped++
			continue
		}
		if err != nil {
			logger.Errorw("evaluate: history lookup failed",
				logx.Field("prediction", p.ID.String()), logx.Field("error", err.Error()))
			failed++
			continue
		}

		score := Score(p.Action, point.Change24h, p.ConfidenceLevel)
		outcome := outcomeText(p.Action, point.Change24h, score)

		updated, err := j.store.RecordOutcome(ctx, p.ID, outcome, score)
		if err != nil {
			logger.Errorw("evaluate: outcome write failed",
				logx.Field("prediction", p.ID.String()), logx.Field("error", err.Error()))
			failed++
			continue
		}
		if updated {
			scored++
		}
	}

	logger.Infow("evaluate: batch finished",
		logx.Field("scored", scored),
		logx.Field("skipped", skipped),
		logx.Field("failed", failed))
	return nil
}

// ActionScore rates how well an action played out given the observed 24h
// percentage change.
func ActionScore(action string, change float64) float64 {
	switch action {
	case ActionBuy:
		return clampScore(50 + change*5)
	case ActionSell:
		return clampScore(50 - change*5)
	case ActionHold:
		abs := math.Abs(change)
		if abs <= 2 {
			return 100 - abs*10
		}
		return math.Max(0, 70-abs*5)
	default:
		// watch and alert carry no directional claim.
		return 70
	}
}

// Score blends the raw action score with the prediction's confidence: a
// confident miss scores worse than a hedged one.
func Score(action string, change float64, confidence int) int {
	base := ActionScore(action, change)
	conf := float64(confidence) / 100
	return int(math.Round(base*conf + (100-base)*(1-conf)*0.5))
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func outcomeText(action string, change float64, score int) string {
	return fmt.Sprintf("%s verdict, 24h change %+.2f%%, scored %d/100", action, change, score)
}
