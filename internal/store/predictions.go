package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	cachekeys "criptosee-api/internal/cache"
)

// Prediction is an AI-generated verdict for a coin. Outcome fields stay
// null until the evaluation job fills them, exactly once.
type Prediction struct {
	ID               uuid.UUID       `db:"id"`
	CoinID           string          `db:"coin_id"`
	Action           string          `db:"action"`
	ConfidenceLevel  int             `db:"confidence_level"`
	Reasoning        string          `db:"reasoning"`
	Indicators       json.RawMessage `db:"indicators"`
	PriceProjection  float64         `db:"price_projection"`
	RiskScore        int             `db:"risk_score"`
	Opportunity      string          `db:"opportunity"`
	Tier             string          `db:"target_tier"`
	CreatedAt        time.Time       `db:"created_at"`
	ExpiresAt        time.Time       `db:"expires_at"`
	ActualOutcome    sql.NullString  `db:"actual_outcome"`
	PerformanceScore sql.NullInt64   `db:"performance_score"`
	EvaluatedAt      sql.NullTime    `db:"evaluated_at"`
}

const insertPredictionSQL = `
INSERT INTO ai_predictions (
    id, coin_id, action, confidence_level, reasoning, indicators,
    price_projection, risk_score, opportunity, target_tier, created_at, expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

// InsertPrediction persists a freshly generated prediction and invalidates
// the tier's cached list.
func (s *Store) InsertPrediction(ctx context.Context, p Prediction) error {
	if !p.ExpiresAt.After(p.CreatedAt) {
		return fmt.Errorf("prediction %s: expires_at must follow created_at", p.ID)
	}
	if _, err := s.conn.ExecCtx(ctx, insertPredictionSQL,
		p.ID, p.CoinID, p.Action, p.ConfidenceLevel, p.Reasoning, string(p.Indicators),
		p.PriceProjection, p.RiskScore, p.Opportunity, p.Tier,
		p.CreatedAt.UTC(), p.ExpiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert prediction %s: %w", p.CoinID, err)
	}
	s.delCache(ctx, cachekeys.PredictionsKey(p.Tier))
	return nil
}

// DeletePredictionsByTier clears all predictions for a tier ahead of a
// fresh generation run.
func (s *Store) DeletePredictionsByTier(ctx context.Context, tier string) (int64, error) {
	res, err := s.conn.ExecCtx(ctx, `DELETE FROM ai_predictions WHERE target_tier = $1`, tier)
	if err != nil {
		return 0, fmt.Errorf("delete predictions tier=%s: %w", tier, err)
	}
	s.delCache(ctx, cachekeys.PredictionsKey(tier))
	n, _ := res.RowsAffected()
	return n, nil
}

// CountActivePredictions counts unexpired predictions for a tier.
func (s *Store) CountActivePredictions(ctx context.Context, tier string) (int, error) {
	var count int
	err := s.conn.QueryRowCtx(ctx, &count,
		`SELECT COUNT(*) FROM ai_predictions WHERE target_tier = $1 AND expires_at > NOW()`, tier)
	if err != nil {
		return 0, fmt.Errorf("count active predictions tier=%s: %w", tier, err)
	}
	return count, nil
}

// ExpiredUnevaluated returns predictions past expiry whose outcome has not
// been recorded yet.
func (s *Store) ExpiredUnevaluated(ctx context.Context, limit int) ([]Prediction, error) {
	const q = `
SELECT id, coin_id, action, confidence_level, reasoning, indicators,
       price_projection, risk_score, opportunity, target_tier, created_at, expires_at,
       actual_outcome, performance_score, evaluated_at
FROM ai_predictions
WHERE performance_score IS NULL AND expires_at < NOW()
ORDER BY expires_at ASC LIMIT $1`
	var rows []Prediction
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("query expired predictions: %w", err)
	}
	return rows, nil
}

// RecordOutcome writes the evaluation result for a prediction. The guard
// on performance_score makes the write idempotent: a second evaluation of
// the same prediction affects no rows and returns false.
func (s *Store) RecordOutcome(ctx context.Context, id uuid.UUID, outcome string, score int) (bool, error) {
	const q = `
UPDATE ai_predictions
SET actual_outcome = $2, performance_score = $3, evaluated_at = NOW()
WHERE id = $1 AND performance_score IS NULL`
	res, err := s.conn.ExecCtx(ctx, q, id, outcome, score)
	if err != nil {
		return false, fmt.Errorf("record outcome %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
