package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"criptosee-api/internal/store"
)

func TestActionScore(t *testing.T) {
	cases := []struct {
		name   string
		action string
		change float64
		want   float64
	}{
		{"buy modest gain", ActionBuy, 4, 70},
		{"buy big gain clamps", ActionBuy, 15, 100},
		{"buy loss", ActionBuy, -4, 30},
		{"buy crash clamps", ActionBuy, -15, 0},
		{"sell on drop", ActionSell, -4, 70},
		{"sell on pump", ActionSell, 10, 0},
		{"hold flat", ActionHold, 0, 100},
		{"hold within band", ActionHold, 1.5, 85},
		{"hold band edge", ActionHold, 2, 80},
		{"hold outside band", ActionHold, 5, 45},
		{"hold way off", ActionHold, 20, 0},
		{"watch neutral", ActionWatch, 12, 70},
		{"alert neutral", ActionAlert, -12, 70},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, ActionScore(tc.action, tc.change), 1e-9)
		})
	}
}

func TestScoreBlendsConfidence(t *testing.T) {
	// buy at +4% scores 70 raw; at 80% confidence the blend is
	// round(70*0.8 + 30*0.2*0.5) = 59.
	require.Equal(t, 59, Score(ActionBuy, 4, 80))
	// full confidence passes the raw score through
	require.Equal(t, 70, Score(ActionBuy, 4, 100))
	// zero confidence collapses to half the inverse
	require.Equal(t, 15, Score(ActionBuy, 4, 0))
}

type fakeEvaluateStore struct {
	pending   []store.Prediction
	points    map[string]*store.HistoryPoint
	recorded  map[uuid.UUID]int
	outcomes  map[uuid.UUID]string
	recordErr error
}

func (f *fakeEvaluateStore) ExpiredUnevaluated(_ context.Context, limit int) ([]store.Prediction, error) {
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeEvaluateStore) NearestPoint(_ context.Context, coinID string, _, _ time.Time) (*store.HistoryPoint, error) {
	p, ok := f.points[coinID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeEvaluateStore) RecordOutcome(_ context.Context, id uuid.UUID, outcome string, score int) (bool, error) {
	if f.recordErr != nil {
		return false, f.recordErr
	}
	if f.recorded == nil {
		f.recorded = make(map[uuid.UUID]int)
		f.outcomes = make(map[uuid.UUID]string)
	}
	if _, dup := f.recorded[id]; dup {
		return false, nil
	}
	f.recorded[id] = score
	f.outcomes[id] = outcome
	return true, nil
}

func expiredPrediction(coinID, action string, confidence int) store.Prediction {
	created := time.Now().Add(-2 * time.Hour)
	return store.Prediction{
		ID:              uuid.New(),
		CoinID:          coinID,
		Action:          action,
		ConfidenceLevel: confidence,
		Tier:            TierFree,
		CreatedAt:       created,
		ExpiresAt:       created.Add(time.Hour),
	}
}

func TestEvaluateRecordsBlendedScore(t *testing.T) {
	p := expiredPrediction("bitcoin", ActionBuy, 80)
	st := &fakeEvaluateStore{
		pending: []store.Prediction{p},
		points:  map[string]*store.HistoryPoint{"bitcoin": {CoinID: "bitcoin", Change24h: 4}},
	}
	job := NewEvaluateJob(st, 100)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 59, st.recorded[p.ID])
	require.Contains(t, st.outcomes[p.ID], "buy verdict")
}

func TestEvaluateSkipsWithoutHistory(t *testing.T) {
	p := expiredPrediction("ghostcoin", ActionBuy, 50)
	st := &fakeEvaluateStore{pending: []store.Prediction{p}}
	job := NewEvaluateJob(st, 100)

	require.NoError(t, job.Run(context.Background()))
	require.Empty(t, st.recorded)
}

func TestEvaluateContinuesPastOneFailure(t *testing.T) {
	good := expiredPrediction("bitcoin", ActionHold, 100)
	orphan := expiredPrediction("ghostcoin", ActionSell, 60)
	st := &fakeEvaluateStore{
		pending: []store.Prediction{orphan, good},
		points:  map[string]*store.HistoryPoint{"bitcoin": {CoinID: "bitcoin", Change24h: 0}},
	}
	job := NewEvaluateJob(st, 100)

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, st.recorded, 1)
	require.Equal(t, 100, st.recorded[good.ID])
}

func TestEvaluateEmptyBatchIsNoop(t *testing.T) {
	job := NewEvaluateJob(&fakeEvaluateStore{}, 100)
	require.NoError(t, job.Run(context.Background()))
}
