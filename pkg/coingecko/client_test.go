package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func marketsPayload(n int) []CoinMarket {
	rows := make([]CoinMarket, n)
	for i := range rows {
		rows[i] = CoinMarket{
			ID:            fmt.Sprintf("coin-%d", i),
			Symbol:        fmt.Sprintf("c%d", i),
			Name:          fmt.Sprintf("Coin %d", i),
			CurrentPrice:  float64(100 + i),
			MarketCapRank: i + 1,
		}
	}
	return rows
}

func TestMarketsSendsExpectedQuery(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		require.Equal(t, "/coins/markets", r.URL.Path)
		_ = json.NewEncoder(w).Encode(marketsPayload(3))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	rows, err := client.Markets(context.Background(), 2, 50)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "usd", gotQuery["vs_currency"])
	require.Equal(t, "market_cap_desc", gotQuery["order"])
	require.Equal(t, "50", gotQuery["per_page"])
	require.Equal(t, "2", gotQuery["page"])
	require.Equal(t, "1h,24h,7d", gotQuery["price_change_percentage"])
}

func TestMarketsRetriesOnceAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(marketsPayload(1))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithCooldown(5*time.Millisecond))
	rows, err := client.Markets(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 2, calls.Load())
}

func TestMarketsPropagatesPersistentRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithCooldown(5*time.Millisecond))
	_, err := client.Markets(context.Background(), 1, 10)
	require.ErrorIs(t, err, ErrRateLimited)
	require.EqualValues(t, 2, calls.Load(), "exactly one retry")
}

func TestMarketsCooldownHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := NewClient(WithBaseURL(server.URL), WithCooldown(time.Minute))
	_, err := client.Markets(ctx, 1, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMarketsFetchFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Markets(context.Background(), 1, 10)
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestMarketSingleCoin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		_ = json.NewEncoder(w).Encode([]CoinMarket{{ID: "bitcoin", CurrentPrice: 97000}})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	row, err := client.Market(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.Equal(t, "bitcoin", row.ID)
	require.InDelta(t, 97000.0, row.CurrentPrice, 1e-9)
}

func TestMarketUnknownCoin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]CoinMarket{})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Market(context.Background(), "nope")
	require.ErrorIs(t, err, ErrFetchFailed)
}
