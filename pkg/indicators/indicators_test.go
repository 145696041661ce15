package indicators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func descending(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - float64(i)
	}
	return out
}

func ascending(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRSIRisingSeries(t *testing.T) {
	// Most-recent-first, so a rising market is a descending slice.
	prices := descending(100, 20)
	require.InDelta(t, 100.0, RSI(prices, 14), 1e-9)
}

func TestRSIFallingSeries(t *testing.T) {
	prices := ascending(100, 20)
	require.InDelta(t, 0.0, RSI(prices, 14), 1e-9)
}

func TestRSIFlatSeries(t *testing.T) {
	// Zero losses, so the zero-loss rule applies.
	require.InDelta(t, 100.0, RSI(constant(42, 20), 14), 1e-9)
}

func TestRSIShortWindow(t *testing.T) {
	require.InDelta(t, 50.0, RSI([]float64{1, 900, 3, 4}, 14), 1e-9)
	require.InDelta(t, 50.0, RSI(nil, 14), 1e-9)
}

func TestRSIMixedSeries(t *testing.T) {
	prices := []float64{105, 103, 104, 102, 103, 101, 102, 100, 101, 99, 100, 98, 99, 97}
	rsi := RSI(prices, 14)
	require.Greater(t, rsi, 50.0)
	require.Less(t, rsi, 100.0)
}

func TestVolumeSpikeBoundary(t *testing.T) {
	require.False(t, VolumeSpike(150, 100), "exactly 1.5x is not a spike")
	require.False(t, VolumeSpike(149.9, 100))
	require.True(t, VolumeSpike(150.1, 100))
	require.False(t, VolumeSpike(0, 0))
}

func TestTrailingAverage(t *testing.T) {
	require.InDelta(t, 100.0, TrailingAverage([]float64{90, 100, 110}), 1e-9)
	require.InDelta(t, 0.0, TrailingAverage(nil), 1e-9)
}

func TestEMASeedsWithFirstPrice(t *testing.T) {
	require.InDelta(t, 10.0, EMA([]float64{10}, 12), 1e-9)

	// Smoothing constant 2/(3+1) = 0.5 applied twice.
	// 10 -> (12-10)*0.5+10 = 11 -> (14-11)*0.5+11 = 12.5
	require.InDelta(t, 12.5, EMA([]float64{10, 12, 14}, 3), 1e-9)

	// Only min(len, period) points participate.
	require.InDelta(t, 12.5, EMA([]float64{10, 12, 14, 999, 999}, 3), 1e-9)
}

func TestMACDSignalCollapses(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i%7)
	}
	result := MACD(prices)
	require.InDelta(t, result.MACD, result.Signal, 1e-9)
	require.InDelta(t, 0.0, result.Histogram, 1e-9)
}

func TestMACDEmpty(t *testing.T) {
	require.Equal(t, MACDResult{}, MACD(nil))
}

func TestBollingerShortWindowCollapse(t *testing.T) {
	bands := Bollinger([]float64{10, 20, 30}, 20)
	require.InDelta(t, 20.0, bands.Upper, 1e-9)
	require.InDelta(t, 20.0, bands.Middle, 1e-9)
	require.InDelta(t, 20.0, bands.Lower, 1e-9)
}

func TestBollingerFullWindow(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 90
		} else {
			prices[i] = 110
		}
	}
	bands := Bollinger(prices, 20)
	require.InDelta(t, 100.0, bands.Middle, 1e-9)
	require.Greater(t, bands.Upper, bands.Middle)
	require.Less(t, bands.Lower, bands.Middle)
	require.InDelta(t, bands.Upper-bands.Middle, bands.Middle-bands.Lower, 1e-9)
}

func TestSupportResistance(t *testing.T) {
	levels := SupportResistance([]float64{98, 95, 104, 100, 97}, 100)
	require.InDelta(t, 95.0, levels.Support, 1e-9)
	require.InDelta(t, 104.0, levels.Resistance, 1e-9)
	require.InDelta(t, 5.0, levels.DistToSupport, 1e-9)
	require.InDelta(t, 4.0, levels.DistToResistance, 1e-9)
	require.False(t, levels.NearSupport, "exactly 5% is not near")
	require.True(t, levels.NearResistance)
}

func TestPearsonCorrelationSelf(t *testing.T) {
	series := []float64{1, 3, 2, 5, 4, 7}
	require.InDelta(t, 1.0, PearsonCorrelation(series, series), 0.01)
}

func TestPearsonCorrelationInverse(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{5, 4, 3, 2, 1}
	require.InDelta(t, -1.0, PearsonCorrelation(a, b), 0.01)
}

func TestPearsonCorrelationDegenerate(t *testing.T) {
	require.InDelta(t, 0.0, PearsonCorrelation(constant(5, 10), constant(9, 10)), 1e-9)
	require.InDelta(t, 0.0, PearsonCorrelation([]float64{1}, []float64{2}), 1e-9)
	require.InDelta(t, 0.0, PearsonCorrelation(nil, nil), 1e-9)
}

func TestPearsonCorrelationOverlapPrefix(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 999}
	b := []float64{2, 4, 6, 8, 10}
	require.InDelta(t, 1.0, PearsonCorrelation(a[:5], b), 0.01)
}
