// Package indicators provides stateless technical-indicator math over
// price/volume history windows. Windows are ordered most-recent-first,
// matching the order history rows come back from the store.
package indicators

import "math"

const (
	// DefaultRSIPeriod is the lookback used when callers pass no period.
	DefaultRSIPeriod = 14
	// DefaultBollingerPeriod is the moving-average window for the bands.
	DefaultBollingerPeriod = 20

	volumeSpikeFactor  = 1.5
	nearLevelThreshold = 5.0
)

// Round2 rounds to two decimal places. All indicator outputs are reported
// at this precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RSI computes the Relative Strength Index over the most recent period
// points. Windows shorter than the period yield the neutral value 50.
// A window with no losses yields 100.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(prices) < period {
		return 50
	}

	var gainSum, lossSum float64
	for i := 0; i < period-1; i++ {
		change := prices[i] - prices[i+1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum -= change
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return Round2(100 - 100/(1+rs))
}

// VolumeSpike reports whether current volume strictly exceeds 1.5x the
// trailing average. Exactly 1.5x is not a spike.
func VolumeSpike(current, trailingAvg float64) bool {
	return current > volumeSpikeFactor*trailingAvg
}

// TrailingAverage returns the mean of the supplied volumes, or 0 for an
// empty window.
func TrailingAverage(volumes []float64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	var sum float64
	for _, v := range volumes {
		sum += v
	}
	return sum / float64(len(volumes))
}

// EMA seeds with the first price and applies the smoothing constant
// 2/(period+1) across min(len, period) points.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 || period <= 0 {
		return 0
	}
	n := period
	if len(prices) < n {
		n = len(prices)
	}
	multiplier := 2.0 / float64(period+1)
	ema := prices[0]
	for i := 1; i < n; i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}
	return Round2(ema)
}

// MACDResult carries the simplified MACD outputs.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes EMA(12) - EMA(26) over a 26-point window. The signal line
// is the EMA(9) of the single resulting MACD value, which collapses to the
// MACD value itself. Downstream prompts and scoring depend on this exact
// behavior, so it is kept as-is.
func MACD(prices []float64) MACDResult {
	if len(prices) == 0 {
		return MACDResult{}
	}
	window := prices
	if len(window) > 26 {
		window = window[:26]
	}
	macd := Round2(EMA(window, 12) - EMA(window, 26))
	signal := EMA([]float64{macd}, 9)
	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: Round2(macd - signal),
	}
}

// BollingerBands holds the volatility band levels.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Bollinger computes a simple moving average +/- 2 standard deviations over
// the most recent period points. With fewer than period points all three
// levels collapse to the mean of the given points.
func Bollinger(prices []float64, period int) BollingerBands {
	if period <= 0 {
		period = DefaultBollingerPeriod
	}
	if len(prices) == 0 {
		return BollingerBands{}
	}
	if len(prices) < period {
		mean := Round2(SMA(prices))
		return BollingerBands{Upper: mean, Middle: mean, Lower: mean}
	}

	window := prices[:period]
	mean := SMA(window)
	var variance float64
	for _, p := range window {
		diff := p - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  Round2(mean + 2*stddev),
		Middle: Round2(mean),
		Lower:  Round2(mean - 2*stddev),
	}
}

// SMA returns the arithmetic mean of the window, 0 when empty.
func SMA(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}

// Levels describes support/resistance extracted from a price window.
type Levels struct {
	Support          float64 `json:"support"`
	Resistance       float64 `json:"resistance"`
	DistToSupport    float64 `json:"distToSupport"`
	DistToResistance float64 `json:"distToResistance"`
	NearSupport      bool    `json:"nearSupport"`
	NearResistance   bool    `json:"nearResistance"`
}

// SupportResistance takes the window min/max as support/resistance and
// reports the percentage distance from the current price to each, flagging
// levels closer than 5%.
func SupportResistance(prices []float64, currentPrice float64) Levels {
	if len(prices) == 0 || currentPrice <= 0 {
		return Levels{}
	}
	support := prices[0]
	resistance := prices[0]
	for _, p := range prices[1:] {
		if p < support {
			support = p
		}
		if p > resistance {
			resistance = p
		}
	}

	distSupport := Round2((currentPrice - support) / currentPrice * 100)
	distResistance := Round2((resistance - currentPrice) / currentPrice * 100)

	return Levels{
		Support:          Round2(support),
		Resistance:       Round2(resistance),
		DistToSupport:    distSupport,
		DistToResistance: distResistance,
		NearSupport:      distSupport < nearLevelThreshold,
		NearResistance:   distResistance < nearLevelThreshold,
	}
}

// PearsonCorrelation computes the correlation coefficient over the
// overlapping prefix of the two series. Fewer than 2 points or zero
// variance in either series yields 0.
func PearsonCorrelation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}

	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return Round2(cov / math.Sqrt(varA*varB))
}
