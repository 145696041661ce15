package jobs

import (
	"criptosee-api/internal/store"
	"criptosee-api/pkg/indicators"
)

// IndicatorSnapshot is the computed technical context for one coin. It is
// embedded in the prompt and persisted alongside the prediction.
type IndicatorSnapshot struct {
	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	Signal      float64 `json:"signal"`
	Histogram   float64 `json:"histogram"`
	BollUpper   float64 `json:"bollingerUpper"`
	BollMiddle  float64 `json:"bollingerMiddle"`
	BollLower   float64 `json:"bollingerLower"`
	Support     float64 `json:"support"`
	Resistance  float64 `json:"resistance"`
	DistSupport float64 `json:"distanceToSupport"`
	DistResist  float64 `json:"distanceToResistance"`
	NearSupport bool    `json:"nearSupport"`
	NearResist  bool    `json:"nearResistance"`
	VolumeSpike bool    `json:"volumeSpike"`
	Change7d    float64 `json:"priceChange7d"`
}

// ComputeSnapshot derives the indicator set from a coin's market row and
// its most-recent-first history window.
func ComputeSnapshot(row store.MarketRow, history []store.HistoryPoint) IndicatorSnapshot {
	prices := make([]float64, 0, len(history))
	volumes := make([]float64, 0, len(history))
	for _, p := range history {
		prices = append(prices, p.Price)
		volumes = append(volumes, p.Volume24h)
	}

	macd := indicators.MACD(prices)
	bands := indicators.Bollinger(prices, indicators.DefaultBollingerPeriod)
	levels := indicators.SupportResistance(prices, row.Price)

	return IndicatorSnapshot{
		RSI:         indicators.RSI(prices, indicators.DefaultRSIPeriod),
		MACD:        macd.MACD,
		Signal:      macd.Signal,
		Histogram:   macd.Histogram,
		BollUpper:   bands.Upper,
		BollMiddle:  bands.Middle,
		BollLower:   bands.Lower,
		Support:     levels.Support,
		Resistance:  levels.Resistance,
		DistSupport: levels.DistToSupport,
		DistResist:  levels.DistToResistance,
		NearSupport: levels.NearSupport,
		NearResist:  levels.NearResistance,
		VolumeSpike: indicators.VolumeSpike(row.Volume24h, indicators.TrailingAverage(volumes)),
		Change7d:    row.Change7d,
	}
}
