package coingecko

import "time"

// CoinMarket is one row of the /coins/markets response.
type CoinMarket struct {
	ID                       string    `json:"id"`
	Symbol                   string    `json:"symbol"`
	Name                     string    `json:"name"`
	Image                    string    `json:"image"`
	CurrentPrice             float64   `json:"current_price"`
	MarketCap                float64   `json:"market_cap"`
	MarketCapRank            int       `json:"market_cap_rank"`
	TotalVolume              float64   `json:"total_volume"`
	High24h                  float64   `json:"high_24h"`
	Low24h                   float64   `json:"low_24h"`
	PriceChangePercentage1h  float64   `json:"price_change_percentage_1h_in_currency"`
	PriceChangePercentage24h float64   `json:"price_change_percentage_24h"`
	PriceChangePercentage7d  float64   `json:"price_change_percentage_7d_in_currency"`
	CirculatingSupply        float64   `json:"circulating_supply"`
	TotalSupply              float64   `json:"total_supply"`
	MaxSupply                *float64  `json:"max_supply"`
	ATH                      float64   `json:"ath"`
	ATHDate                  time.Time `json:"ath_date"`
	ATL                      float64   `json:"atl"`
	ATLDate                  time.Time `json:"atl_date"`
	LastUpdated              time.Time `json:"last_updated"`
}
