package jobs

import (
	_ "embed"
	"fmt"
	"time"

	"criptosee-api/internal/store"
	"criptosee-api/pkg/prompt"
)

//go:embed prompt_default.tmpl
var defaultPromptTemplate string

// PromptData is what the prediction template renders over.
type PromptData struct {
	Name       string
	Symbol     string
	Rank       int
	Price      float64
	Change1h   float64
	Change24h  float64
	Change7d   float64
	Volume24h  float64
	Tier       string
	RiskMin    int
	RiskMax    int
	Timeframe  string
	Indicators IndicatorSnapshot
}

// LoadPromptTemplate reads the template at path, or falls back to the
// embedded default when path is empty.
func LoadPromptTemplate(path string) (*prompt.Template, error) {
	if path == "" {
		return prompt.NewTemplateFromString("prediction", defaultPromptTemplate, nil)
	}
	tmpl, err := prompt.NewTemplate(path, nil)
	if err != nil {
		return nil, fmt.Errorf("load prompt template: %w", err)
	}
	return tmpl, nil
}

func buildPromptData(tier TierParams, row store.MarketRow, snap IndicatorSnapshot) PromptData {
	return PromptData{
		Name:       row.Name,
		Symbol:     row.Symbol,
		Rank:       row.MarketCapRank,
		Price:      row.Price,
		Change1h:   row.Change1h,
		Change24h:  row.Change24h,
		Change7d:   row.Change7d,
		Volume24h:  row.Volume24h,
		Tier:       tier.Name,
		RiskMin:    tier.RiskMin,
		RiskMax:    tier.RiskMax,
		Timeframe:  timeframeLabel(tier.Expiry),
		Indicators: snap,
	}
}

func timeframeLabel(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
