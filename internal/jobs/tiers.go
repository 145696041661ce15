package jobs

import "time"

// Audience tiers.
const (
	TierFree    = "free"
	TierBasic   = "basic"
	TierPremium = "premium"
)

// TierParams drives coin selection, risk bounds and prediction lifetime
// for one audience tier.
type TierParams struct {
	Name     string
	MaxCoins int
	RiskMin  int
	RiskMax  int
	// Expiry includes any preparation buffer for short-lived tiers.
	Expiry time.Duration
}

// Tiers in generation order. Premium predictions live 30 minutes plus a
// 5 minute preparation buffer.
var Tiers = []TierParams{
	{Name: TierFree, MaxCoins: 5, RiskMin: 1, RiskMax: 3, Expiry: 2 * time.Hour},
	{Name: TierBasic, MaxCoins: 10, RiskMin: 2, RiskMax: 7, Expiry: time.Hour},
	{Name: TierPremium, MaxCoins: 25, RiskMin: 1, RiskMax: 10, Expiry: 35 * time.Minute},
}

// TierByName looks a tier up by its name.
func TierByName(name string) (TierParams, bool) {
	for _, t := range Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return TierParams{}, false
}

// ClampRisk forces a model-reported risk score into the tier's bound.
func (t TierParams) ClampRisk(risk int) int {
	if risk < t.RiskMin {
		return t.RiskMin
	}
	if risk > t.RiskMax {
		return t.RiskMax
	}
	return risk
}
