package jobs

// Opportunity levels rank prediction urgency.
const (
	OpportunityHot    = "hot"
	OpportunityWarm   = "warm"
	OpportunityNormal = "normal"
)

// ClassifyOpportunity maps a verdict and its indicator context onto an
// urgency level. The thresholds are deliberate and asymmetric between buy
// and sell signals.
func ClassifyOpportunity(action string, rsi float64, volumeSpike bool, change7d float64) string {
	switch {
	case action == ActionBuy && rsi < 25 && volumeSpike,
		action == ActionSell && rsi > 75 && volumeSpike,
		action == ActionBuy && rsi < 30 && change7d < -15,
		action == ActionSell && rsi > 70 && change7d > 15:
		return OpportunityHot
	case action == ActionBuy && rsi < 35,
		action == ActionSell && rsi > 65,
		action == ActionBuy && change7d < -10,
		action == ActionSell && change7d > 10:
		return OpportunityWarm
	default:
		return OpportunityNormal
	}
}
