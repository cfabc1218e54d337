package usecase

import (
	"github.com/vitos/risk_guard/internal/domain"
)

const (
	unacknowledgedPenalty = 5
	positiveActionBonus   = 2
)

// CalculateDisciplineScore is 100 minus 5 per ignored alert plus 2 per
// positive action, clamped to [0, 100].
func CalculateDisciplineScore(in domain.DisciplineScoreInputs) float64 {
	ignored := in.TotalAlerts - in.AcknowledgedAlerts
	if ignored < 0 {
		ignored = 0
	}
	score := 100 - float64(ignored*unacknowledgedPenalty) + float64(in.PositiveActions*positiveActionBonus)
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// ScoreTierFor returns the band a score falls in.
func ScoreTierFor(score float64) domain.ScoreTier {
	for _, tier := range domain.ScoreTiers {
		if score >= tier.Min {
			return tier
		}
	}
	return domain.ScoreTiers[len(domain.ScoreTiers)-1]
}
