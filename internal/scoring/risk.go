package scoring

// RiskTier is a coarse classification of a predicted success probability.
type RiskTier string

const (
	RiskHigh   RiskTier = "high"
	RiskMedium RiskTier = "medium"
	RiskLow    RiskTier = "low"
)

// PercentScore maps p onto 0–100; values already above 1 are taken as percentages.
func PercentScore(p float64) float64 {
	if p <= 1.0 {
		return p * 100.0
	}
	return p
}

// ClassifyRisk thresholds in percentage space: <60 high, <70 medium, else low.
// A nil probability is medium.
func ClassifyRisk(p *float64) RiskTier {
	if p == nil {
		return RiskMedium
	}
	score := PercentScore(*p)
	switch {
	case score < 60.0:
		return RiskHigh
	case score < 70.0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ClassifyRiskFractional thresholds in fractional space: <0.5 high, <0.7 medium,
// else low. A nil probability is low. Used by catalog recommendations only.
func ClassifyRiskFractional(p *float64) RiskTier {
	if p == nil {
		return RiskLow
	}
	switch {
	case *p < 0.5:
		return RiskHigh
	case *p < 0.7:
		return RiskMedium
	default:
		return RiskLow
	}
}

// LoadLimit is the number of courses a plan may hold for the tier.
func LoadLimit(tier RiskTier) int {
	switch tier {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 4
	default:
		return 5
	}
}
