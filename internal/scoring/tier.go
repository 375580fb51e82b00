package scoring

// ─── TIERS ────────────────────────────────────────────────────────────────────

// Tier is the four-bucket ordinal classification shared by both models.
type Tier string

const (
	TierLow     Tier = "low"
	TierMedium  Tier = "medium"
	TierHigh    Tier = "high"
	TierExtreme Tier = "extreme"
)

var tierRank = map[Tier]int{TierLow: 0, TierMedium: 1, TierHigh: 2, TierExtreme: 3}

// Rank returns the ordinal position of t. Unknown tiers rank as low.
func (t Tier) Rank() int { return tierRank[t] }

// AtLeast reports whether t is the same as or above other.
func (t Tier) AtLeast(other Tier) bool { return t.Rank() >= other.Rank() }

// MaxTier returns the highest of the given tiers, or low for none.
func MaxTier(tiers ...Tier) Tier {
	out := TierLow
	for _, t := range tiers {
		if t.Rank() > out.Rank() {
			out = t
		}
	}
	return out
}

// Mode score thresholds. Boundaries are closed on the lower side.
const (
	mediumThreshold  = 25
	highThreshold    = 50
	extremeThreshold = 75
)

// TierOf classifies a 0–100 mode score.
func TierOf(score int) Tier {
	switch {
	case score >= extremeThreshold:
		return TierExtreme
	case score >= highThreshold:
		return TierHigh
	case score >= mediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ─── RISK LEVEL ───────────────────────────────────────────────────────────────

// RiskLevel is the three-bucket level the generation controls are keyed on.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Aggregate score thresholds, closed on the lower side: 8 is high, 7 and 4
// are moderate, 3 is low.
const (
	riskHighThreshold     = 8
	riskModerateThreshold = 4
)

// LevelOf classifies an aggregate risk score.
func LevelOf(score int) RiskLevel {
	switch {
	case score >= riskHighThreshold:
		return RiskHigh
	case score >= riskModerateThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// Tier maps a risk level onto the shared tier scale.
func (l RiskLevel) Tier() Tier {
	switch l {
	case RiskHigh:
		return TierHigh
	case RiskModerate:
		return TierMedium
	default:
		return TierLow
	}
}

// levelFromTier collapses a tier into a risk level; high and extreme are both high.
func levelFromTier(t Tier) RiskLevel {
	switch {
	case t.AtLeast(TierHigh):
		return RiskHigh
	case t == TierMedium:
		return RiskModerate
	default:
		return RiskLow
	}
}
