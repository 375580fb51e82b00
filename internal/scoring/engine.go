package scoring

import (
	"strings"

	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
)

// ─── ENGINE PARAMETERS ────────────────────────────────────────────────────────

// Constraints are hard flags passed through to the instruction.
type Constraints struct {
	RecordSafeMode     bool `json:"record_safe_mode"`
	SoftenIfLowCeiling bool `json:"soften_if_low_ceiling"`
	ForbidLegalTerms   bool `json:"forbid_legal_terms"`
	ForbidThreats      bool `json:"forbid_threats"`
}

// EngineParameters are the posture controls the orchestrator builds its
// instruction from. They are derived per request and never persisted.
type EngineParameters struct {
	RiskLevel       RiskLevel `json:"risk_level"`
	RiskScore       int       `json:"risk_score"`
	RecordSafeLevel int       `json:"record_safe_level"` // 0..2
	PowerIndex      int       `json:"power_index"`       // 0..2
	PostureProfile  string    `json:"posture_profile"`

	DirectionSuggestion normalize.Token `json:"direction_suggestion"`
	DirectionFinal      normalize.Token `json:"direction_final"`

	BoundaryStrength  int `json:"boundary_strength"`  // 0..2
	EscalationCeiling int `json:"escalation_ceiling"` // 0..2

	ToneRecommendation   normalize.Token `json:"tone_recommendation"`
	DetailRecommendation normalize.Token `json:"detail_recommendation"`
	InsightCandorLevel   RiskLevel       `json:"insight_candor_level"`

	ActionObjective      normalize.Token `json:"action_objective"`
	ActionAlignmentScore float64         `json:"action_alignment_score"` // 0..1

	Constraints Constraints `json:"constraints"`
}

// Direction values.
const (
	DirectionMaintain  normalize.Token = "maintain"
	DirectionReset     normalize.Token = "reset"
	DirectionDisengage normalize.Token = "disengage"
	DirectionUnsure    normalize.Token = "unsure"
)

// deriveEngine fills every posture control from a risk level, a score and a
// record-safe level. Both models share it so the orchestrator never needs to
// know which one ran.
func deriveEngine(s normalize.State, level RiskLevel, score, recordSafe int) EngineParameters {
	suggestion := suggestDirection(s, level, recordSafe)
	final := suggestion
	if d := s.Strategy.Direction; !d.IsZero() && d != DirectionUnsure {
		final = d
	}

	ceiling := escalationCeiling(level, recordSafe)

	return EngineParameters{
		RiskLevel:       level,
		RiskScore:       score,
		RecordSafeLevel: recordSafe,
		PowerIndex:      powerWeight(s.Target.PowerBalance),
		PostureProfile:  postureProfile(s, level, recordSafe),

		DirectionSuggestion: suggestion,
		DirectionFinal:      final,

		BoundaryStrength:  boundaryStrength(final, s.Target.PowerBalance, level),
		EscalationCeiling: ceiling,

		ToneRecommendation:   suggestTone(recordSafe, ceiling, s.Target.Formality),
		DetailRecommendation: suggestDetail(recordSafe, level, s.Relationship.Continuity),
		InsightCandorLevel:   level,

		ActionObjective:      s.Strategy.ActionObjective,
		ActionAlignmentScore: completeness(s),

		Constraints: Constraints{
			RecordSafeMode:     recordSafe == 2,
			SoftenIfLowCeiling: ceiling == 0,
			ForbidLegalTerms:   true,
			ForbidThreats:      true,
		},
	}
}

// ─── RULES ────────────────────────────────────────────────────────────────────

// suggestDirection is first-match-wins. happened_before must be explicitly
// false for the maintain rule and explicitly true for the disengage rule.
func suggestDirection(s normalize.State, level RiskLevel, recordSafe int) normalize.Token {
	hb := s.Signals.HappenedBefore
	pb := s.Target.PowerBalance
	cont := s.Relationship.Continuity

	switch {
	case level == RiskLow && cont == "one_time" && hb != nil && !*hb:
		return DirectionMaintain
	case recordSafe == 2 && (pb == "they_above" || pb == "informal_influence") && cont == "ongoing" && hb != nil && *hb:
		return DirectionDisengage
	default:
		return DirectionReset
	}
}

// boundaryStrength is how explicit the boundary line may be, 0..2.
func boundaryStrength(direction, power normalize.Token, level RiskLevel) int {
	switch direction {
	case DirectionDisengage:
		return 2
	case DirectionReset:
		if level == RiskHigh && power == "they_above" {
			return 1
		}
		return 2
	default:
		if level == RiskHigh {
			return 0
		}
		return 1
	}
}

// escalationCeiling caps assertiveness: 0 very soft, 1 procedural, 2 firm.
func escalationCeiling(level RiskLevel, recordSafe int) int {
	if recordSafe == 2 {
		return 0
	}
	switch level {
	case RiskHigh:
		return 0
	case RiskModerate:
		return 1
	default:
		return 2
	}
}

func suggestTone(recordSafe, ceiling int, formality normalize.Token) normalize.Token {
	switch {
	case recordSafe == 2, formality == "formal":
		return "formal"
	case ceiling <= 1:
		return "neutral"
	default:
		return "calm"
	}
}

func suggestDetail(recordSafe int, level RiskLevel, continuity normalize.Token) normalize.Token {
	switch {
	case recordSafe == 2:
		return "detailed"
	case level != RiskLow, continuity == "ongoing":
		return "standard"
	default:
		return "concise"
	}
}

// postureProfile is a short slash-joined label of the known context plus a
// posture word.
func postureProfile(s normalize.State, level RiskLevel, recordSafe int) string {
	var parts []string
	for _, t := range []normalize.Token{
		s.Target.RecipientType,
		s.Target.PowerBalance,
		s.Relationship.Continuity,
		s.Relationship.Importance,
	} {
		if !t.IsZero() {
			parts = append(parts, string(t))
		}
	}

	switch {
	case recordSafe == 2:
		parts = append(parts, "record_safe")
	case level == RiskHigh:
		parts = append(parts, "high_caution")
	case level == RiskModerate:
		parts = append(parts, "steady")
	default:
		parts = append(parts, "light")
	}
	return strings.Join(parts, " / ")
}

// completeness is the share of the six context fields needed for a good
// draft. It is a soft signal and never gates generation.
func completeness(s normalize.State) float64 {
	present := 0
	for _, ok := range []bool{
		!s.Target.RecipientType.IsZero(),
		!s.Target.PowerBalance.IsZero(),
		!s.Relationship.Importance.IsZero(),
		!s.Relationship.Continuity.IsZero(),
		!s.Strategy.ActionObjective.IsZero(),
		s.FactsLength() >= normalize.MinFactsLength,
	} {
		if ok {
			present++
		}
	}
	return float64(present) / 6
}
