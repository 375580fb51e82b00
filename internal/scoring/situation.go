package scoring

import "github.com/useclearbound-netizen/clearbound-v2/internal/normalize"

// continuityLevels maps relationship continuity onto the situation scale.
var continuityLevels = map[normalize.Token]string{
	"ongoing":    "high",
	"short_term": "medium",
	"one_time":   "low",
}

// relationshipAxes maps recipient types onto relationship axes.
var relationshipAxes = map[normalize.Token]string{
	"family":      "intimate",
	"other":       "personal",
	"client":      "peripheral",
	"supervisor":  "professional",
	"peer":        "professional",
	"subordinate": "professional",
}

// SituationFromState derives the five-mode signal set from a normalized
// request. Values given explicitly in the request's situation group win over
// derived ones; multiparty audience and legal context are only ever explicit.
func SituationFromState(s normalize.State) Situation {
	hb := s.Signals.HappenedBefore
	pb := s.Target.PowerBalance

	sit := Situation{
		Continuity:       continuityLevels[s.Relationship.Continuity],
		PriorConflict:    (hb != nil && *hb) || s.HasFeelsOff("keeps_repeating"),
		UrgencyLevel:     "normal",
		PowerAsymmetry:   pb == "they_above" || pb == "informal_influence" || pb == "i_above" || s.HasFeelsOff("power_uneven") || s.HasImpact("they_have_leverage", "leverage"),
		RelationshipAxis: relationshipAxes[s.Target.RecipientType],

		WrittenRecordExpected: s.HasImpact("documentation_sensitivity", "documentation") || s.Target.Formality == "formal",
	}

	switch {
	case s.HasImpact("emotional_fallout", "emotional"):
		sit.EmotionalVolatility = "high"
	case s.HasFeelsOff("felt_overlooked"):
		sit.EmotionalVolatility = "medium"
	default:
		sit.EmotionalVolatility = "low"
	}
	if s.HasFeelsOff("decision_changed_things") {
		sit.UrgencyLevel = "high"
	}

	return applySituation(sit, s.Situation)
}

// applySituation overlays explicit request values onto derived ones.
func applySituation(sit Situation, o normalize.Situation) Situation {
	setToken := func(dst *string, t normalize.Token) {
		if !t.IsZero() {
			*dst = string(t)
		}
	}
	setBool := func(dst *bool, b *bool) {
		if b != nil {
			*dst = *b
		}
	}

	setToken(&sit.EmotionalVolatility, o.EmotionalVolatility)
	setToken(&sit.Continuity, o.Continuity)
	setBool(&sit.PriorConflict, o.PriorConflict)
	setToken(&sit.UrgencyLevel, o.UrgencyLevel)
	setBool(&sit.PowerAsymmetry, o.PowerAsymmetry)
	setBool(&sit.AudienceMultiparty, o.AudienceMultiparty)
	setToken(&sit.RelationshipAxis, o.RelationshipAxis)
	setBool(&sit.WrittenRecordExpected, o.WrittenRecordExpected)
	setBool(&sit.LegalOrLiabilityContext, o.LegalOrLiabilityContext)
	return sit
}
