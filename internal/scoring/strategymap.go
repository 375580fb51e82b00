package scoring

import (
	"fmt"

	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
)

// StrategyMapVersion is stamped on every map so clients can detect rule changes.
const StrategyMapVersion = "1.0"

// ─── SITUATION ────────────────────────────────────────────────────────────────

// Situation is the resolved signal set the five-mode map scores. Every field
// has a definite value; absence has already been folded into the zero value.
type Situation struct {
	EmotionalVolatility     string `json:"emotional_volatility" yaml:"emotional_volatility" jsonschema:"low, medium or high"`
	Continuity              string `json:"continuity" yaml:"continuity" jsonschema:"low, medium or high"`
	PriorConflict           bool   `json:"prior_conflict" yaml:"prior_conflict"`
	UrgencyLevel            string `json:"urgency_level" yaml:"urgency_level" jsonschema:"low, normal or high"`
	PowerAsymmetry          bool   `json:"power_asymmetry" yaml:"power_asymmetry"`
	AudienceMultiparty      bool   `json:"audience_multiparty" yaml:"audience_multiparty"`
	RelationshipAxis        string `json:"relationship_axis" yaml:"relationship_axis" jsonschema:"intimate, personal, professional or peripheral"`
	WrittenRecordExpected   bool   `json:"written_record_expected" yaml:"written_record_expected"`
	LegalOrLiabilityContext bool   `json:"legal_or_liability_context" yaml:"legal_or_liability_context"`
}

// ─── RESULT ───────────────────────────────────────────────────────────────────

// ModeResult is one failure mode's score and tier.
type ModeResult struct {
	Score int  `json:"score"`
	Tier  Tier `json:"tier"`
}

// RiskProfile holds the five modes and the overall tier.
type RiskProfile struct {
	Modes       map[Mode]ModeResult `json:"modes"`
	OverallTier Tier                `json:"overall_tier"`
}

// Map is the full five-mode output.
type Map struct {
	Version         string      `json:"version"`
	RiskProfile     RiskProfile `json:"risk_profile"`
	StrategyPresets Presets     `json:"strategy_presets"`
	Drivers         []Driver    `json:"drivers"`
}

// modeOrder is the fixed order scores are reported in.
var modeOrder = []Mode{
	ModeEscalation,
	ModeMisinterpretation,
	ModeDocumentationBackfire,
	ModeRelationshipBreak,
	ModeAdmission,
}

// ─── RULES ────────────────────────────────────────────────────────────────────

// rule adds delta to mode when its condition holds. Rules are evaluated in
// slice order, which is also driver emission order.
type rule struct {
	signal string
	mode   Mode
	delta  int
	reason string
	when   func(Situation) bool
}

func volatilityHigh(s Situation) bool { return s.EmotionalVolatility == "high" }
func continuityHigh(s Situation) bool { return s.Continuity == "high" }
func priorConflict(s Situation) bool  { return s.PriorConflict }
func urgencyHigh(s Situation) bool    { return s.UrgencyLevel == "high" }
func powerAsym(s Situation) bool      { return s.PowerAsymmetry }
func multiparty(s Situation) bool     { return s.AudienceMultiparty }
func peripheral(s Situation) bool     { return s.RelationshipAxis == "peripheral" }
func writtenRecord(s Situation) bool  { return s.WrittenRecordExpected }
func legal(s Situation) bool          { return s.LegalOrLiabilityContext }
func intimate(s Situation) bool       { return s.RelationshipAxis == "intimate" }
func personal(s Situation) bool       { return s.RelationshipAxis == "personal" }

var rules = []rule{
	// escalation
	{"emotional_volatility=high", ModeEscalation, 25, "High volatility increases escalation probability.", volatilityHigh},
	{"continuity=high", ModeEscalation, 20, "Ongoing interaction increases escalation probability.", continuityHigh},
	{"prior_conflict=true", ModeEscalation, 15, "Prior conflict raises escalation likelihood.", priorConflict},
	{"urgency_level=high", ModeEscalation, 15, "High urgency tends to compress tone control.", urgencyHigh},
	{"power_asymmetry=true", ModeEscalation, 10, "Power imbalance increases escalation sensitivity.", powerAsym},

	// misinterpretation
	{"audience_multiparty=true", ModeMisinterpretation, 20, "More observers increase misreading risk.", multiparty},
	{"emotional_volatility=high", ModeMisinterpretation, 15, "High volatility increases ambiguity and misreads.", volatilityHigh},
	{"relationship_axis=peripheral", ModeMisinterpretation, 15, "Lower shared context increases misinterpretation risk.", peripheral},
	{"written_record_expected=true", ModeMisinterpretation, 10, "Written records amplify interpretation and replay.", writtenRecord},
	{"urgency_level=high", ModeMisinterpretation, 10, "Urgency reduces clarity and increases misreads.", urgencyHigh},

	// documentation backfire
	{"written_record_expected=true", ModeDocumentationBackfire, 30, "Documentation increases record-based blowback risk.", writtenRecord},
	{"legal_or_liability_context=true", ModeDocumentationBackfire, 25, "Liability context increases documentation backfire risk.", legal},
	{"power_asymmetry=true", ModeDocumentationBackfire, 10, "Power imbalance increases documentation sensitivity.", powerAsym},

	// relationship break
	{"relationship_axis=intimate", ModeRelationshipBreak, 25, "Intimate relationships have higher rupture stakes.", intimate},
	{"relationship_axis=personal", ModeRelationshipBreak, 20, "Personal relationships increase rupture sensitivity.", personal},
	{"prior_conflict=true", ModeRelationshipBreak, 15, "Prior conflict increases break risk.", priorConflict},
	{"continuity=high", ModeRelationshipBreak, 10, "Ongoing continuity raises relationship stakes.", continuityHigh},

	// admission
	{"legal_or_liability_context=true", ModeAdmission, 35, "Liability context increases admission risk.", legal},
	{"written_record_expected=true", ModeAdmission, 20, "Written records increase admission exposure.", writtenRecord},
	{"power_asymmetry=true", ModeAdmission, 15, "Power imbalance increases admission consequences.", powerAsym},
	{"relationship_axis=peripheral", ModeAdmission, 10, "Peripheral relationships increase formality and admission exposure.", peripheral},
}

// Cross-mode and override thresholds.
const (
	derivedEscalationThreshold = 60
	derivedBreakDelta          = 15
	overrideThreshold          = 60
)

// ─── COMPUTATION ──────────────────────────────────────────────────────────────

// ComputeMap scores the five failure modes for sit.
func ComputeMap(sit Situation) Map {
	raw := make(map[Mode]int, len(modeOrder))
	drivers := make([]Driver, 0, len(rules)+1)

	for _, r := range rules {
		if !r.when(sit) {
			continue
		}
		raw[r.mode] += r.delta
		drivers = append(drivers, Driver{
			Type:         DriverRule,
			SourceSignal: r.signal,
			AffectedMode: r.mode,
			Delta:        r.delta,
			Reason:       r.reason,
		})
	}

	if raw[ModeEscalation] >= derivedEscalationThreshold {
		raw[ModeRelationshipBreak] += derivedBreakDelta
		drivers = append(drivers, Driver{
			Type:         DriverDerived,
			SourceSignal: fmt.Sprintf("derived:escalation>=%d", derivedEscalationThreshold),
			AffectedMode: ModeRelationshipBreak,
			Delta:        derivedBreakDelta,
			Reason:       "High escalation elevates relationship break risk.",
		})
	}

	modes := make(map[Mode]ModeResult, len(modeOrder))
	for _, m := range modeOrder {
		score := clamp(raw[m], 0, 100)
		modes[m] = ModeResult{Score: score, Tier: TierOf(score)}
	}

	overall := overallTier(modes)
	return Map{
		Version:         StrategyMapVersion,
		RiskProfile:     RiskProfile{Modes: modes, OverallTier: overall},
		StrategyPresets: applyOverrides(PresetsFor(overall), modes),
		Drivers:         drivers,
	}
}

// overallTier is the highest mode tier, forced to extreme by the admission,
// documentation and escalation-plus-break overrides.
func overallTier(modes map[Mode]ModeResult) Tier {
	tiers := make([]Tier, 0, len(modeOrder))
	for _, m := range modeOrder {
		tiers = append(tiers, modes[m].Tier)
	}
	overall := MaxTier(tiers...)

	switch {
	case modes[ModeAdmission].Score >= extremeThreshold,
		modes[ModeDocumentationBackfire].Score >= extremeThreshold,
		modes[ModeEscalation].Score >= extremeThreshold && modes[ModeRelationshipBreak].Score >= highThreshold:
		overall = TierExtreme
	}
	return overall
}

// ctaSteps orders CTA intensity from loosest to tightest.
var ctaSteps = []string{"normal", "soft", "none"}

// applyOverrides tightens individual presets when a mode crosses the override
// threshold. It never loosens a value.
func applyOverrides(p Presets, modes map[Mode]ModeResult) Presets {
	if modes[ModeAdmission].Score >= overrideThreshold {
		p.DisclosureLevel = "minimal"
	}
	if modes[ModeMisinterpretation].Score >= overrideThreshold {
		p.StructureMode = "formal"
	}
	if modes[ModeEscalation].Score >= overrideThreshold && p.ToneCeiling == "warm" {
		p.ToneCeiling = "neutral"
	}
	if modes[ModeRelationshipBreak].Score >= overrideThreshold {
		for i := 0; i < len(ctaSteps)-1; i++ {
			if p.CTAIntensity == ctaSteps[i] {
				p.CTAIntensity = ctaSteps[i+1]
				break
			}
		}
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ─── STRATEGY MAP MODEL ───────────────────────────────────────────────────────

// StrategyMap is the five-mode model. It derives a Situation from the request
// and then maps the result onto the same engine parameters the aggregate
// model produces.
type StrategyMap struct{}

// Name implements Model.
func (StrategyMap) Name() string { return ModelStrategyMap }

// Compute implements Model.
func (StrategyMap) Compute(s normalize.State) Parameters {
	sit := SituationFromState(s)
	m := ComputeMap(sit)

	scores := make([]ModeScore, 0, len(modeOrder))
	top := 0
	for _, mode := range modeOrder {
		r := m.RiskProfile.Modes[mode]
		scores = append(scores, ModeScore{Mode: mode, Score: r.Score, Tier: r.Tier})
		if r.Score > top {
			top = r.Score
		}
	}

	return Parameters{
		Model:       ModelStrategyMap,
		Scores:      scores,
		OverallTier: m.RiskProfile.OverallTier,
		Presets:     m.StrategyPresets,
		Drivers:     m.Drivers,
		Engine:      deriveEngine(s, levelFromTier(m.RiskProfile.OverallTier), top, mapRecordSafe(m, sit)),
	}
}

// mapRecordSafe: documentation backfire at high or above forces 2; any
// admission exposure or power asymmetry gives 1.
func mapRecordSafe(m Map, sit Situation) int {
	switch {
	case m.RiskProfile.Modes[ModeDocumentationBackfire].Tier.AtLeast(TierHigh):
		return 2
	case m.RiskProfile.Modes[ModeAdmission].Tier.AtLeast(TierMedium), sit.PowerAsymmetry:
		return 1
	default:
		return 0
	}
}
