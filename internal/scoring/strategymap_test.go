package scoring_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
)

// ─── ComputeMap ───────────────────────────────────────────────────────────────

func TestComputeMap_QuietSituation(t *testing.T) {
	m := scoring.ComputeMap(scoring.Situation{EmotionalVolatility: "low", UrgencyLevel: "normal", RelationshipAxis: "professional"})

	if len(m.Drivers) != 0 {
		t.Errorf("expected no drivers, got %d", len(m.Drivers))
	}
	if m.RiskProfile.OverallTier != scoring.TierLow {
		t.Errorf("overall tier: got %q, want low", m.RiskProfile.OverallTier)
	}
	if diff := cmp.Diff(scoring.PresetsFor(scoring.TierLow), m.StrategyPresets); diff != "" {
		t.Errorf("presets (-want +got):\n%s", diff)
	}
	if m.Version != "1.0" {
		t.Errorf("version: got %q", m.Version)
	}
}

func TestComputeMap_EscalationHeavy(t *testing.T) {
	sit := scoring.Situation{
		EmotionalVolatility: "high",
		Continuity:          "high",
		PriorConflict:       true,
		UrgencyLevel:        "high",
		PowerAsymmetry:      true,
	}
	m := scoring.ComputeMap(sit)

	want := map[scoring.Mode]scoring.ModeResult{
		scoring.ModeEscalation:            {Score: 85, Tier: scoring.TierExtreme},
		scoring.ModeMisinterpretation:     {Score: 25, Tier: scoring.TierMedium},
		scoring.ModeDocumentationBackfire: {Score: 10, Tier: scoring.TierLow},
		scoring.ModeRelationshipBreak:     {Score: 40, Tier: scoring.TierMedium},
		scoring.ModeAdmission:             {Score: 15, Tier: scoring.TierLow},
	}
	if diff := cmp.Diff(want, m.RiskProfile.Modes); diff != "" {
		t.Errorf("modes (-want +got):\n%s", diff)
	}

	// 5 escalation + 2 misinterpretation + 1 documentation + 2 break + 1 admission + derived
	if len(m.Drivers) != 12 {
		t.Fatalf("drivers: got %d, want 12", len(m.Drivers))
	}
	last := m.Drivers[len(m.Drivers)-1]
	if last.Type != scoring.DriverDerived || last.SourceSignal != "derived:escalation>=60" || last.AffectedMode != scoring.ModeRelationshipBreak {
		t.Errorf("last driver: got %+v, want derived relationship break", last)
	}
	if m.RiskProfile.OverallTier != scoring.TierExtreme {
		t.Errorf("overall tier: got %q, want extreme", m.RiskProfile.OverallTier)
	}
}

func TestComputeMap_DerivedRuleAtExactlySixty(t *testing.T) {
	sit := scoring.Situation{EmotionalVolatility: "high", Continuity: "high", PriorConflict: true}
	m := scoring.ComputeMap(sit)

	if got := m.RiskProfile.Modes[scoring.ModeEscalation].Score; got != 60 {
		t.Fatalf("escalation: got %d, want 60", got)
	}
	if got := m.RiskProfile.Modes[scoring.ModeRelationshipBreak].Score; got != 40 {
		t.Errorf("relationship break: got %d, want 40 (15+10+15 derived)", got)
	}
	// 3 escalation + 1 misinterpretation + 2 break + derived
	if len(m.Drivers) != 7 {
		t.Errorf("drivers: got %d, want 7", len(m.Drivers))
	}
	if m.RiskProfile.OverallTier != scoring.TierHigh {
		t.Errorf("overall tier: got %q, want high", m.RiskProfile.OverallTier)
	}
}

func TestComputeMap_DerivedRuleBelowSixty(t *testing.T) {
	sit := scoring.Situation{EmotionalVolatility: "high", Continuity: "high", UrgencyLevel: "low"}
	m := scoring.ComputeMap(sit)
	for _, d := range m.Drivers {
		if d.Type == scoring.DriverDerived {
			t.Errorf("unexpected derived driver at escalation %d", m.RiskProfile.Modes[scoring.ModeEscalation].Score)
		}
	}
}

func TestComputeMap_AdmissionForcesExtreme(t *testing.T) {
	// legal 35 + written 20 + power 15 + peripheral 10 = 80 admission.
	sit := scoring.Situation{LegalOrLiabilityContext: true, WrittenRecordExpected: true, PowerAsymmetry: true, RelationshipAxis: "peripheral"}
	m := scoring.ComputeMap(sit)

	if m.RiskProfile.OverallTier != scoring.TierExtreme {
		t.Errorf("overall tier: got %q, want extreme", m.RiskProfile.OverallTier)
	}
	if m.StrategyPresets.DocumentationSensitivity != "avoid" {
		t.Errorf("documentation sensitivity: got %q, want avoid", m.StrategyPresets.DocumentationSensitivity)
	}
}

func TestComputeMap_SubExtremeStaysHigh(t *testing.T) {
	// written 30 + legal 25 = 55 documentation backfire and 55 admission.
	m := scoring.ComputeMap(scoring.Situation{WrittenRecordExpected: true, LegalOrLiabilityContext: true})
	if m.RiskProfile.OverallTier != scoring.TierHigh {
		t.Errorf("overall tier: got %q, want high", m.RiskProfile.OverallTier)
	}
}

func TestComputeMap_CTAStepsDownOnce(t *testing.T) {
	// escalation 60 → derived +15 lifts break to 65; overall stays high.
	sit := scoring.Situation{EmotionalVolatility: "high", Continuity: "high", PriorConflict: true, RelationshipAxis: "intimate"}
	m := scoring.ComputeMap(sit)

	if got := m.RiskProfile.Modes[scoring.ModeRelationshipBreak].Score; got != 65 {
		t.Fatalf("relationship break: got %d, want 65", got)
	}
	if m.RiskProfile.OverallTier != scoring.TierHigh {
		t.Fatalf("overall tier: got %q, want high", m.RiskProfile.OverallTier)
	}
	if got := m.StrategyPresets.CTAIntensity; got != "none" {
		t.Errorf("cta: got %q, want none (soft stepped down once)", got)
	}
}

func TestComputeMap_MisinterpretationForcesFormalStructure(t *testing.T) {
	sit := scoring.Situation{AudienceMultiparty: true, EmotionalVolatility: "high", RelationshipAxis: "peripheral", WrittenRecordExpected: true}
	m := scoring.ComputeMap(sit)
	if got := m.RiskProfile.Modes[scoring.ModeMisinterpretation].Score; got != 60 {
		t.Fatalf("misinterpretation: got %d, want 60", got)
	}
	if m.StrategyPresets.StructureMode != "formal" || m.StrategyPresets.DisclosureLevel != "minimal" {
		t.Errorf("presets: got %+v", m.StrategyPresets)
	}
}

func TestComputeMap_OverallNeverBelowAnyMode(t *testing.T) {
	sits := []scoring.Situation{
		{},
		{AudienceMultiparty: true},
		{RelationshipAxis: "intimate", PriorConflict: true},
		{LegalOrLiabilityContext: true},
		{UrgencyLevel: "high", PowerAsymmetry: true, WrittenRecordExpected: true},
	}
	for _, sit := range sits {
		m := scoring.ComputeMap(sit)
		for mode, r := range m.RiskProfile.Modes {
			if !m.RiskProfile.OverallTier.AtLeast(r.Tier) {
				t.Errorf("%+v: overall %q below %s tier %q", sit, m.RiskProfile.OverallTier, mode, r.Tier)
			}
		}
	}
}

func TestComputeMap_Deterministic(t *testing.T) {
	sit := scoring.Situation{
		EmotionalVolatility: "high", Continuity: "high", PriorConflict: true, UrgencyLevel: "high",
		PowerAsymmetry: true, AudienceMultiparty: true, RelationshipAxis: "peripheral",
		WrittenRecordExpected: true, LegalOrLiabilityContext: true,
	}
	first := scoring.ComputeMap(sit)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, scoring.ComputeMap(sit)); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
	for _, r := range first.RiskProfile.Modes {
		if r.Score < 0 || r.Score > 100 {
			t.Errorf("score %d out of range", r.Score)
		}
	}
}

// ─── SituationFromState ───────────────────────────────────────────────────────

func TestSituationFromState(t *testing.T) {
	req := situation("ongoing", "high", "they_above", true, "documentation_sensitivity", "emotional_fallout")
	req["target"] = map[string]any{"recipient_type": "family", "power_balance": "equal"}
	req["signals"].(map[string]any)["feels_off"] = []string{"decision_changed_things"}

	got := scoring.SituationFromState(stateFrom(t, req))
	want := scoring.Situation{
		EmotionalVolatility:   "high",
		Continuity:            "high",
		PriorConflict:         true,
		UrgencyLevel:          "high",
		PowerAsymmetry:        false,
		RelationshipAxis:      "intimate",
		WrittenRecordExpected: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("situation (-want +got):\n%s", diff)
	}
}

func TestSituationFromState_ExplicitOverridesWin(t *testing.T) {
	req := situation("ongoing", "high", "they_above", true)
	req["situation"] = map[string]any{
		"continuity":                 "low",
		"power_asymmetry":            false,
		"legal_or_liability_context": true,
		"audience_multiparty":        "yes", // not a boolean: ignored
	}

	got := scoring.SituationFromState(stateFrom(t, req))
	if got.Continuity != "low" || got.PowerAsymmetry || !got.LegalOrLiabilityContext || got.AudienceMultiparty {
		t.Errorf("overrides not applied: %+v", got)
	}
}

// ─── StrategyMap model ────────────────────────────────────────────────────────

func TestStrategyMap_ComputeFeedsEngine(t *testing.T) {
	m, err := scoring.New(scoring.ModelStrategyMap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := situation("ongoing", "high", "they_above", true, "documentation_sensitivity")
	req["situation"] = map[string]any{"legal_or_liability_context": true}

	p := m.Compute(stateFrom(t, req))

	if len(p.Scores) != 5 {
		t.Fatalf("scores: got %d, want 5", len(p.Scores))
	}
	// written 30 + legal 25 + power 10 = 65 documentation backfire.
	doc, ok := p.Score(scoring.ModeDocumentationBackfire)
	if !ok || doc.Score != 65 {
		t.Errorf("documentation backfire: got %+v", doc)
	}
	// admission: legal 35 + written 20 + power 15 = 70 → high.
	if p.OverallTier != scoring.TierHigh {
		t.Errorf("overall tier: got %q, want high", p.OverallTier)
	}
	if p.Engine.RiskLevel != scoring.RiskHigh || p.Engine.RecordSafeLevel != 2 || p.Engine.EscalationCeiling != 0 {
		t.Errorf("engine: got level=%q record_safe=%d ceiling=%d", p.Engine.RiskLevel, p.Engine.RecordSafeLevel, p.Engine.EscalationCeiling)
	}
	if p.Engine.RiskScore != 70 {
		t.Errorf("risk_score: got %d, want top mode score 70", p.Engine.RiskScore)
	}
}
