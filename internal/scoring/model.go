// Package scoring is the deterministic risk engine. It turns a normalized
// request into risk tiers, strategy presets, an ordered driver log and the
// engine parameters that steer generation.
//
// Two variants implement the same Model interface: Aggregate sums categorical
// weights into one score, StrategyMap scores five independent failure modes.
// A deployment picks one with New. Both are pure and safe for concurrent use:
// identical input always yields identical output, driver order included.
package scoring

import (
	"fmt"

	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
)

// ─── MODEL ────────────────────────────────────────────────────────────────────

// Model names accepted by New.
const (
	ModelAggregate   = "aggregate"
	ModelStrategyMap = "strategy_map"
)

// Model computes Parameters from a normalized request.
type Model interface {
	Name() string
	Compute(s normalize.State) Parameters
}

// New returns the model registered under name. An empty name selects the
// aggregate model.
func New(name string) (Model, error) {
	switch name {
	case "", ModelAggregate:
		return Aggregate{}, nil
	case ModelStrategyMap:
		return StrategyMap{}, nil
	default:
		return nil, fmt.Errorf("scoring: unknown model %q", name)
	}
}

// ─── OUTPUT TYPES ─────────────────────────────────────────────────────────────

// Mode names a scored dimension.
type Mode string

const (
	ModeAggregate             Mode = "aggregate"
	ModeEscalation            Mode = "escalation_risk"
	ModeMisinterpretation     Mode = "misinterpretation_risk"
	ModeDocumentationBackfire Mode = "documentation_backfire_risk"
	ModeRelationshipBreak     Mode = "relationship_break_risk"
	ModeAdmission             Mode = "admission_risk"
)

// ModeScore is one scored dimension with its tier.
type ModeScore struct {
	Mode  Mode `json:"mode"`
	Score int  `json:"score"`
	Tier  Tier `json:"tier"`
}

// DriverType distinguishes direct rule hits from cross-mode effects.
type DriverType string

const (
	DriverRule    DriverType = "rule"
	DriverDerived DriverType = "derived"
)

// Driver documents one rule's contribution to a score.
type Driver struct {
	Type         DriverType `json:"type"`
	SourceSignal string     `json:"source_signal"`
	AffectedMode Mode       `json:"affected_mode"`
	Delta        int        `json:"delta"`
	Reason       string     `json:"reason"`
}

// Presets is the tier-indexed bundle of stylistic limits handed to generation.
type Presets struct {
	ToneCeiling              string `json:"tone_ceiling"`
	DisclosureLevel          string `json:"disclosure_level"`
	DocumentationSensitivity string `json:"documentation_sensitivity"`
	StructureMode            string `json:"structure_mode"`
	CTAIntensity             string `json:"cta_intensity"`
}

// Parameters is the unified output of every Model.
type Parameters struct {
	Model       string           `json:"model"`
	Scores      []ModeScore      `json:"scores"`
	OverallTier Tier             `json:"overall_tier"`
	Presets     Presets          `json:"presets"`
	Drivers     []Driver         `json:"drivers"`
	Engine      EngineParameters `json:"engine"`
}

// Score returns the score recorded for mode, and whether it exists.
func (p Parameters) Score(mode Mode) (ModeScore, bool) {
	for _, s := range p.Scores {
		if s.Mode == mode {
			return s, true
		}
	}
	return ModeScore{}, false
}

// ─── PRESETS ──────────────────────────────────────────────────────────────────

var presetTable = map[Tier]Presets{
	TierLow:     {ToneCeiling: "warm", DisclosureLevel: "open", DocumentationSensitivity: "prefer", StructureMode: "structured", CTAIntensity: "normal"},
	TierMedium:  {ToneCeiling: "neutral", DisclosureLevel: "bounded", DocumentationSensitivity: "cautious", StructureMode: "structured", CTAIntensity: "normal"},
	TierHigh:    {ToneCeiling: "firm", DisclosureLevel: "minimal", DocumentationSensitivity: "cautious", StructureMode: "formal", CTAIntensity: "soft"},
	TierExtreme: {ToneCeiling: "hard", DisclosureLevel: "minimal", DocumentationSensitivity: "avoid", StructureMode: "formal", CTAIntensity: "none"},
}

// PresetsFor returns the base preset bundle for a tier. Unknown tiers get the
// low-tier bundle.
func PresetsFor(t Tier) Presets {
	if p, ok := presetTable[t]; ok {
		return p
	}
	return presetTable[TierLow]
}
