package scoring

import (
	"fmt"

	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
)

// ─── WEIGHT TABLES ────────────────────────────────────────────────────────────

// unknownWeight is the neutral weight for any missing or unrecognized value.
const unknownWeight = 1

var (
	continuityWeights = map[normalize.Token]int{"ongoing": 2, "short_term": 1, "one_time": 0}
	importanceWeights = map[normalize.Token]int{"very_high": 2, "high": 2, "medium": 1, "low": 0}
	powerWeights      = map[normalize.Token]int{"they_above": 2, "informal_influence": 2, "equal": 1, "i_above": 0}
)

// repeatBonus is added when the situation has explicitly happened before.
const repeatBonus = 1

// exposure is one impact-signal family. Any synonym counts, but the family
// contributes its weight only once.
type exposure struct {
	name   string
	keys   []normalize.Token
	weight int
	reason string
}

// Exposure families, in driver emission order.
var (
	exposureEmotional     = exposure{"emotional", []normalize.Token{"emotional_fallout", "emotional"}, 1, "Emotional fallout raises the cost of a misread."}
	exposureReputation    = exposure{"reputation", []normalize.Token{"reputation_impact", "reputation"}, 2, "Reputation exposure calls for a record-safe posture."}
	exposureDocumentation = exposure{"documentation", []normalize.Token{"documentation_sensitivity", "documentation"}, 2, "Documentation sensitivity means the text may be replayed."}
	exposureLeverage      = exposure{"leverage", []normalize.Token{"they_have_leverage", "leverage"}, 3, "Counterpart leverage sharply raises downside risk."}

	exposures = []exposure{exposureEmotional, exposureReputation, exposureDocumentation, exposureLeverage}
)

func weightOf(table map[normalize.Token]int, t normalize.Token) int {
	if w, ok := table[t]; ok {
		return w
	}
	return unknownWeight
}

func powerWeight(t normalize.Token) int { return weightOf(powerWeights, t) }

// ─── AGGREGATE MODEL ──────────────────────────────────────────────────────────

// Aggregate is the single-score model: a weighted sum of categorical inputs
// classified into low, moderate or high.
type Aggregate struct{}

// Name implements Model.
func (Aggregate) Name() string { return ModelAggregate }

// Breakdown is the per-input contribution to an aggregate score.
type Breakdown struct {
	Continuity    int            `json:"continuity"`
	Importance    int            `json:"importance"`
	Power         int            `json:"power"`
	Repeat        int            `json:"repeat"`
	Exposure      map[string]int `json:"exposure"`
	Total         int            `json:"total"`
	Documentation bool           `json:"-"`
	Reputation    bool           `json:"-"`
}

// Weigh computes the weighted sum for s. Every input resolves to a weight;
// nothing here can fail.
func Weigh(s normalize.State) Breakdown {
	b := Breakdown{
		Continuity: weightOf(continuityWeights, s.Relationship.Continuity),
		Importance: weightOf(importanceWeights, s.Relationship.Importance),
		Power:      powerWeight(s.Target.PowerBalance),
		Exposure:   make(map[string]int, len(exposures)),
	}
	if hb := s.Signals.HappenedBefore; hb != nil && *hb {
		b.Repeat = repeatBonus
	}

	b.Total = b.Continuity + b.Importance + b.Power + b.Repeat
	for _, e := range exposures {
		w := 0
		if s.HasImpact(e.keys...) {
			w = e.weight
		}
		b.Exposure[e.name] = w
		b.Total += w
	}

	b.Documentation = b.Exposure[exposureDocumentation.name] > 0
	b.Reputation = b.Exposure[exposureReputation.name] > 0
	return b
}

// recordSafeLevel: documentation exposure forces 2; reputation exposure or a
// strong counterpart gives 1.
func (b Breakdown) recordSafeLevel() int {
	switch {
	case b.Documentation:
		return 2
	case b.Reputation, b.Power >= 2:
		return 1
	default:
		return 0
	}
}

// ComputeEngine returns only the engine parameters for s.
func ComputeEngine(s normalize.State) EngineParameters {
	b := Weigh(s)
	return deriveEngine(s, LevelOf(b.Total), b.Total, b.recordSafeLevel())
}

// Compute implements Model.
func (Aggregate) Compute(s normalize.State) Parameters {
	b := Weigh(s)
	level := LevelOf(b.Total)
	tier := level.Tier()

	return Parameters{
		Model:       ModelAggregate,
		Scores:      []ModeScore{{Mode: ModeAggregate, Score: b.Total, Tier: tier}},
		OverallTier: tier,
		Presets:     PresetsFor(tier),
		Drivers:     aggregateDrivers(s, b),
		Engine:      deriveEngine(s, level, b.Total, b.recordSafeLevel()),
	}
}

// aggregateDrivers emits one driver per non-zero contribution in a fixed order.
func aggregateDrivers(s normalize.State, b Breakdown) []Driver {
	drivers := make([]Driver, 0, 8)
	add := func(signal string, delta int, reason string) {
		if delta == 0 {
			return
		}
		drivers = append(drivers, Driver{
			Type:         DriverRule,
			SourceSignal: signal,
			AffectedMode: ModeAggregate,
			Delta:        delta,
			Reason:       reason,
		})
	}

	add(signalOf("continuity", s.Relationship.Continuity), b.Continuity, "Continuing contact raises the stakes of the reply.")
	add(signalOf("importance", s.Relationship.Importance), b.Importance, "A relationship that matters raises the cost of a misstep.")
	add(signalOf("power_balance", s.Target.PowerBalance), b.Power, "Counterpart authority raises caution.")
	add("happened_before=true", b.Repeat, "A repeated pattern raises escalation likelihood.")
	for _, e := range exposures {
		add("impact_signals="+e.name, b.Exposure[e.name], e.reason)
	}
	return drivers
}

func signalOf(field string, t normalize.Token) string {
	if t.IsZero() {
		return field + "=unknown"
	}
	return fmt.Sprintf("%s=%s", field, t)
}
