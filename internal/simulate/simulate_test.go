package simulate_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
	"github.com/useclearbound-netizen/clearbound-v2/internal/simulate"
)

func TestRun_EmbeddedMatrix(t *testing.T) {
	m, err := simulate.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	sum := simulate.Run(m, false)
	want := map[scoring.Tier]int{
		scoring.TierLow:     1,
		scoring.TierMedium:  4,
		scoring.TierHigh:    3,
		scoring.TierExtreme: 2,
	}
	if diff := cmp.Diff(want, sum.TierCounts); diff != "" {
		t.Errorf("tier counts (-want +got):\n%s", diff)
	}
	if sum.Count != 10 || sum.QCSummary.Cases != 10 || sum.QCSummary.ExtremeCount != 2 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.Results != nil {
		t.Error("compact run should not carry results")
	}
}

func TestRun_FullResults(t *testing.T) {
	m, err := simulate.Load()
	if err != nil {
		t.Fatal(err)
	}
	sum := simulate.Run(m, true)
	if len(sum.Results) != sum.Count {
		t.Fatalf("results = %d, want %d", len(sum.Results), sum.Count)
	}

	byID := make(map[string]simulate.CaseResult)
	for _, r := range sum.Results {
		byID[r.ID] = r
	}

	tests := []struct {
		id      string
		tier    scoring.Tier
		drivers int
	}{
		{"baseline_quiet", scoring.TierLow, 0},
		// eleven rule drivers plus the derived escalation-to-break driver
		{"full_storm", scoring.TierExtreme, 12},
		{"intimate_conflict", scoring.TierHigh, 5},
		{"liability_everything", scoring.TierExtreme, 10},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r, ok := byID[tt.id]
			if !ok {
				t.Fatalf("case %s missing", tt.id)
			}
			if r.RiskProfile.OverallTier != tt.tier {
				t.Errorf("tier = %s, want %s", r.RiskProfile.OverallTier, tt.tier)
			}
			if r.DriversCount != tt.drivers {
				t.Errorf("drivers = %d, want %d", r.DriversCount, tt.drivers)
			}
			if r.Label == nil {
				t.Error("label should be set")
			}
		})
	}
}

func TestSummary_JSONShape(t *testing.T) {
	m, err := simulate.Parse([]byte(`
cases:
  - id: only
    signals: {}
`))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(simulate.Run(m, true))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	_ = json.Unmarshal(raw, &got)

	for _, key := range []string{"ok", "version", "count", "tier_counts", "qc_summary", "results"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q in %s", key, raw)
		}
	}
	first := got["results"].([]any)[0].(map[string]any)
	if first["label"] != nil {
		t.Errorf("empty label should be null, got %v", first["label"])
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no cases", "version: '1.0'\n"},
		{"missing id", "cases:\n  - label: x\n"},
		{"duplicate id", "cases:\n  - id: a\n  - id: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := simulate.Parse([]byte(tt.in)); !errors.Is(err, simulate.ErrInvalidMatrix) {
				t.Errorf("got %v, want ErrInvalidMatrix", err)
			}
		})
	}
	if _, err := simulate.Parse([]byte("cases: [")); err == nil {
		t.Error("malformed yaml should fail")
	}
}
