// Package simulate runs the five-mode strategy map over a fixed matrix of
// situations and summarizes the tier distribution. It is a regression
// harness for rule changes: the summary is stable for a given matrix.
package simulate

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
)

//go:embed matrix_v1.yaml
var matrixV1 []byte

// ErrInvalidMatrix is returned when a matrix has no cases or bad ids.
var ErrInvalidMatrix = errors.New("simulate: invalid matrix")

// ─── MATRIX ───────────────────────────────────────────────────────────────────

// Case is one situation in the matrix.
type Case struct {
	ID      string            `yaml:"id"`
	Label   string            `yaml:"label"`
	Signals scoring.Situation `yaml:"signals"`
}

// Matrix is a versioned list of cases.
type Matrix struct {
	Version string `yaml:"version"`
	Cases   []Case `yaml:"cases"`
}

// Load returns the embedded v1 matrix.
func Load() (Matrix, error) {
	return Parse(matrixV1)
}

// Parse decodes a YAML matrix. Case ids must be present and unique.
func Parse(data []byte) (Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Matrix{}, fmt.Errorf("simulate: parse matrix: %w", err)
	}
	if len(m.Cases) == 0 {
		return Matrix{}, fmt.Errorf("%w: expected at least one case", ErrInvalidMatrix)
	}
	seen := make(map[string]bool, len(m.Cases))
	for i, c := range m.Cases {
		if c.ID == "" {
			return Matrix{}, fmt.Errorf("%w: case %d has no id", ErrInvalidMatrix, i)
		}
		if seen[c.ID] {
			return Matrix{}, fmt.Errorf("%w: duplicate case id %q", ErrInvalidMatrix, c.ID)
		}
		seen[c.ID] = true
	}
	return m, nil
}

// ─── SUMMARY ──────────────────────────────────────────────────────────────────

// CaseResult is the map output for one case, minus the driver list.
type CaseResult struct {
	ID              string              `json:"id"`
	Label           *string             `json:"label"`
	RiskProfile     scoring.RiskProfile `json:"risk_profile"`
	StrategyPresets scoring.Presets     `json:"strategy_presets"`
	DriversCount    int                 `json:"drivers_count"`
}

// QCSummary is a quick sanity check over the run.
type QCSummary struct {
	Cases        int `json:"cases"`
	ExtremeCount int `json:"extreme_count"`
}

// Summary is the result of a matrix run. Results is only populated for a
// full run.
type Summary struct {
	OK         bool                 `json:"ok"`
	Version    string               `json:"version"`
	Count      int                  `json:"count"`
	TierCounts map[scoring.Tier]int `json:"tier_counts"`
	QCSummary  QCSummary            `json:"qc_summary"`
	Results    []CaseResult         `json:"results,omitempty"`
}

// Run scores every case in m.
func Run(m Matrix, full bool) Summary {
	sum := Summary{
		OK:         true,
		Version:    scoring.StrategyMapVersion,
		Count:      len(m.Cases),
		TierCounts: make(map[scoring.Tier]int),
	}

	for _, c := range m.Cases {
		sm := scoring.ComputeMap(c.Signals)
		sum.TierCounts[sm.RiskProfile.OverallTier]++

		if full {
			r := CaseResult{
				ID:              c.ID,
				RiskProfile:     sm.RiskProfile,
				StrategyPresets: sm.StrategyPresets,
				DriversCount:    len(sm.Drivers),
			}
			if c.Label != "" {
				label := c.Label
				r.Label = &label
			}
			sum.Results = append(sum.Results, r)
		}
	}

	sum.QCSummary = QCSummary{Cases: sum.Count, ExtremeCount: sum.TierCounts[scoring.TierExtreme]}
	return sum
}
