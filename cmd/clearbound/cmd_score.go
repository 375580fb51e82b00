package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
)

type scoreOutput struct {
	Model      string             `json:"model"`
	Missing    []string           `json:"missing"`
	Parameters scoring.Parameters `json:"parameters"`
}

func newScoreCmd() *cobra.Command {
	var (
		file  string
		model string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute generation parameters for a client state",
		Long: "Reads a client state (raw, wrapped or JSON-encoded) and prints the\n" +
			"parameters the selected risk model derives from it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := scoring.New(model)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			state := normalize.Decode(data)
			missing := state.Missing()
			if missing == nil {
				missing = []string{}
			}
			return writeJSON(cmd, scoreOutput{
				Model:      m.Name(),
				Missing:    missing,
				Parameters: m.Compute(state),
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "state JSON file (default stdin)")
	cmd.Flags().StringVar(&model, "model", scoring.ModelAggregate, "risk model: aggregate or strategy_map")
	return cmd
}

func newStrategyCmd() *cobra.Command {
	var (
		file      string
		fromState bool
	)
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Score the five failure modes for a situation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			var sit scoring.Situation
			if fromState {
				sit = scoring.SituationFromState(normalize.Decode(data))
			} else if err := json.Unmarshal(data, &sit); err != nil {
				return fmt.Errorf("parse situation: %w", err)
			}
			return writeJSON(cmd, scoring.ComputeMap(sit))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "situation JSON file (default stdin)")
	cmd.Flags().BoolVar(&fromState, "from-state", false, "input is a client state; derive the situation from it")
	return cmd
}
