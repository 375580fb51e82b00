package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
)

// errValidationFailed makes the command exit non-zero after printing.
var errValidationFailed = errors.New("validation failed")

func newValidateCmd() *cobra.Command {
	var (
		file     string
		pkg      string
		policy   string
		insight  bool
		controls qc.Controls
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the quality gate over a model output",
		Long: "Reads a candidate JSON object (as returned by the model) and prints\n" +
			"the quality gate result. Exits non-zero when the candidate fails.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := qc.ParsePolicy(policy)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			var candidate map[string]any
			if err := json.Unmarshal(data, &candidate); err != nil {
				return fmt.Errorf("parse candidate: %w", err)
			}

			v := qc.New(p)
			var res qc.Result
			if insight {
				res = v.ValidateInsight(candidate)
			} else {
				res = v.Validate(qc.Package(pkg), candidate, controls)
			}
			if err := writeJSON(cmd, res); err != nil {
				return err
			}
			if !res.OK {
				return errValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "candidate JSON file (default stdin)")
	cmd.Flags().StringVar(&pkg, "package", "", "message, email or bundle")
	cmd.Flags().StringVar(&policy, "policy", "relaxed", "relaxed or strict")
	cmd.Flags().BoolVar(&insight, "insight", false, "validate an insight block instead of a draft")
	cmd.Flags().StringVar(&controls.Tone, "tone", "", "expected tone")
	cmd.Flags().StringVar(&controls.Detail, "detail", "", "expected detail level")
	cmd.Flags().StringVar(&controls.Direction, "direction", "", "expected direction")
	cmd.Flags().StringVar(&controls.Objective, "objective", "", "expected action objective")
	return cmd
}
