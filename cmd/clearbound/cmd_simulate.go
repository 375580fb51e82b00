package main

import (
	"github.com/spf13/cobra"

	"github.com/useclearbound-netizen/clearbound-v2/internal/simulate"
)

func newSimulateCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the embedded simulation matrix through the strategy map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := simulate.Load()
			if err != nil {
				return err
			}
			return writeJSON(cmd, simulate.Run(m, full))
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include per-case results")
	return cmd
}
