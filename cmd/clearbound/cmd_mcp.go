package main

import (
	"github.com/spf13/cobra"

	"github.com/useclearbound-netizen/clearbound-v2/internal/mcpserver"
	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
)

func newMCPCmd() *cobra.Command {
	var (
		model  string
		policy string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the engine as MCP tools over stdio",
		Long: "Starts an MCP server over stdin/stdout exposing compute_parameters,\n" +
			"strategy_map, validate_output and run_simulation.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := scoring.New(model)
			if err != nil {
				return err
			}
			p, err := qc.ParsePolicy(policy)
			if err != nil {
				return err
			}
			log := logger()
			srv, err := mcpserver.NewServer(version, m, qc.New(p), log)
			if err != nil {
				return err
			}
			log.Info("starting clearbound MCP server over stdio")
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&model, "model", scoring.ModelAggregate, "default risk model for compute_parameters")
	cmd.Flags().StringVar(&policy, "policy", "relaxed", "QC policy: relaxed or strict")
	return cmd
}
