// clearbound is the operator CLI: score and map situations offline, run the
// simulation matrix, validate model output, manage stored prompt templates,
// and serve the engine as MCP tools.
//
// Usage:
//
//	clearbound score [-f state.json] [--model=aggregate|strategy_map]
//	clearbound strategy [-f situation.json] [--from-state]
//	clearbound simulate [--full]
//	clearbound validate --package=<pkg> [-f candidate.json]
//	clearbound prompts list|push [--dsn=<url>]
//	clearbound mcp
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clearbound",
		Short: "Risk scoring and draft tooling for ClearBound",
		Long: "clearbound runs the risk engine, the simulation matrix and the output\n" +
			"quality gate locally, and manages the prompt templates the API loads.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.Version = version

	root.AddCommand(newScoreCmd())
	root.AddCommand(newStrategyCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newPromptsCmd())
	root.AddCommand(newMCPCmd())
	return root
}

// logger writes to stderr so stdout stays clean for JSON and MCP frames.
func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
