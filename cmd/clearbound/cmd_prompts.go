package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/useclearbound-netizen/clearbound-v2/internal/store"
	"github.com/useclearbound-netizen/clearbound-v2/internal/templates"
)

func newPromptsCmd() *cobra.Command {
	var (
		dsn   string
		table string
	)
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage prompt templates stored in Postgres",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("PROMPTS_DATABASE_URL"), "Postgres DSN (default $PROMPTS_DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&table, "table", "prompt_templates", "template table name")

	open := func(cmd *cobra.Command) (*store.Store, error) {
		if dsn == "" {
			return nil, fmt.Errorf("--dsn or PROMPTS_DATABASE_URL is required")
		}
		st, err := store.Open(cmd.Context(), dsn, table)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(cmd.Context()); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range list {
				fmt.Fprintf(out, "%-48s %6d bytes  %s\n", t.Path, len(t.Body), t.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	})

	var dryRun bool
	push := &cobra.Command{
		Use:   "push",
		Short: "Upsert the built-in templates into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			builtin, err := templates.Builtin()
			if err != nil {
				return err
			}
			paths := make([]string, 0, len(builtin))
			for p := range builtin {
				paths = append(paths, p)
			}
			sort.Strings(paths)

			out := cmd.OutOrStdout()
			if dryRun {
				for _, p := range paths {
					fmt.Fprintf(out, "would push %s\n", p)
				}
				return nil
			}

			st, err := open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, p := range paths {
				_, changed, err := st.PutTemplate(cmd.Context(), p, builtin[p])
				if err != nil {
					return err
				}
				status := "unchanged"
				if changed {
					status = "updated"
				}
				fmt.Fprintf(out, "%-9s %s\n", status, p)
			}
			return nil
		},
	}
	push.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be pushed without connecting")
	cmd.AddCommand(push)

	return cmd
}
