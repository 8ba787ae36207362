package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/enrollment-kpi/internal/app"
)

func newSyncCmd() *cobra.Command {
	var (
		year        string
		skipMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every source base into the ledger and recompute metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				result, err := a.Pipeline.Run(ctx, year, skipMetrics)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&year, "year", "", "Limit metric recompute to one school year, e.g. 2024-25")
	cmd.Flags().BoolVar(&skipMetrics, "skip-metrics", false, "Only write the ledger")
	return cmd
}

func newRecomputeCmd() *cobra.Command {
	var year string
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute the snapshot and timeline of one school year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				snapshot, err := a.Pipeline.RecomputeYear(ctx, year)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snapshot)
			})
		},
	}
	cmd.Flags().StringVar(&year, "year", "", "School year, e.g. 2024-25 (required)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newSeedConfigCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "seed-config",
		Short: "Store default settings and the file-based source layout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Settings.Seed(ctx, overwrite); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "configuration seeded")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace documents that already exist")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
