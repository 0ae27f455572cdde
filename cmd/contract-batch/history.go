package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cognicore/contractflow/pkg/contractflow/ledger"
	"github.com/cognicore/contractflow/pkg/contractflow/ledger/sqlite"
	"github.com/cognicore/contractflow/pkg/contractflow/report"
)

func historyCmd() *cobra.Command {
	var (
		ledgerPath string
		runID      string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded batch runs",
		Long: `List batch runs recorded with "run --ledger". With --run, print the
report of that run exactly as it was written to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ledgerPath == "" {
				return fmt.Errorf("--ledger required")
			}
			ctx := cmd.Context()
			l, err := sqlite.OpenSQLite(ctx, ledgerPath)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer l.Close()

			if runID != "" {
				return showRun(ctx, cmd.OutOrStdout(), l, runID)
			}
			return listRuns(ctx, cmd.OutOrStdout(), l, limit)
		},
	}
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "SQLite ledger file (required)")
	cmd.Flags().StringVar(&runID, "run", "", "print the report of one run")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}

func listRuns(ctx context.Context, w io.Writer, l ledger.Ledger, limit int) error {
	runs, err := l.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	for _, r := range runs {
		failed := fmt.Sprintf("%d failed", r.Failed)
		if r.Failed > 0 {
			failed = red(failed)
		}
		fmt.Fprintf(w, "%s  %s  %s  %d documents, %s, %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Total,
			green(fmt.Sprintf("%d analyzed", r.Succeeded)),
			failed)
	}
	return nil
}

func showRun(ctx context.Context, w io.Writer, l ledger.Ledger, id string) error {
	run, err := l.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return report.Write(w, run.Entries)
}
