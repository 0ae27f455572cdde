package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "contract-batch",
		Short: "Run contract documents through ingestion, clause extraction and analysis",
		Long: `contract-batch registers each document of a manifest with the contract
platform, submits its content, extracts clauses and runs a full contractual
analysis. Documents are processed one at a time; a failing document is
reported and the batch moves on.

The JSON report is written to stdout, logs to stderr.`,
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(manifestCmd())
	root.AddCommand(historyCmd())
	return root
}
