package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/contractflow/internal/logging"
	"github.com/cognicore/contractflow/internal/remote"
	"github.com/cognicore/contractflow/pkg/contractflow"
	"github.com/cognicore/contractflow/pkg/contractflow/artifact"
	"github.com/cognicore/contractflow/pkg/contractflow/config"
	"github.com/cognicore/contractflow/pkg/contractflow/ledger"
	"github.com/cognicore/contractflow/pkg/contractflow/ledger/sqlite"
	"github.com/cognicore/contractflow/pkg/contractflow/manifest"
	"github.com/cognicore/contractflow/pkg/contractflow/pipeline"
	"github.com/cognicore/contractflow/pkg/contractflow/report"
)

type runOptions struct {
	configPath   string
	envPath      string
	envRequired  bool
	manifestPath string
	output       string
	ledgerPath   string
	pace         float64
	paceSet      bool
	model        string
	verbose      bool

	// environ replaces the process environment in tests.
	environ []string
}

func runCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every document of the manifest once",
		Long: `Process every document of the manifest once and print the batch report.

Credentials are read from the env file and the process environment:
  VITE_SUPABASE_URL            platform base URL
  VITE_SUPABASE_ANON_KEY       restricted key for the functions
  SUPABASE_SERVICE_ROLE_KEY    elevated key for the record store

Examples:
  contract-batch run
  contract-batch run --manifest contracts.yaml --output gs://reviews/2026
  contract-batch run --ledger runs.db --pace 0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			opts.envRequired = flags.Changed("env-file")
			opts.paceSet = flags.Changed("pace")
			return runBatch(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&opts.envPath, "env-file", ".env", "env file holding the platform credentials")
	flags.StringVar(&opts.manifestPath, "manifest", "", "YAML manifest (default: built-in manifest)")
	flags.StringVar(&opts.output, "output", "", "artifact location: directory, gs://bucket/prefix or s3://bucket/prefix")
	flags.StringVar(&opts.ledgerPath, "ledger", "", "SQLite file recording run history")
	flags.Float64Var(&opts.pace, "pace", 0, "maximum documents per second (0 = unlimited)")
	flags.StringVar(&opts.model, "model", "", "analysis model identifier")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "human-readable debug logging")
	return cmd
}

// loadSettings resolves configuration and applies flag overrides. Any error
// here aborts the run before a document is touched.
func loadSettings(opts runOptions) (config.Settings, error) {
	loader := config.Loader{
		ConfigPath:  opts.configPath,
		EnvPath:     opts.envPath,
		EnvRequired: opts.envRequired,
		Environ:     opts.environ,
	}
	s, err := loader.Load()
	if err != nil {
		return config.Settings{}, err
	}
	if opts.output != "" {
		s.Output = opts.output
	}
	if opts.ledgerPath != "" {
		s.LedgerPath = opts.ledgerPath
	}
	if opts.paceSet {
		s.Pace = opts.pace
	}
	if opts.model != "" {
		s.Model = opts.model
	}
	return s, s.Validate()
}

func loadManifest(path string) ([]contractflow.Document, error) {
	if path == "" {
		return manifest.Default(), nil
	}
	docs, err := manifest.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return docs, nil
}

func runBatch(ctx context.Context, opts runOptions, stdout, stderr io.Writer) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	docs, err := loadManifest(opts.manifestPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(opts.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	sink, err := artifact.Open(ctx, settings.Output, artifact.Options{
		S3Region:   settings.S3Region,
		S3Endpoint: settings.S3Endpoint,
	})
	if err != nil {
		return fmt.Errorf("open artifact sink: %w", err)
	}
	defer sink.Close()

	var runs ledger.Ledger
	if settings.LedgerPath != "" {
		runs, err = sqlite.OpenSQLite(ctx, settings.LedgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer runs.Close()
	}

	started := time.Now()
	runID := ledger.NewIDs().Next(started)
	logger = logger.With(zap.String("run_id", runID))

	p := pipeline.New(pipeline.Options{
		Settings: settings,
		Caller:   remote.NewClient(settings.Proxy),
		Sink:     sink,
		Logger:   logger,
	})
	entries := p.Run(ctx, docs)

	if err := report.Write(stdout, entries); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	summary := report.Summarize(entries)
	if runs != nil {
		err := runs.RecordRun(ctx, ledger.Run{
			ID:         runID,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Total:      summary.Total,
			Succeeded:  summary.Succeeded,
			Failed:     summary.Failed,
			Entries:    entries,
		})
		if err != nil {
			logger.Warn("run not recorded in ledger", zap.Error(err))
		}
	}

	printSummary(stderr, runID, summary)
	return nil
}

func printSummary(w io.Writer, runID string, s report.Summary) {
	status := color.New(color.FgGreen).Sprint("OK")
	if s.Failed > 0 {
		status = color.New(color.FgYellow).Sprint("PARTIAL")
	}
	if s.Succeeded == 0 && s.Total > 0 {
		status = color.New(color.FgRed).Sprint("FAILED")
	}
	fmt.Fprintf(w, "%s run %s: %d documents, %d analyzed, %d failed\n", status, runID, s.Total, s.Succeeded, s.Failed)
}
