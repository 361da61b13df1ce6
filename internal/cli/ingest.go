package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/wizvec/internal/config"
	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/cloo-solutions/wizvec/internal/progress"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and upsert a knowledge base snapshot",
		Long: `Load the snapshot, turn every entry of the selected categories into a
knowledge chunk, embed the chunks in batches and upsert them by source id.

Running the same snapshot twice leaves the store unchanged apart from
updated_at. Failed batches are reported and skipped.

Exit codes:
  0  complete, partial or empty run
  1  the run could not start (bad source, bad configuration)
  2  interrupted`,
		Example: `  wizvec ingest --source extracted_spells.json
  wizvec ingest -s s3://wizard-kb/snapshot.json --category Quests --category Spells
  wizvec ingest --store badger --no-progress --json`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().StringP("source", "s", "", "Snapshot location, a file path or s3://bucket/key")
	cmd.Flags().StringSlice("category", nil, "Only ingest these categories (repeatable, case-insensitive)")
	cmd.Flags().Int("batch-size", 0, "Chunks per embedding request")
	cmd.Flags().Int("min-length", 0, "Skip entries whose cleaned text is not longer than this")
	cmd.Flags().Duration("backoff", 0, "Pause after a failed batch")
	cmd.Flags().String("store", "", "Vector store: pg or badger")
	cmd.Flags().Bool("no-progress", false, "Only print the final summary")
	cmd.Flags().Bool("json", false, "Write the run report as JSON to stdout")

	bindEnv(cmd, "source", "WIZVEC_SOURCE")
	bindEnv(cmd, "category", "WIZVEC_CATEGORIES")
	bindEnv(cmd, "batch-size", "WIZVEC_BATCH_SIZE")
	bindEnv(cmd, "min-length", "WIZVEC_MIN_CONTENT_LENGTH")
	bindEnv(cmd, "backoff", "WIZVEC_BACKOFF")
	bindEnv(cmd, "store", "WIZVEC_STORE")

	return cmd
}

type reportOutput struct {
	*domain.UpsertReport
	Status  domain.RunStatus `json:"status"`
	Summary string           `json:"summary"`
}

func newReportOutput(r *domain.UpsertReport) reportOutput {
	return reportOutput{UpsertReport: r, Status: r.Status(), Summary: r.Summary()}
}

// applyIngestFlags overrides cfg with every flag set on the command line.
func applyIngestFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source, _ = flags.GetString("source")
	}
	if flags.Changed("category") {
		cfg.Categories, _ = flags.GetStringSlice("category")
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("min-length") {
		cfg.MinContentLength, _ = flags.GetInt("min-length")
	}
	if flags.Changed("backoff") {
		cfg.Backoff, _ = flags.GetDuration("backoff")
	}
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIngestFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	defer initTelemetry(cfg, logger)()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ing, err := buildIngestion(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ing.Close()

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	asJSON, _ := cmd.Flags().GetBool("json")
	ing.Pipeline.WithObserver(progress.NewObserver(cmd.ErrOrStderr(), noProgress))

	// Categories come from cfg through the pipeline config.
	report, runErr := ing.Pipeline.Run(ctx, cfg.Source, nil)
	if report == nil {
		return runErr
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(newReportOutput(report)); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if total, err := ing.Store.Count(cmd.Context(), ""); err == nil {
		logger.Info("store size", "chunks", total)
	} else {
		logger.Warn("failed to count stored chunks", "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || report.Cancelled {
			return &ExitError{Code: ExitCancelled, Err: fmt.Errorf("ingestion interrupted: %w", runErr)}
		}
		return runErr
	}
	return nil
}
