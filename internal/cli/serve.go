package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/wizvec/internal/api/handlers"
	"github.com/cloo-solutions/wizvec/internal/config"
	"github.com/cloo-solutions/wizvec/internal/database"
	"github.com/cloo-solutions/wizvec/internal/jobs"
	"github.com/cloo-solutions/wizvec/internal/server"
	"github.com/cloo-solutions/wizvec/internal/service"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ingestion API server",
		Long: `Serve POST /runs to trigger an ingestion and GET /runs/latest to read the
last report. With --interval the snapshot is also re-ingested periodically.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on")
	cmd.Flags().Duration("interval", 0, "Re-ingest the snapshot this often (0 disables)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	bindEnv(cmd, "port", "WIZVEC_PORT")
	bindEnv(cmd, "interval", "WIZVEC_INGEST_INTERVAL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
	if cmd.Flags().Changed("interval") {
		cfg.IngestInterval, _ = cmd.Flags().GetDuration("interval")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	defer initTelemetry(cfg, logger)()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if cfg.Store == config.StorePostgres && !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	ing, err := buildIngestion(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ing.Close()

	ingestSvc := service.NewIngestService(ing.Pipeline, cfg.Source)

	var worker *jobs.Worker
	if cfg.IngestInterval > 0 {
		worker = jobs.NewWorker(jobs.NewIngestJob(ingestSvc, nil, logger), cfg.IngestInterval, logger, jobs.WithImmediateRun())
		go worker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		RunHandler: handlers.NewRunHandler(ingestSvc),
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
