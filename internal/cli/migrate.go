package cli

import (
	"fmt"

	"github.com/cloo-solutions/wizvec/internal/database"
	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Create the pgvector extension and the wizard_knowledge table.

Only the default table is provisioned. A custom WIZVEC_TABLE must be created
with the same columns beforehand.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}

	cmd.Flags().String("database-url", "", "Postgres connection URL")
	bindEnv(cmd, "database-url", "WIZVEC_DATABASE_URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
	}
	// Migrations only apply to Postgres, whatever store is configured.
	if cfg.DatabaseURL == "" {
		return domain.ConfigurationError("WIZVEC_DATABASE_URL is required to run migrations")
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
