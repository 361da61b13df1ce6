package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

const (
	// ExitOK covers complete, partial and empty runs.
	ExitOK = 0
	// ExitFailure is returned for fatal errors.
	ExitFailure = 1
	// ExitCancelled is returned when a run was interrupted.
	ExitCancelled = 2
)

// ExitError carries the process exit code for an error returned by a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// NewRootCmd builds the wizvec command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wizvec",
		Short: "Wizard knowledge base vector ingestion",
		Long: `wizvec chunks a Wizard101 knowledge base snapshot, embeds every chunk and
upserts the vectors into Postgres (pgvector) or a local Badger store.

Configuration is read from defaults, an optional YAML file (--config),
WIZVEC_* environment variables and finally command flags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(IngestCmd())
	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(ServeCmd())

	return rootCmd
}
