package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

var verbose bool

var (
	retrievalService driving.RetrievalService
	ingestService    driving.IngestService
	importService    driving.ImportService
	settingsService  driving.SettingsService
)

// Services are the application services the commands drive.
// Any of them may be nil; commands that need a missing service fail with an error.
type Services struct {
	Retrieval driving.RetrievalService
	Ingest    driving.IngestService
	Import    driving.ImportService
	Settings  driving.SettingsService
}

// SetServices wires the services used by every command.
func SetServices(s Services) {
	retrievalService = s.Retrieval
	ingestService = s.Ingest
	importService = s.Import
	settingsService = s.Settings
}

var rootCmd = &cobra.Command{
	Use:   "sercha-context",
	Short: "Assemble grounded answer context from local documents",
	Long: `sercha-context imports local documents, splits them into overlapping
segments and retrieves token-bounded context windows for questions about them.

Start by importing a folder, then ask a question:

  sercha-context ingest ~/notes
  sercha-context context "how do backups work"
  sercha-context ask "how do backups work"`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context every
// command runs under.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ExecuteContext(ctx)
}

// ExecuteContext runs the root command under ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
