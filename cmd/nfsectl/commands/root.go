package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nfse-reader/internal/app"
	"github.com/joseph-ayodele/nfse-reader/internal/common"
)

var (
	verbose bool

	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nfsectl",
	Short: "Operator tool for the NFS-e extraction service",
	Long: `nfsectl runs invoice extraction locally and inspects the task store
used by the nfsed daemon. Configuration comes from the same environment
variables (and optional .env file) as the daemon.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = common.LoadConfig()
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger = common.NewLogger(cfg.Log)
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}
