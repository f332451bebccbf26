// Package cli holds the cafeteria command line.
package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cafeteria/internal/config"
)

type rootOptions struct {
	configPath string
	logger     *zerolog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd(logger *zerolog.Logger) *cobra.Command {
	opts := &rootOptions{logger: logger}
	cmd := &cobra.Command{
		Use:           "cafeteria",
		Short:         "Cafeteria reservations and cash register",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CAFETERIA_CONFIG_PATH"),
		"path to the YAML config (default configs/config.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newSendListCmd(opts),
		newCloseTillCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context, logger *zerolog.Logger) error {
	return NewRootCmd(logger).ExecuteContext(ctx)
}

// open loads the config and builds the application.
func (o *rootOptions) open(ctx context.Context) (*App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg, o.logger)
}
