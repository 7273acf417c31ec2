// Package cli holds the ecoindex command tree and the wiring that turns a
// Config into running services.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ecoindex/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	// Getenv overrides the environment lookup, for tests.
	Getenv func(string) string
}

func (o *RootOptions) load(stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath, o.Getenv)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, cfg.Log.NewLogger(stderr), nil
}

// NewRootCommand creates the ecoindex root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ecoindex",
		Short:         "Biodiversity occurrence and MCI record service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file (default $ECOINDEX_CONFIG)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreateAdminCommand(opts))
	return cmd
}

func getenv(o *RootOptions) func(string) string {
	if o.Getenv != nil {
		return o.Getenv
	}
	return os.Getenv
}
