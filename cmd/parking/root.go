package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/parking-occupancy/internal/config"
	"github.com/example/parking-occupancy/internal/logging"
)

// app carries state shared by every subcommand once configuration is loaded.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

// NewRootCommand builds the parking CLI with its serve, import, report and migrate subcommands.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "parking",
		Short:         "Parking occupancy service",
		Long:          "Tracks vehicle entries and exits, imports historical sessions from CSV and reports facility occupancy.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	cmd.AddCommand(
		newServeCommand(a),
		newImportCommand(a),
		newReportCommand(a),
		newMigrateCommand(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(level, logging.Format(cfg.LogFormat), cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}
