// Package cli implements the diarisk command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/okian/diarisk/internal/config"
	"github.com/okian/diarisk/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ModelDir    string
	HistoryPath string
	LogLevel    string
	LogFormat   string

	cfg *config.Config
}

// NewRootCommand creates the root command for the diarisk CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "diarisk",
		Short:         "diarisk - diabetes risk inference",
		Long:          "Score patient records against a trained diabetes risk model and train reference models.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ModelDir, "model-dir", "models", "model artifact directory (default from DIARISK_MODEL_DIR)")
	cmd.PersistentFlags().StringVar(&opts.HistoryPath, "history", "", "SQLite file to record predictions in (default from DIARISK_HISTORY_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format (text|json)")

	// Add subcommands
	cmd.AddCommand(NewPredictCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewTrainCommand(opts))

	return cmd
}

// init loads configuration, lets explicit flags override it and routes
// logs to stderr so stdout carries only JSON.
func (o *RootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "load config", err)
	}
	o.cfg = cfg

	flags := cmd.Flags()
	if !flags.Changed("model-dir") {
		o.ModelDir = cfg.ModelDir
	}
	if !flags.Changed("history") {
		o.HistoryPath = cfg.HistoryPath
	}

	if err := logger.Init(
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithFormat(o.LogFormat),
		logger.WithLevel(o.LogLevel),
	); err != nil {
		return WrapExitError(ExitFailure, "init logger", err)
	}
	return nil
}
