package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"bijbelzoek/api/internal/config"
	"bijbelzoek/api/internal/logging"
)

// cliState is filled by the root command before any subcommand runs.
type cliState struct {
	configPath string
	verbose    bool

	cfg    config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:          "bijbelzoek-api",
		Short:        "Bijbelzoek study export service",
		Long:         `Turns study sessions (notes, favourite texts, AI write-ups and word-frequency charts) into PDF and DOCX documents.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(state.configPath)
			if err != nil {
				return err
			}
			if state.verbose {
				cfg.LogLevel = "debug"
			}
			state.cfg = cfg
			state.logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			for _, w := range cfg.Warnings() {
				state.logger.Warn(w)
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), state.logger))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "", "TOML config file; overrides environment values")
	root.PersistentFlags().BoolVarP(&state.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newServeCmd(state))
	root.AddCommand(newRenderCmd(state))
	return root
}
