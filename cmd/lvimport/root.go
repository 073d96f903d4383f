package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lvimport/internal/config"
	"lvimport/internal/logger"
)

// NewRootCommand builds the lvimport command tree. Every subcommand shares
// one Config, filled by config.Load before the subcommand runs.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cfg := &config.Config{}
	var log logger.Logger = logger.NopLogger

	rc := &cobra.Command{
		Use:   "lvimport",
		Short: "Import LV positions into a document store.",
		Long: `lvimport reads a JSON file of LV positions, derives store keys and search
tokens, and upserts the documents in atomic batches of at most 500
operations. Progress is journaled so an interrupted run can resume.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log = logger.New(stderr, logger.ParseLevel(cfg.LogLevel))
			return nil
		},
	}
	cfg.Flags(rc.PersistentFlags())

	getLog := func() logger.Logger { return log }
	rc.AddCommand(newRunCommand(cfg, getLog, stdout))
	rc.AddCommand(newExportCommand(cfg, getLog, stdout))
	rc.AddCommand(newStatusCommand(cfg, getLog, stdout))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
