package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/skipper-cli/skipper/internal/config"
)

// app carries the shared state the subcommands need.
type app struct {
	debug  bool
	dryRun bool

	settings *config.Settings
	logger   *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "skipper",
		Short: "Run sandboxed Deno plugins and compose them into pipelines",
		Long: `Skipper executes project plugins as isolated Deno subprocesses under
declared permission grants, and chains them into pipelines with a shared,
accumulating execution context.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			a.settings = settings

			a.logger = log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
			})
			if a.debug || settings.Debug {
				a.debug = true
				a.logger.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&a.dryRun, "dry-run", false, "resolve and validate without executing anything")

	cmd.AddCommand(
		newRunCmd(a),
		newPipelineCmd(a),
		newPluginsCmd(a),
		newVersionCmd(),
	)
	return cmd
}
