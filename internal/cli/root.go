package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	ConfigFile string
	LogMode    string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Autopilot.dev backend",
		Long: `autopilot runs the Autopilot.dev backend.

A Kestra review flow posts its completion webhook here. The backend then
collects CodeRabbit insights, writes a Together report, turns it into a
video prompt and renders a short summary video.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.apply()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file (overrides AUTOPILOT_CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.LogMode, "log-mode", "", "log mode: development or production (overrides LOG_MODE)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
