package cli

import (
	"github.com/spf13/cobra"
	"github.com/tutorhall/livehelp/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// initialized in PersistentPreRunE
	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "livehelp",
		Short: "livehelp — live-help session coordination server",
		Long:  "livehelp coordinates real-time help conversations between students and tutoring staff over websocket connections.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "livehelp.yaml", "config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
