package cli

import (
	"github.com/spf13/cobra"

	"github.com/s22625/sqwatch/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Interactive dashboard for your jobs",
		Long: `Open the terminal dashboard. Logs go to the configured log file while
the dashboard owns the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig()
			if err != nil {
				return err
			}
			src, err := getSource(cfg)
			if err != nil {
				return err
			}
			m := monitor.New(getEngine(cfg), src, getDispatcher(cfg), monitor.Options{
				PollInterval: cfg.PollInterval,
			})
			return m.Run(commandContext(cmd))
		},
	}
	return cmd
}
