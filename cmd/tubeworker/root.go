package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tubeworker",
		Short: "Run beanstalkd job workers",
		Long: `tubeworker runs a fleet of beanstalkd workers. Each worker watches its
tubes, decodes every reserved job as {"type": ..., "payload": ...} and hands
it to the handler registered for the job type.

Process settings come from the environment (and an optional .env file);
flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "fleet configuration file (env TUBEWORKER_CONFIG)")
	flags.String("log-level", "", "debug, info, notice, warning, error, critical, alert or emergency (env LOG_LEVEL)")
	flags.String("log-format", "", "text or json (env LOG_FORMAT)")
	flags.String("host", "", "beanstalkd host used when the fleet file sets none (env BEANSTALK_HOST)")
	flags.Int("port", 0, "beanstalkd port used when the fleet file sets none (env BEANSTALK_PORT)")

	cmd.AddCommand(newRunCommand(), newPutCommand())
	return cmd
}
