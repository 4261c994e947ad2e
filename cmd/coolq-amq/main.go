package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coolq-amq",
		Short: "Bridge a CoolQ bot to RabbitMQ",
		Long: `coolq-amq publishes chat events to the coolq.msg exchange and carries out
send commands received on the coolq.rpc exchange.

Outside a bot host, "serve" runs the bridge against a console engine and
"echo" runs an example consumer that answers private messages.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage: true,
	}

	var dir string
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "d", ".", "Directory holding config.toml")

	rootCmd.AddCommand(
		newServeCommand(&dir),
		newEchoCommand(&dir),
		newVersionCommand(),
	)
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coolq-amq %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildTime)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
