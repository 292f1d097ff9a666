// Command wn is the agent runtime's process entrypoint: a single `serve`
// subcommand plus a hidden `__subagent_worker` subcommand the Sub-Agent
// Runner re-execs itself with.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wn",
	Short: "wn runs the agent runtime core over a JSON-RPC stdio protocol",
}

func main() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}
