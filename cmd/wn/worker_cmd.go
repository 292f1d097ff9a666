package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wn-agent/wn/subagent"
)

// workerCmd is the re-exec target the Sub-Agent Runner launches: it reads
// one Payload from stdin, drives a single Agent Loop step, and writes the
// worker protocol's result/error/log messages to stdout. Hidden: never
// shown in --help, never invoked directly by an operator.
var workerCmd = &cobra.Command{
	Use:    "__subagent_worker",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(subagent.RunWorker(os.Stdin, os.Stdout))
	},
}
