// File: cmd/jupiterbench/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// jupiterbench is a benchmark/echo-client CLI exercising the dispatcher
// and client transport end to end, grounded on
// jupiter-example/.../BenchmarkServer.java (process-wide runtime knobs
// seeded from SystemPropertyUtil.setProperty before the acceptor starts)
// and on zrepl-zrepl's cli/cobra.Command wiring (root command + config
// persistent flag, subcommands in their own files).

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jupiter-go/jupiter/api"
)

var buildInfo = api.ServiceInfo{
	Name:      "jupiterbench",
	Version:   "0.1.0",
	Build:     "dev",
	StartedAt: time.Unix(0, 0), // stamped in main, not at package init (no clock reads at init time)
}

var rootCmd = &cobra.Command{
	Use:   "jupiterbench",
	Short: "Benchmark and exercise the jupiter-go client dispatch core",
	Long: `jupiterbench drives the RingDispatcher/Executor/Watchdog stack
end to end: "serve" runs a minimal echo endpoint the bench client can
dial, and "bench" submits a configurable volume of requests against a
running endpoint and reports elapsed time and throughput.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and runtime info",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%s %s (build %s), started %s\n", buildInfo.Name, buildInfo.Version, buildInfo.Build, buildInfo.StartedAt.Format(time.RFC3339))
		return nil
	},
}

func main() {
	buildInfo.StartedAt = time.Now()
	rootCmd.AddCommand(serveCmd, benchCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
