package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lokiop",
	Short: "lokiop - operator for a coordinated Loki worker",
	Long: `lokiop manages the lifecycle of a single Loki worker process running
inside a container. It coordinates with a loki coordinator over the
loki-cluster relation: it publishes this unit's address and role set,
consumes the coordinator's config, endpoints and certificate secret
pointers, and keeps the workload's config, TLS material and service
declaration in sync.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"lokiop version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(relationCmd)
	rootCmd.AddCommand(secretCmd)
}
