package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath string
	instanceID string
)

// rootCmd is the CLI entry point, package-level and flag-bound the way
// hrygo-cicd-tool-kit/cmd/cicd-runner and devopsext-sre/cmd structure theirs.
var rootCmd = &cobra.Command{
	Use:   "tracezctl",
	Short: "Demonstration CLI for the tracez distributed tracing core",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&instanceID, "instance-id", uuid.NewString(),
		"stable per-process identifier attached as a tag on every demo span")
	rootCmd.AddCommand(demoCmd)
}

// Execute runs the root command, matching cicd-runner's Execute entry point.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
