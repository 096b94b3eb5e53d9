package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by -ldflags "-X main.version=...".
var version = "dev"

var (
	configFlag string
	envFlag    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "contentops: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contentops",
		Short:         "Agent orchestration core for content operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfigPath(), "path to the YAML config file")
	root.PersistentFlags().StringVar(&envFlag, "env", envOr("CONTENTOPS_ENV", "development"), "deployment environment name")

	root.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newSummaryCmd(),
		newAgentsCmd(),
		newAlertsCmd(),
		newVendorsCmd(),
		newMediaCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "contentops %s\n", version)
		},
	}
}

func defaultConfigPath() string {
	return envOr("CONTENTOPS_CONFIG", "config.yaml")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
