// Command cachegated runs the cache engine as a standalone daemon, and
// offers one-shot operator commands (test-connection, test-query, stats)
// against a single definition file without starting the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "cachegated",
		Short: "Read-through cache engine for integration-platform channel lookups",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file (optional, defaults applied otherwise)")

	rootCmd.AddCommand(
		serveCmd(),
		testConnectionCmd(),
		testQueryCmd(),
		statsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
