// Package cmd defines and implements the CLI commands for the
// docsite-crawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsite-crawler",
		Short: "A resumable, polite crawler for documentation sites.",
		Long: `docsite-crawler maps every page of a documentation site. It stays on
the start URL's domain, respects robots.txt, paces its requests, and
checkpoints progress so an interrupted crawl picks up where it left off.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
