package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/docsite-crawler/internal/config"
	"github.com/JakeFAU/docsite-crawler/internal/state"
)

// newStatsCmd creates the 'stats' subcommand, which summarizes the state
// database without starting a crawl.
func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Shows crawl statistics from the state database",
		RunE:  runStatsCommand,
	}
	return cmd
}

func runStatsCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	db, err := state.OpenSQLiteStore(cfg.Output.DatabaseFile)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	counters, err := db.Stats(cmd.Context())
	if err != nil {
		return err
	}
	sessions, err := db.Sessions(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("URLs crawled:       %d\n", counters.Total)
	fmt.Printf("  succeeded:        %d\n", counters.Succeeded)
	fmt.Printf("  failed:           %d\n", counters.Failed)
	fmt.Printf("Avg response time:  %.3fs\n", counters.AvgTime)
	fmt.Printf("Sessions:           %d\n", len(sessions))
	for _, s := range sessions {
		line := fmt.Sprintf("  %s  %-9s  %s  urls=%d ok=%d failed=%d",
			s.ID, s.Status, s.BaseDomain, s.Totals.Total, s.Totals.Succeeded, s.Totals.Failed)
		if !s.EndedAt.IsZero() {
			line += fmt.Sprintf("  ran=%s", s.EndedAt.Sub(s.StartedAt).Round(time.Second))
		}
		fmt.Println(line)
	}
	return nil
}
