package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/not-lucky/LLM2Deck/internal/observability"
)

var cacheCommand = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheStatsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Show cache occupancy and hit counts",
	RunE:  runCacheStatsCmd,
}

var cacheClearCommand = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached responses",
	RunE:  runCacheClearCmd,
}

var cacheDatabaseURL string

func init() {
	cacheCommand.PersistentFlags().StringVar(&cacheDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	cacheCommand.AddCommand(cacheStatsCommand)
	cacheCommand.AddCommand(cacheClearCommand)
	rootCmd.AddCommand(cacheCommand)
}

func runCacheStatsCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	st, err := openStores(ctx, cacheDatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if !st.persistent() {
		return fmt.Errorf("cache inspection requires a database; set DATABASE_URL or --db-url")
	}

	stats, err := st.cache.Stats(ctx)
	if err != nil {
		return err
	}
	observability.NewPrinter(os.Stdout).PrintCacheStats(stats.Entries, stats.TotalHits, stats.ApproxSizeBytes)
	return nil
}

func runCacheClearCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	st, err := openStores(ctx, cacheDatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if !st.persistent() {
		return fmt.Errorf("cache clearing requires a database; set DATABASE_URL or --db-url")
	}

	removed, err := st.cache.Clear(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cached responses.\n", removed)
	return nil
}
