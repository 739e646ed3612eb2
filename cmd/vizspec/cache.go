package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DaveSmith227/vizspec/internal/cache"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

var cacheClearOperation string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the content cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and size",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached entries",
	Long: `Remove cached entries.

By default every entry is removed. With --operation only entries from
that operation (extract, validate) are removed.

Examples:
  vizspec cache clear
  vizspec cache clear --operation validate`,
	RunE: runCacheClear,
}

var cacheOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Evict least-recently-used entries past the size budget",
	RunE:  runCacheOptimize,
}

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearOperation, "operation", "", "Only clear entries for this operation")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheOptimizeCmd)
}

func mustOpenCache() (*cache.Cache, error) {
	c, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: opening cache at %s: %v", models.ErrConfiguration, cfg.Cache.Dir, err)
	}
	return c, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := mustOpenCache()
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("cache: %s\n", cfg.Cache.Dir)
	fmt.Printf("entries: %d\n", stats.Entries)
	fmt.Printf("size: %.1f MB (budget %.1f MB)\n",
		float64(stats.TotalBytes)/(1<<20), float64(cfg.Cache.MaxBytes)/(1<<20))
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := mustOpenCache()
	if err != nil {
		return err
	}
	defer c.Close()

	predicate := func(cache.Entry) bool { return true }
	if cacheClearOperation != "" {
		predicate = func(e cache.Entry) bool { return e.Operation == cacheClearOperation }
	}
	removed, err := c.Clear(predicate)
	if err != nil {
		return err
	}
	fmt.Printf("%s Removed %d cache entrie(s)\n", color.GreenString("✓"), removed)
	return nil
}

func runCacheOptimize(cmd *cobra.Command, args []string) error {
	c, err := mustOpenCache()
	if err != nil {
		return err
	}
	defer c.Close()

	evicted, err := c.Evict(cfg.Cache.MaxBytes)
	if err != nil {
		return err
	}
	if evicted == 0 {
		fmt.Println("cache already within budget")
		return nil
	}
	fmt.Printf("%s Evicted %d least-recently-used entrie(s)\n", color.GreenString("✓"), evicted)
	return nil
}
