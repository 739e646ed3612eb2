package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DaveSmith227/vizspec/internal/cache"
	"github.com/DaveSmith227/vizspec/internal/config"
	"github.com/DaveSmith227/vizspec/internal/imagefile"
)

// errValidationFailed signals a completed run with failing results. It
// maps to exit code 1 after deferred cleanup (browser, cache) has run,
// and is never printed: the command already reported the failures.
var errValidationFailed = errors.New("validation failed")

var (
	cfgPath string
	noCache bool

	// cfg is loaded once in PersistentPreRunE and read by every command.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "vizspec",
	Short: "Design token extraction & visual regression validation",
	Long: `Vizspec keeps implemented UIs honest against their design references.

It extracts design tokens (colors, typography, spacing, radii, shadows)
from reference images using AI vision, and validates live pages against
reference screenshots with pixel-level comparison.

Core capabilities:
- Extracts design tokens from mockups into versioned token documents
- Captures live pages in headless Chrome at any viewport
- Compares captures against references with a perceptual pixel diff
- Runs page suites concurrently and emits HTML/JSON/markdown reports
- Migrates token documents between schema versions`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.LoadFromPath(cfgPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a config file (overrides discovery)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Bypass the content cache for this run")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// openCache opens the configured cache, or returns nil when caching is
// disabled. A cache that fails to open is reported and skipped rather
// than failing the run.
func openCache() *cache.Cache {
	if noCache || !cfg.Cache.Enabled {
		return nil
	}
	c, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cache unavailable: %v\n", err)
		return nil
	}
	return c
}

func newCodec() *imagefile.Codec {
	cwd, _ := os.Getwd()
	return imagefile.New(cfg.Images.BaseDir, cwd)
}
