package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DaveSmith227/vizspec/internal/batch"
	"github.com/DaveSmith227/vizspec/internal/capture"
	"github.com/DaveSmith227/vizspec/internal/config"
	"github.com/DaveSmith227/vizspec/internal/report"
	"github.com/DaveSmith227/vizspec/internal/validate"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

var (
	batchConcurrency  int
	batchFailFast     bool
	batchReferenceDir string
	batchReports      []string
)

var batchCmd = &cobra.Command{
	Use:   "batch <batch-config.json>",
	Short: "Validate a suite of pages from a batch configuration",
	Long: `Run every page/viewport combination in a batch configuration file
through visual validation, bounded by a concurrency limit, and write a
combined report.

A page that fails or errors never aborts the run: its outcome is
recorded and the remaining pages still execute. With --fail-fast,
validations that have not started are skipped after the first failure;
in-flight ones still finish.

The exit code is 0 only when every validation passed.

Examples:
  vizspec batch vizspec-batch.json
  vizspec batch vizspec-batch.json --concurrency 4
  vizspec batch vizspec-batch.json --fail-fast --report json
  vizspec batch vizspec-batch.json --report html,json,markdown`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "Concurrent validations (default from config)")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "Skip queued validations after the first failure")
	batchCmd.Flags().StringVar(&batchReferenceDir, "reference-dir", "", "Reference image directory (default images.base_dir)")
	batchCmd.Flags().StringSliceVar(&batchReports, "report", []string{"html", "json"}, "Report formats: html, json, markdown")
}

func runBatch(cmd *cobra.Command, args []string) error {
	bf, err := config.LoadBatchFile(args[0])
	if err != nil {
		return err
	}

	formats := make([]report.Format, 0, len(batchReports))
	for _, raw := range batchReports {
		f := report.Format(strings.TrimSpace(raw))
		if !f.Valid() {
			return fmt.Errorf("%w: unknown report format %q", models.ErrConfiguration, raw)
		}
		formats = append(formats, f)
	}

	headless := cfg.Capture.Headless
	if bf.Settings.Headless != nil {
		headless = *bf.Settings.Headless
	}
	engine := capture.NewEngine(capture.Options{
		Headless:      headless,
		SettleTimeout: cfg.Capture.SettleTimeout,
	})
	defer engine.Close()

	cacheEnabled := !noCache && cfg.Cache.Enabled
	if bf.Settings.EnableCache != nil {
		cacheEnabled = cacheEnabled && *bf.Settings.EnableCache
	}
	var store validate.Store
	if cacheEnabled {
		if c := openCache(); c != nil {
			defer c.Close()
			store = c
		}
	}

	retries := cfg.Extraction.Retries
	if bf.Settings.Retries > 0 {
		retries = bf.Settings.Retries
	}
	validator := validate.New(engine, newCodec(), validate.Options{
		Store:        store,
		TTL:          cfg.Cache.ValidationTTL,
		OutputDir:    bf.OutputDir,
		Retries:      retries,
		Backoff:      cfg.Extraction.RetryBackoff,
		MaxDimension: cfg.Images.MaxDimension,
	})

	concurrency := batchConcurrency
	if concurrency <= 0 {
		concurrency = bf.Settings.Concurrent
	}
	if concurrency <= 0 {
		concurrency = cfg.Extraction.Concurrency
	}
	referenceDir := batchReferenceDir
	if referenceDir == "" {
		referenceDir = cfg.Images.BaseDir
	}

	orchestrator := batch.New(validator, batch.Options{
		Concurrency:   concurrency,
		FailFast:      batchFailFast,
		ReferenceDir:  referenceDir,
		SettleTimeout: cfg.Capture.SettleTimeout,
	})

	rep, err := orchestrator.Run(cmd.Context(), bf)
	if err != nil {
		return err
	}

	paths, err := report.Generate(rep, formats, bf.OutputDir)
	if err != nil {
		return err
	}

	printSummary(rep, paths)
	if !rep.AllPassed() {
		return errValidationFailed
	}
	return nil
}

func printSummary(rep *models.ValidationReport, reportPaths []string) {
	s := rep.Summary
	fmt.Printf("\n%d validation(s): %s passed, %s failed, %s errored\n",
		s.TotalTests,
		color.GreenString("%d", s.Passed),
		color.RedString("%d", s.Failed),
		color.YellowString("%d", s.Errored))

	for _, res := range rep.Results {
		if res.Passed {
			continue
		}
		if res.Errored() {
			fmt.Printf("  %s %s %dx%d: %s (%s)\n", color.YellowString("!"),
				res.Name, res.Viewport.Width, res.Viewport.Height, res.Error, res.ErrorKind)
		} else {
			fmt.Printf("  %s %s %dx%d: %.2f%% similar\n", color.RedString("✗"),
				res.Name, res.Viewport.Width, res.Viewport.Height, res.SimilarityScore*100)
		}
	}

	for _, p := range reportPaths {
		fmt.Printf("report: %s\n", p)
	}
}
