package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DaveSmith227/vizspec/internal/capture"
	"github.com/DaveSmith227/vizspec/internal/validate"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

var (
	validateViewport  string
	validateThreshold float64
	validateSelector  string
	validateName      string
	validateOutputDir string
	validateWatch     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <url> <reference-image>",
	Short: "Validate a live page against a reference screenshot",
	Long: `Capture a live page in headless Chrome and compare it against a
reference screenshot pixel by pixel.

The comparison passes when the differing-pixel fraction is at or below
the threshold. Failing comparisons produce side-by-side, overlay, and
diff-mask artifacts in the output directory.

Examples:
  vizspec validate http://localhost:3000/ home.png
  vizspec validate http://localhost:3000/ home.png --viewport 375x667
  vizspec validate http://localhost:3000/ home.png --threshold 0.01
  vizspec validate http://localhost:3000/ home.png --selector "#app"
  vizspec validate http://localhost:3000/ home.png --watch`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateViewport, "viewport", "", "Capture viewport as WIDTHxHEIGHT (default from config)")
	validateCmd.Flags().Float64Var(&validateThreshold, "threshold", -1, "Allowed difference fraction in 0..1 (default from config)")
	validateCmd.Flags().StringVar(&validateSelector, "selector", "", "CSS selector to scope the capture to one element")
	validateCmd.Flags().StringVar(&validateName, "name", "page", "Name used for output files")
	validateCmd.Flags().StringVar(&validateOutputDir, "output-dir", "", "Directory for artifacts (default from config)")
	validateCmd.Flags().BoolVar(&validateWatch, "watch", false, "Re-validate whenever the reference image changes")
}

func runValidate(cmd *cobra.Command, args []string) error {
	url, reference := args[0], args[1]

	viewportStr := validateViewport
	if viewportStr == "" {
		viewportStr = cfg.Capture.DefaultViewport
	}
	viewport, err := capture.ParseViewport(viewportStr)
	if err != nil {
		return err
	}

	threshold := validateThreshold
	if threshold < 0 {
		threshold = cfg.Validation.DefaultThreshold
	}
	if threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside 0..1", models.ErrConfiguration, threshold)
	}

	outputDir := validateOutputDir
	if outputDir == "" {
		outputDir = cfg.Validation.OutputDir
	}

	engine := capture.NewEngine(capture.Options{
		Headless:      cfg.Capture.Headless,
		SettleTimeout: cfg.Capture.SettleTimeout,
	})
	defer engine.Close()

	var store validate.Store
	if c := openCache(); c != nil {
		defer c.Close()
		store = c
	}

	validator := validate.New(engine, newCodec(), validate.Options{
		Store:        store,
		TTL:          cfg.Cache.ValidationTTL,
		OutputDir:    outputDir,
		Retries:      cfg.Extraction.Retries,
		Backoff:      cfg.Extraction.RetryBackoff,
		MaxDimension: cfg.Images.MaxDimension,
	})

	req := validate.Request{
		Name:          validateName,
		URL:           url,
		Viewport:      viewport,
		Reference:     reference,
		Selector:      validateSelector,
		Threshold:     threshold,
		SettleTimeout: cfg.Capture.SettleTimeout,
	}

	ctx := cmd.Context()
	if validateWatch {
		return watchValidate(ctx, validator, req)
	}

	res := validator.Validate(ctx, req)
	printResult(res)
	if !res.Passed {
		return errValidationFailed
	}
	return nil
}

// watchValidate runs once immediately, then again on every reference
// change until interrupted. The exit code reflects the last run.
func watchValidate(ctx context.Context, validator *validate.Validator, req validate.Request) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := validator.Validate(ctx, req)
	printResult(res)

	err := validate.Watch(ctx, []string{req.Reference}, func(string) {
		res = validator.Validate(ctx, req)
		printResult(res)
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	if !res.Passed {
		return errValidationFailed
	}
	return nil
}

func printResult(res *models.DiffResult) {
	switch {
	case res.Errored():
		fmt.Printf("%s %s: %s (%s)\n", color.YellowString("!"), res.Name, res.Error, res.ErrorKind)
		if hint := models.RemediationForKind(res.ErrorKind); hint != "" {
			fmt.Printf("  hint: %s\n", hint)
		}
	case res.Passed:
		cached := ""
		if res.FromCache {
			cached = " (cached)"
		}
		fmt.Printf("%s %s: %.2f%% similar%s\n",
			color.GreenString("✓"), res.Name, res.SimilarityScore*100, cached)
	default:
		fmt.Printf("%s %s: %.2f%% similar, %d of %d pixels differ\n",
			color.RedString("✗"), res.Name, res.SimilarityScore*100,
			res.PixelDiffCount, res.TotalPixels)
		if res.Artifacts.SideBySide != "" {
			fmt.Printf("  side-by-side: %s\n", res.Artifacts.SideBySide)
			fmt.Printf("  overlay:      %s\n", res.Artifacts.Overlay)
			fmt.Printf("  diff mask:    %s\n", res.Artifacts.DiffMask)
		}
	}
}
