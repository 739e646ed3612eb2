package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DaveSmith227/vizspec/internal/extract"
	"github.com/DaveSmith227/vizspec/internal/vision"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

var (
	extractTypes  []string
	extractFormat string
	extractOutput string
	extractDryRun bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract design tokens from a reference image",
	Long: `Extract design tokens from a design reference image using AI vision.

Each requested token type is analyzed separately and the results are
merged into a single versioned token document. Colors and typography are
required: if either cannot be extracted the command fails rather than
emitting a document with invented values.

Examples:
  vizspec extract mockup.png
  vizspec extract mockup.png --types colors,spacing
  vizspec extract mockup.png --format css --output tokens.css
  vizspec extract mockup.png --format tailwind`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringSliceVar(&extractTypes, "types", nil,
		"Token types to extract (colors,typography,spacing,radii,shadows); default all")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "Output format: json, ts, css, tailwind")
	extractCmd.Flags().StringVar(&extractOutput, "output", "", "Output file (default stdout)")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "Resolve the image and list planned analyses without calling a provider")
}

func runExtract(cmd *cobra.Command, args []string) error {
	format := extract.OutputFormat(extractFormat)
	if !format.Valid() {
		return fmt.Errorf("%w: unknown output format %q", models.ErrConfiguration, extractFormat)
	}

	if !cfg.HasProvider() {
		return fmt.Errorf("%w: no vision provider configured; set ANTHROPIC_API_KEY or enable bedrock",
			models.ErrProviderUnavailable)
	}

	tokenTypes := models.AllTokenTypes()
	if len(extractTypes) > 0 {
		tokenTypes = nil
		for _, raw := range extractTypes {
			tt := models.TokenType(strings.TrimSpace(raw))
			if !tt.Valid() {
				return fmt.Errorf("%w: unknown token type %q", models.ErrConfiguration, raw)
			}
			tokenTypes = append(tokenTypes, tt)
		}
	}

	if extractDryRun {
		return printExtractPlan(args[0], tokenTypes)
	}

	ctx := cmd.Context()
	providers := vision.ProvidersFromConfig(ctx, cfg)
	analyzer := vision.NewOrchestrator(providers, newCodec(), cfg.Extraction, cfg.Images.MaxDimension)

	var store extract.Store
	if c := openCache(); c != nil {
		defer c.Close()
		store = c
	}
	extractor := extract.New(analyzer, store)

	doc, err := extractor.Extract(ctx, args[0], tokenTypes)
	if err != nil {
		return err
	}

	out, err := extract.Render(doc, format)
	if err != nil {
		return err
	}

	if extractOutput == "" {
		fmt.Print(string(out))
		return nil
	}
	if err := os.WriteFile(extractOutput, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", extractOutput, err)
	}
	fmt.Printf("%s Extracted %d token section(s) to %s\n",
		color.GreenString("✓"), sectionCount(doc), extractOutput)
	return nil
}

// printExtractPlan resolves the image and lists the analyses that would
// run, without touching a provider or the cache.
func printExtractPlan(imagePath string, tokenTypes []models.TokenType) error {
	codec := newCodec()
	resolved, err := codec.Resolve(imagePath)
	if err != nil {
		return err
	}
	mediaType, err := codec.DetectMediaType(resolved)
	if err != nil {
		return err
	}
	if err := codec.ValidateDimensions(resolved, cfg.Images.MaxDimension); err != nil {
		return err
	}

	fmt.Printf("image:    %s (%s)\n", resolved, mediaType)
	if cfg.Providers.Anthropic.APIKey != "" {
		fmt.Println("provider: anthropic")
	}
	if cfg.Providers.Bedrock.Enabled {
		fmt.Println("provider: bedrock")
	}
	for _, tt := range tokenTypes {
		required := ""
		if tt.Required() {
			required = " (required)"
		}
		fmt.Printf("analyze:  %s%s\n", tt, required)
	}
	return nil
}

func sectionCount(doc *models.TokenDocument) int {
	n := 0
	if doc.Colors != nil {
		n++
	}
	if doc.Typography != nil {
		n++
	}
	if doc.Spacing != nil {
		n++
	}
	if doc.Radii != nil {
		n++
	}
	if doc.Shadows != nil {
		n++
	}
	return n
}
