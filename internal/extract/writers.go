package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

// OutputFormat selects the on-disk representation of a token document.
type OutputFormat string

const (
	FormatJSON     OutputFormat = "json"
	FormatTS       OutputFormat = "ts"
	FormatCSS      OutputFormat = "css"
	FormatTailwind OutputFormat = "tailwind"
)

// Valid returns true if the format is a known value.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatTS, FormatCSS, FormatTailwind:
		return true
	default:
		return false
	}
}

// Filename returns the artifact filename for this format.
func (f OutputFormat) Filename() string {
	switch f {
	case FormatTS:
		return "design-tokens.ts"
	case FormatCSS:
		return "design-tokens.css"
	case FormatTailwind:
		return "tailwind.tokens.js"
	default:
		return "design-tokens.json"
	}
}

// Render serializes a token document in the given format.
func Render(doc *models.TokenDocument, format OutputFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatTS:
		return renderTS(doc)
	case FormatCSS:
		return renderCSS(doc)
	case FormatTailwind:
		return renderTailwind(doc)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func renderTS(doc *models.TokenDocument) ([]byte, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("// Generated by vizspec. Do not edit by hand; re-extract instead.\n")
	fmt.Fprintf(&b, "// schema %s, source %s\n\n", doc.SchemaVersion, shortHash(doc.SourceImageHash))
	b.WriteString("export const designTokens = ")
	b.Write(body)
	b.WriteString(" as const;\n\nexport type DesignTokens = typeof designTokens;\n")
	return []byte(b.String()), nil
}

func renderCSS(doc *models.TokenDocument) ([]byte, error) {
	var b strings.Builder
	b.WriteString("/* Generated by vizspec. Do not edit by hand; re-extract instead. */\n")
	fmt.Fprintf(&b, "/* schema %s, source %s */\n", doc.SchemaVersion, shortHash(doc.SourceImageHash))
	b.WriteString(":root {\n")

	if doc.Colors != nil {
		writeColorVars(&b, "primary", doc.Colors.Primary)
		writeColorVars(&b, "secondary", doc.Colors.Secondary)
		writeColorVars(&b, "background", doc.Colors.Background)
		writeColorVars(&b, "text", doc.Colors.Text)
		writeColorVars(&b, "status", doc.Colors.Status)
		writeColorVars(&b, "border", doc.Colors.Border)
	}
	if doc.Typography != nil {
		if doc.Typography.FontFamily != "" {
			fmt.Fprintf(&b, "  --font-family: %s;\n", doc.Typography.FontFamily)
		}
		writePxVars(&b, "font-size", doc.Typography.FontSizes)
		for _, name := range sortedKeys(doc.Typography.FontWeights) {
			fmt.Fprintf(&b, "  --font-weight-%s: %g;\n", cssName(name), doc.Typography.FontWeights[name])
		}
		writePxVars(&b, "line-height", doc.Typography.LineHeights)
	}
	if doc.Spacing != nil {
		writePxVars(&b, "spacing", doc.Spacing.Values)
	}
	if doc.Radii != nil {
		writePxVars(&b, "radius", doc.Radii.Values)
	}

	b.WriteString("}\n")
	return []byte(b.String()), nil
}

func renderTailwind(doc *models.TokenDocument) ([]byte, error) {
	extend := map[string]any{}

	if doc.Colors != nil {
		colors := map[string]any{}
		for category, values := range map[string]map[string]string{
			"primary":    doc.Colors.Primary,
			"secondary":  doc.Colors.Secondary,
			"background": doc.Colors.Background,
			"text":       doc.Colors.Text,
			"status":     doc.Colors.Status,
			"border":     doc.Colors.Border,
		} {
			if len(values) > 0 {
				colors[category] = values
			}
		}
		if len(colors) > 0 {
			extend["colors"] = colors
		}
	}
	if doc.Typography != nil {
		if len(doc.Typography.FontSizes) > 0 {
			sizes := map[string]string{}
			for name, px := range doc.Typography.FontSizes {
				sizes[name] = fmt.Sprintf("%gpx", px)
			}
			extend["fontSize"] = sizes
		}
		if doc.Typography.FontFamily != "" {
			extend["fontFamily"] = map[string][]string{"sans": {doc.Typography.FontFamily}}
		}
	}
	if doc.Spacing != nil && len(doc.Spacing.Values) > 0 {
		spacing := map[string]string{}
		for name, px := range doc.Spacing.Values {
			spacing[name] = fmt.Sprintf("%gpx", px)
		}
		extend["spacing"] = spacing
	}
	if doc.Radii != nil && len(doc.Radii.Values) > 0 {
		radii := map[string]string{}
		for name, px := range doc.Radii.Values {
			radii[name] = fmt.Sprintf("%gpx", px)
		}
		extend["borderRadius"] = radii
	}

	body, err := json.MarshalIndent(map[string]any{"theme": map[string]any{"extend": extend}}, "", "  ")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("// Generated by vizspec. Do not edit by hand; re-extract instead.\n")
	b.WriteString("module.exports = ")
	b.Write(body)
	b.WriteString(";\n")
	return []byte(b.String()), nil
}

func writeColorVars(b *strings.Builder, category string, values map[string]string) {
	for _, name := range sortedKeys(values) {
		fmt.Fprintf(b, "  --color-%s-%s: %s;\n", category, cssName(name), values[name])
	}
}

func writePxVars(b *strings.Builder, prefix string, values map[string]float64) {
	for _, name := range sortedKeys(values) {
		fmt.Fprintf(b, "  --%s-%s: %gpx;\n", prefix, cssName(name), values[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cssName lowercases and hyphenates a token name for use in a custom
// property.
func cssName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "_", "-")
	return name
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
