package models

import "time"

// CurrentSchemaVersion is the schema version stamped on newly extracted
// token documents.
const CurrentSchemaVersion = "2.0.0"

// TokenType represents a category of design token extracted from a
// reference image.
type TokenType string

const (
	// TokenColors covers the color palette (primary, background, text, ...).
	TokenColors TokenType = "colors"
	// TokenTypography covers font family, sizes, weights and line heights.
	TokenTypography TokenType = "typography"
	// TokenSpacing covers the spacing scale.
	TokenSpacing TokenType = "spacing"
	// TokenRadii covers border radius values.
	TokenRadii TokenType = "radii"
	// TokenShadows covers drop and inner shadows.
	TokenShadows TokenType = "shadows"
)

// Valid returns true if the token type is a known value.
func (t TokenType) Valid() bool {
	switch t {
	case TokenColors, TokenTypography, TokenSpacing, TokenRadii, TokenShadows:
		return true
	default:
		return false
	}
}

// Required returns true if an extraction must produce this token type.
// Optional types are recorded as absent when the provider cannot
// extract them; required types failing fail the whole extraction.
func (t TokenType) Required() bool {
	return t == TokenColors || t == TokenTypography
}

// AllTokenTypes lists every token type in extraction order.
func AllTokenTypes() []TokenType {
	return []TokenType{TokenColors, TokenTypography, TokenSpacing, TokenRadii, TokenShadows}
}

// ColorTokens organizes extracted colors into semantic categories.
type ColorTokens struct {
	Primary    map[string]string `json:"primary,omitempty"`
	Secondary  map[string]string `json:"secondary,omitempty"`
	Background map[string]string `json:"background,omitempty"`
	Text       map[string]string `json:"text,omitempty"`
	Status     map[string]string `json:"status,omitempty"`
	Border     map[string]string `json:"border,omitempty"`
}

// TypographyTokens holds font-related values keyed by scale name
// (xs, sm, base, lg, ...).
type TypographyTokens struct {
	FontFamily  string             `json:"font_family,omitempty"`
	FontSizes   map[string]float64 `json:"font_sizes,omitempty"`
	FontWeights map[string]float64 `json:"font_weights,omitempty"`
	LineHeights map[string]float64 `json:"line_heights,omitempty"`
}

// SpacingTokens holds the spacing scale in pixels.
type SpacingTokens struct {
	Values map[string]float64 `json:"values,omitempty"`
}

// RadiusTokens holds border radius values keyed by scale name.
type RadiusTokens struct {
	Values map[string]float64 `json:"values,omitempty"`
}

// ShadowToken represents a single shadow effect.
type ShadowToken struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"` // "drop" or "inner"
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Blur   float64 `json:"blur"`
	Spread float64 `json:"spread"`
	Color  string  `json:"color"`
}

// TokenDocument is the versioned record produced by an extraction run.
// Documents are immutable once written: a re-extraction or a migration
// produces a new document, never an in-place edit.
type TokenDocument struct {
	// SchemaVersion is the token schema this document conforms to.
	SchemaVersion string `json:"schema_version"`
	// ExtractedAt is when the extraction completed.
	ExtractedAt time.Time `json:"extracted_at"`
	// SourceImageHash is the sha256 hex digest of the reference image bytes.
	SourceImageHash string `json:"source_image_hash"`

	Colors     *ColorTokens      `json:"colors,omitempty"`
	Typography *TypographyTokens `json:"typography,omitempty"`
	Spacing    *SpacingTokens    `json:"spacing,omitempty"`
	Radii      *RadiusTokens     `json:"radii,omitempty"`
	Shadows    []ShadowToken     `json:"shadows,omitempty"`
}

// Clone returns a deep copy of the document. Migration rules operate on
// clones so a failed chain never leaves the original partially mutated.
func (d *TokenDocument) Clone() *TokenDocument {
	out := &TokenDocument{
		SchemaVersion:   d.SchemaVersion,
		ExtractedAt:     d.ExtractedAt,
		SourceImageHash: d.SourceImageHash,
	}
	if d.Colors != nil {
		out.Colors = &ColorTokens{
			Primary:    cloneStringMap(d.Colors.Primary),
			Secondary:  cloneStringMap(d.Colors.Secondary),
			Background: cloneStringMap(d.Colors.Background),
			Text:       cloneStringMap(d.Colors.Text),
			Status:     cloneStringMap(d.Colors.Status),
			Border:     cloneStringMap(d.Colors.Border),
		}
	}
	if d.Typography != nil {
		out.Typography = &TypographyTokens{
			FontFamily:  d.Typography.FontFamily,
			FontSizes:   cloneFloatMap(d.Typography.FontSizes),
			FontWeights: cloneFloatMap(d.Typography.FontWeights),
			LineHeights: cloneFloatMap(d.Typography.LineHeights),
		}
	}
	if d.Spacing != nil {
		out.Spacing = &SpacingTokens{Values: cloneFloatMap(d.Spacing.Values)}
	}
	if d.Radii != nil {
		out.Radii = &RadiusTokens{Values: cloneFloatMap(d.Radii.Values)}
	}
	if d.Shadows != nil {
		out.Shadows = make([]ShadowToken, len(d.Shadows))
		copy(out.Shadows, d.Shadows)
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
