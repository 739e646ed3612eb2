package models

import (
	"testing"
	"time"
)

func TestTokenTypeValid(t *testing.T) {
	tests := []struct {
		tokenType TokenType
		want      bool
	}{
		{TokenColors, true},
		{TokenTypography, true},
		{TokenSpacing, true},
		{TokenRadii, true},
		{TokenShadows, true},
		{TokenType("gradients"), false},
		{TokenType(""), false},
	}

	for _, tt := range tests {
		if got := tt.tokenType.Valid(); got != tt.want {
			t.Errorf("TokenType(%q).Valid() = %v, want %v", tt.tokenType, got, tt.want)
		}
	}
}

func TestTokenTypeRequired(t *testing.T) {
	if !TokenColors.Required() {
		t.Error("colors should be required")
	}
	if !TokenTypography.Required() {
		t.Error("typography should be required")
	}
	for _, optional := range []TokenType{TokenSpacing, TokenRadii, TokenShadows} {
		if optional.Required() {
			t.Errorf("%s should be optional", optional)
		}
	}
}

func TestTokenDocumentClone(t *testing.T) {
	doc := &TokenDocument{
		SchemaVersion:   "1.1.0",
		ExtractedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		SourceImageHash: "abc123",
		Colors: &ColorTokens{
			Primary: map[string]string{"brand": "#58CC02"},
		},
		Typography: &TypographyTokens{
			FontFamily: "Nunito",
			FontSizes:  map[string]float64{"base": 16},
		},
		Spacing: &SpacingTokens{Values: map[string]float64{"1": 4}},
		Shadows: []ShadowToken{{Name: "card", Type: "drop", Blur: 8, Color: "#00000033"}},
	}

	clone := doc.Clone()

	// Mutating the clone must not touch the original.
	clone.Colors.Primary["brand"] = "#FFFFFF"
	clone.Typography.FontSizes["base"] = 20
	clone.Spacing.Values["1"] = 99
	clone.Shadows[0].Blur = 0
	clone.SchemaVersion = "2.0.0"

	if doc.Colors.Primary["brand"] != "#58CC02" {
		t.Error("clone shares color map with original")
	}
	if doc.Typography.FontSizes["base"] != 16 {
		t.Error("clone shares font size map with original")
	}
	if doc.Spacing.Values["1"] != 4 {
		t.Error("clone shares spacing map with original")
	}
	if doc.Shadows[0].Blur != 8 {
		t.Error("clone shares shadow slice with original")
	}
	if doc.SchemaVersion != "1.1.0" {
		t.Error("clone shares version with original")
	}
}

func TestTokenDocumentCloneNilSections(t *testing.T) {
	doc := &TokenDocument{SchemaVersion: "1.0.0"}
	clone := doc.Clone()

	if clone.Colors != nil || clone.Typography != nil || clone.Spacing != nil || clone.Radii != nil {
		t.Error("nil sections should stay nil after clone")
	}
}
