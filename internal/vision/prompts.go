package vision

import "github.com/DaveSmith227/vizspec/pkg/models"

// Extraction prompts per token type. Each demands a bare JSON object so
// the response parses without prose stripping (fences are still handled
// defensively in the orchestrator).

const colorsPrompt = `Analyze this UI screenshot and extract its color palette as design tokens.
Group colors into semantic categories: primary, secondary, background, text, status (success/error/warning/info), and border.
Respond with ONLY a JSON object of this shape, hex values uppercase:
{"primary": {"name": "#RRGGBB"}, "secondary": {}, "background": {}, "text": {}, "status": {}, "border": {}}
Name each color by its apparent role (e.g. "brand", "surface", "muted"). Omit categories with no colors.`

const typographyPrompt = `Analyze this UI screenshot and extract its typography as design tokens.
Identify the primary font family, then every distinct font size, weight, and line height visible.
Map sizes to a scale (xs, sm, base, lg, xl, 2xl, 3xl, 4xl) from smallest to largest.
Respond with ONLY a JSON object:
{"font_family": "...", "font_sizes": {"base": 16}, "font_weights": {"regular": 400}, "line_heights": {"base": 24}}
All numeric values in pixels except weights. Be thorough: check headings, body text, captions, and buttons.`

const spacingPrompt = `Analyze this UI screenshot and extract its spacing scale as design tokens.
Measure paddings, margins, and gaps between elements; normalize to a scale of multiples of 4px.
Respond with ONLY a JSON object: {"values": {"1": 4, "2": 8, "3": 12}}
Keys are scale steps, values are pixels.`

const radiiPrompt = `Analyze this UI screenshot and extract its border radius values as design tokens.
Respond with ONLY a JSON object: {"values": {"sm": 4, "md": 8, "lg": 16}}
Use scale names sm, md, lg, xl, 2xl from smallest to largest; values in pixels.`

const shadowsPrompt = `Analyze this UI screenshot and extract its shadow effects as design tokens.
Respond with ONLY a JSON array: [{"name": "card", "type": "drop", "x": 0, "y": 2, "blur": 8, "spread": 0, "color": "#00000033"}]
Offsets, blur, and spread in pixels; color as hex with alpha. Return [] if no shadows are visible.`

// PromptFor returns the extraction prompt for a token type.
func PromptFor(tokenType models.TokenType) string {
	switch tokenType {
	case models.TokenColors:
		return colorsPrompt
	case models.TokenTypography:
		return typographyPrompt
	case models.TokenSpacing:
		return spacingPrompt
	case models.TokenRadii:
		return radiiPrompt
	case models.TokenShadows:
		return shadowsPrompt
	default:
		return ""
	}
}
