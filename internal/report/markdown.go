package report

import (
	"fmt"
	"strings"
)

type markdownBuilder struct{}

func (markdownBuilder) Extension() string { return "md" }

// Build renders a markdown summary suitable for pasting into a pull
// request or posting from CI.
func (markdownBuilder) Build(data *reportData) ([]byte, error) {
	var sb strings.Builder
	r := data.Report

	sb.WriteString(fmt.Sprintf("# Visual Regression Report - %s\n\n", shortID(r.ID)))
	if r.AllPassed() {
		sb.WriteString("**All validations passed.**\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("**%d of %d validations need attention.**\n\n",
			r.Summary.Failed+r.Summary.Errored, r.Summary.TotalTests))
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Errored | Pass Rate | Avg Similarity | Duration |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|----------------|----------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %.1f%% | %.2f%% | %s |\n\n",
		r.Summary.TotalTests, r.Summary.Passed, r.Summary.Failed, r.Summary.Errored,
		data.PassRate*100, data.AvgSimilarity*100, data.Duration.Round(timeRounding)))

	if len(data.Failures) > 0 {
		sb.WriteString("## Failures\n\n")
		sb.WriteString("| Page | Viewport | Similarity | Pixels Changed |\n")
		sb.WriteString("|------|----------|------------|----------------|\n")
		for _, f := range data.Failures {
			sb.WriteString(fmt.Sprintf("| %s | %dx%d | %.2f%% | %d / %d |\n",
				f.Name, f.Viewport.Width, f.Viewport.Height,
				f.SimilarityScore*100, f.PixelDiffCount, f.TotalPixels))
		}
		sb.WriteString("\n")
	}

	if len(data.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range data.Errors {
			sb.WriteString(fmt.Sprintf("- **%s** (`%s`): %s\n", e.Name, e.ErrorKind, e.Error))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## All Results\n\n")
	for _, res := range r.Results {
		mark := "PASS"
		switch {
		case res.Errored():
			mark = "ERROR"
		case !res.Passed:
			mark = "FAIL"
		}
		cached := ""
		if res.FromCache {
			cached = " (cached)"
		}
		sb.WriteString(fmt.Sprintf("- `%s` %s %dx%d - %.2f%% similar%s\n",
			mark, res.Name, res.Viewport.Width, res.Viewport.Height,
			res.SimilarityScore*100, cached))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("_Generated %s_\n", data.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))
	return []byte(sb.String()), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
