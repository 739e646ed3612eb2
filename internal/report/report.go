// Package report turns a validation report into the formats people and
// tooling consume: HTML for review, JSON for CI, markdown for PRs.
package report

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

const timeRounding = time.Millisecond

// Format selects a report output format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

func (f Format) Valid() bool {
	switch f {
	case FormatHTML, FormatJSON, FormatMarkdown:
		return true
	}
	return false
}

// AllFormats lists every supported format in output order.
func AllFormats() []Format {
	return []Format{FormatHTML, FormatJSON, FormatMarkdown}
}

// builder renders one format from processed report data. Builders are
// stateless so each can be tested on its own.
type builder interface {
	Build(data *reportData) ([]byte, error)
	Extension() string
}

func builderFor(f Format) (builder, error) {
	switch f {
	case FormatHTML:
		return htmlBuilder{}, nil
	case FormatJSON:
		return jsonBuilder{}, nil
	case FormatMarkdown:
		return markdownBuilder{}, nil
	}
	return nil, fmt.Errorf("%w: unknown report format %q", models.ErrConfiguration, f)
}

// reportData is the shared view every builder renders from. Results are
// pre-sorted so builders stay free of presentation logic.
type reportData struct {
	Report        *models.ValidationReport
	GeneratedAt   time.Time
	Duration      time.Duration
	PassRate      float64
	AvgSimilarity float64
	// Failures holds non-errored failing results, worst first.
	Failures []models.DiffResult
	Errors   []models.DiffResult
}

func process(r *models.ValidationReport) *reportData {
	data := &reportData{
		Report:      r,
		GeneratedAt: time.Now().UTC(),
		Duration:    r.CompletedAt.Sub(r.StartedAt),
	}

	var simSum float64
	simCount := 0
	for _, res := range r.Results {
		switch {
		case res.Errored():
			data.Errors = append(data.Errors, res)
		case !res.Passed:
			data.Failures = append(data.Failures, res)
		}
		if !res.Errored() {
			simSum += res.SimilarityScore
			simCount++
		}
	}
	sort.Slice(data.Failures, func(i, j int) bool {
		return data.Failures[i].SimilarityScore < data.Failures[j].SimilarityScore
	})

	if r.Summary.TotalTests > 0 {
		data.PassRate = float64(r.Summary.Passed) / float64(r.Summary.TotalTests)
	}
	if simCount > 0 {
		data.AvgSimilarity = simSum / float64(simCount)
	}
	return data
}

// Generate renders the report in every requested format and writes the
// files into dir. Returns the written paths in format order.
func Generate(r *models.ValidationReport, formats []Format, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	data := process(r)
	var paths []string
	for _, f := range formats {
		b, err := builderFor(f)
		if err != nil {
			return nil, err
		}
		out, err := b.Build(data)
		if err != nil {
			return nil, fmt.Errorf("render %s report: %w", f, err)
		}
		path := filepath.Join(dir, "report."+b.Extension())
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fmt.Errorf("write %s report: %w", f, err)
		}
		paths = append(paths, path)
		log.Printf("[report] wrote %s", path)
	}
	return paths, nil
}
