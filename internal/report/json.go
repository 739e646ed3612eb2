package report

import (
	"encoding/json"
	"time"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

type jsonBuilder struct{}

func (jsonBuilder) Extension() string { return "json" }

// jsonReport is the machine-readable envelope CI pipelines parse. The
// field set is part of the CLI contract; add fields, never rename them.
type jsonReport struct {
	ID            string               `json:"id"`
	GeneratedAt   time.Time            `json:"generated_at"`
	StartedAt     time.Time            `json:"started_at"`
	CompletedAt   time.Time            `json:"completed_at"`
	DurationMS    int64                `json:"duration_ms"`
	Summary       models.ReportSummary `json:"summary"`
	PassRate      float64              `json:"pass_rate"`
	AvgSimilarity float64              `json:"avg_similarity"`
	Results       []models.DiffResult  `json:"results"`
}

func (jsonBuilder) Build(data *reportData) ([]byte, error) {
	out := jsonReport{
		ID:            data.Report.ID,
		GeneratedAt:   data.GeneratedAt,
		StartedAt:     data.Report.StartedAt,
		CompletedAt:   data.Report.CompletedAt,
		DurationMS:    data.Duration.Milliseconds(),
		Summary:       data.Report.Summary,
		PassRate:      data.PassRate,
		AvgSimilarity: data.AvgSimilarity,
		Results:       data.Report.Results,
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
