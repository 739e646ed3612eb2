package models

import "time"

// Viewport describes the browser window size used for a capture,
// e.g. "1280x720".
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ArtifactPaths lists the optional visualization artifacts produced by a
// comparison. Empty fields mean the artifact was not requested.
type ArtifactPaths struct {
	SideBySide string `json:"side_by_side,omitempty"`
	Overlay    string `json:"overlay,omitempty"`
	DiffMask   string `json:"diff_mask,omitempty"`
}

// DiffResult is the outcome of comparing one captured page against its
// reference image. It is derived data and never mutated after creation.
type DiffResult struct {
	// Name identifies the page or work item this result belongs to.
	Name string `json:"name"`
	// URL is the page that was captured, when applicable.
	URL string `json:"url,omitempty"`
	// Viewport is the viewport the page was captured at.
	Viewport Viewport `json:"viewport"`

	ReferenceImage string `json:"reference_image"`
	ActualImage    string `json:"actual_image,omitempty"`

	// SimilarityScore is 1 - (differing pixels / total pixels), in 0..1.
	SimilarityScore float64 `json:"similarity_score"`
	PixelDiffCount  int     `json:"pixel_diff_count"`
	TotalPixels     int     `json:"total_pixels"`

	// Passed is true when SimilarityScore >= 1 - threshold. A score
	// exactly at the boundary passes: the threshold is an
	// allowed-difference ceiling, not a strict inequality.
	Passed bool `json:"passed"`

	// ErrorKind classifies a failed item (see Classify); empty on success.
	ErrorKind string `json:"error_kind,omitempty"`
	// Error is the item's error message, when ErrorKind is set.
	Error string `json:"error,omitempty"`

	Artifacts ArtifactPaths `json:"artifacts,omitempty"`

	// FromCache is true when the result was served by the validation
	// cache instead of a fresh capture.
	FromCache bool          `json:"from_cache,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
}

// Errored returns true when the item failed before a comparison could
// produce a definitive pass/fail.
func (r DiffResult) Errored() bool {
	return r.ErrorKind != ""
}

// ReportSummary aggregates pass/fail counters for a batch run.
type ReportSummary struct {
	TotalTests int `json:"total_tests"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Errored    int `json:"errored"`
}

// ValidationReport aggregates the results of one batch invocation.
// It is write-once: created when the batch completes, then only read.
type ValidationReport struct {
	// ID is a unique identifier for this run.
	ID string `json:"id"`
	// StartedAt and CompletedAt bound the batch run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Summary ReportSummary `json:"summary"`
	// Results are listed in the original input order regardless of
	// completion order.
	Results []DiffResult `json:"results"`
}

// AllPassed returns true when every item produced a passing result.
func (r *ValidationReport) AllPassed() bool {
	return r.Summary.Failed == 0 && r.Summary.Errored == 0 && r.Summary.TotalTests > 0
}
