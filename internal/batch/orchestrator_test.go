package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DaveSmith227/vizspec/internal/config"
	"github.com/DaveSmith227/vizspec/internal/validate"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

// fakeRunner returns scripted outcomes keyed by request name and records
// peak concurrency.
type fakeRunner struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	delay    time.Duration
	outcomes map[string]models.DiffResult
	calls    atomic.Int32
}

func (f *fakeRunner) Validate(ctx context.Context, req validate.Request) *models.DiffResult {
	f.calls.Add(1)
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if out, ok := f.outcomes[req.Name]; ok {
		out.Name = req.Name
		out.Viewport = req.Viewport
		return &out
	}
	return &models.DiffResult{Name: req.Name, Viewport: req.Viewport, Passed: true, SimilarityScore: 1}
}

type runnerFunc func(context.Context, validate.Request) *models.DiffResult

func (f runnerFunc) Validate(ctx context.Context, req validate.Request) *models.DiffResult {
	return f(ctx, req)
}

func batchFile() *config.BatchFile {
	return &config.BatchFile{
		BaseURL:   "http://localhost:3000",
		Pages:     []config.BatchPage{{Path: "/", Name: "home"}, {Path: "/about", Name: "about"}},
		Viewports: []string{"1280x720", "375x667"},
		Threshold: 0.05,
	}
}

func TestRunExpandsPagesAcrossViewports(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, Options{Concurrency: 2, ReferenceDir: "refs"})

	report, err := o.Run(context.Background(), batchFile())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 4 {
		t.Fatalf("results = %d, want 2 pages x 2 viewports = 4", len(report.Results))
	}
	if report.Summary.TotalTests != 4 || report.Summary.Passed != 4 {
		t.Errorf("summary = %+v, want 4 passed", report.Summary)
	}
	if report.ID == "" {
		t.Error("report should get an ID")
	}
	if !report.AllPassed() {
		t.Error("all-green run should report AllPassed")
	}
}

func TestRunKeepsInputOrder(t *testing.T) {
	runner := &fakeRunner{delay: 5 * time.Millisecond}
	o := New(runner, Options{Concurrency: 4, ReferenceDir: "refs"})

	report, err := o.Run(context.Background(), batchFile())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"home", "home", "about", "about"}
	for i, r := range report.Results {
		if r.Name != want[i] {
			t.Errorf("result %d = %s, want %s", i, r.Name, want[i])
		}
	}
	// First two entries are home at each viewport, in file order.
	if report.Results[0].Viewport.Width != 1280 || report.Results[1].Viewport.Width != 375 {
		t.Error("viewport order should follow the batch file")
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: 10 * time.Millisecond}
	o := New(runner, Options{Concurrency: 2, ReferenceDir: "refs"})

	if _, err := o.Run(context.Background(), batchFile()); err != nil {
		t.Fatal(err)
	}
	if runner.peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", runner.peak)
	}
}

func TestRunItemFailureDoesNotAbort(t *testing.T) {
	runner := &fakeRunner{outcomes: map[string]models.DiffResult{
		"home": {Passed: false, SimilarityScore: 0.8},
	}}
	o := New(runner, Options{Concurrency: 1, ReferenceDir: "refs"})

	report, err := o.Run(context.Background(), batchFile())
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.Failed != 2 {
		t.Errorf("Failed = %d, want 2 (home at both viewports)", report.Summary.Failed)
	}
	if report.Summary.Passed != 2 {
		t.Errorf("Passed = %d, want 2", report.Summary.Passed)
	}
	if report.AllPassed() {
		t.Error("report with failures must not be AllPassed")
	}
}

func TestRunItemErrorRecordedNotThrown(t *testing.T) {
	runner := &fakeRunner{outcomes: map[string]models.DiffResult{
		"about": {Passed: false, ErrorKind: "capture_timeout", Error: "navigate: deadline exceeded"},
	}}
	o := New(runner, Options{Concurrency: 2, ReferenceDir: "refs"})

	report, err := o.Run(context.Background(), batchFile())
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.Errored != 2 {
		t.Errorf("Errored = %d, want 2", report.Summary.Errored)
	}
	for _, r := range report.Results {
		if r.Name == "about" && r.ErrorKind != "capture_timeout" {
			t.Errorf("about ErrorKind = %q", r.ErrorKind)
		}
	}
}

func TestRunFailFastSkipsQueued(t *testing.T) {
	runner := &fakeRunner{
		delay: 5 * time.Millisecond,
		outcomes: map[string]models.DiffResult{
			"home": {Passed: false, SimilarityScore: 0.5},
		},
	}
	o := New(runner, Options{Concurrency: 1, FailFast: true, ReferenceDir: "refs"})

	report, err := o.Run(context.Background(), batchFile())
	if err != nil {
		t.Fatal(err)
	}
	// Worker pool of one: first job fails, everything queued after it
	// is skipped without running.
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("validations run = %d, want 1", got)
	}
	skippedCount := 0
	for _, r := range report.Results {
		if r.ErrorKind == "skipped" {
			skippedCount++
		}
	}
	if skippedCount != 3 {
		t.Errorf("skipped = %d, want 3", skippedCount)
	}
}

func TestRunFailFastLeavesInFlightRunning(t *testing.T) {
	bf := &config.BatchFile{
		BaseURL:   "http://localhost:3000",
		Pages:     []config.BatchPage{{Path: "/", Name: "home"}, {Path: "/about", Name: "about"}},
		Viewports: []string{"1280x720"},
		Threshold: 0.05,
	}
	slowStarted := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, req validate.Request) *models.DiffResult {
		if req.Name == "home" {
			// Fail only once the slow job is in flight.
			<-slowStarted
			return &models.DiffResult{Name: req.Name, Viewport: req.Viewport, Passed: false, SimilarityScore: 0.5}
		}
		close(slowStarted)
		select {
		case <-ctx.Done():
			return &models.DiffResult{Name: req.Name, Viewport: req.Viewport, ErrorKind: "capture_timeout", Error: ctx.Err().Error()}
		case <-time.After(30 * time.Millisecond):
			return &models.DiffResult{Name: req.Name, Viewport: req.Viewport, Passed: true, SimilarityScore: 1}
		}
	})
	o := New(runner, Options{Concurrency: 2, FailFast: true, ReferenceDir: "refs"})

	report, err := o.Run(context.Background(), bf)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range report.Results {
		if r.Name == "about" && (!r.Passed || r.Errored()) {
			t.Errorf("in-flight validation should finish on its own terms, got %+v", r)
		}
	}
	if report.Summary.Passed != 1 || report.Summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 passed and 1 failed", report.Summary)
	}
}

func TestRunVariantsGetOwnReferences(t *testing.T) {
	bf := &config.BatchFile{
		BaseURL:   "http://localhost:3000",
		Pages:     []config.BatchPage{{Path: "/", Name: "home", Variants: []string{"dark"}}},
		Viewports: []string{"1280x720"},
		Threshold: 0.05,
	}
	runner := &fakeRunner{}
	o := New(runner, Options{Concurrency: 1, ReferenceDir: "refs"})

	report, err := o.Run(context.Background(), bf)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("results = %d, want base + dark variant", len(report.Results))
	}
	if report.Results[1].Name != "home-dark" {
		t.Errorf("variant name = %s, want home-dark", report.Results[1].Name)
	}
}

func TestRunRejectsBadViewport(t *testing.T) {
	bf := batchFile()
	bf.Viewports = []string{"huge"}
	o := New(&fakeRunner{}, Options{Concurrency: 1})

	if _, err := o.Run(context.Background(), bf); err == nil {
		t.Fatal("malformed viewport should abort before any work")
	}
}
