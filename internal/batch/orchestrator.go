// Package batch fans a batch configuration out across a bounded worker
// pool and aggregates the per-page results into a single report.
package batch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/DaveSmith227/vizspec/internal/capture"
	"github.com/DaveSmith227/vizspec/internal/config"
	"github.com/DaveSmith227/vizspec/internal/validate"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

// Runner executes a single validation. Satisfied by validate.Validator.
type Runner interface {
	Validate(ctx context.Context, req validate.Request) *models.DiffResult
}

// Options configures a batch run.
type Options struct {
	// Concurrency bounds simultaneous validations. Values below 1 mean 2.
	Concurrency int
	// FailFast skips jobs that have not started once any job fails.
	// In-flight jobs always run to completion.
	FailFast bool
	// ReferenceDir holds reference images named <page>[-variant]-<WxH>.png.
	ReferenceDir  string
	SettleTimeout time.Duration
}

// Orchestrator runs batches. Item failures never abort the run; they are
// recorded on the result and counted in the summary.
type Orchestrator struct {
	runner Runner
	opts   Options
}

func New(runner Runner, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 2
	}
	return &Orchestrator{runner: runner, opts: opts}
}

type job struct {
	index int
	req   validate.Request
}

// Run expands the batch file into jobs and executes them across the
// worker pool. Results keep the expansion order regardless of which
// worker finished first. An error is returned only for configuration
// problems found before any work starts.
func (o *Orchestrator) Run(ctx context.Context, bf *config.BatchFile) (*models.ValidationReport, error) {
	jobs, err := o.expand(bf)
	if err != nil {
		return nil, err
	}

	report := &models.ValidationReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Results:   make([]models.DiffResult, len(jobs)),
	}
	log.Printf("[batch] %s: %d validation(s), concurrency %d", report.ID[:8], len(jobs), o.opts.Concurrency)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
		done   atomic.Int32
	)
	queue := make(chan job)

	for w := 0; w < o.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				if runCtx.Err() != nil || (o.opts.FailFast && failed.Load()) {
					report.Results[j.index] = skipped(j.req)
					continue
				}
				res := o.runner.Validate(runCtx, j.req)
				report.Results[j.index] = *res
				n := done.Add(1)
				log.Printf("[batch] (%d/%d) %s %dx%d: %s",
					n, len(jobs), j.req.Name, j.req.Viewport.Width, j.req.Viewport.Height, verdict(res))
				if !res.Passed {
					// Fail-fast only stops jobs that have not started:
					// workers drain the queue marking them skipped while
					// in-flight validations run to completion.
					failed.Store(true)
				}
			}
		}()
	}

	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	report.CompletedAt = time.Now().UTC()
	report.Summary = summarize(report.Results)
	return report, nil
}

func (o *Orchestrator) expand(bf *config.BatchFile) ([]job, error) {
	viewports := make([]models.Viewport, 0, len(bf.Viewports))
	for _, vs := range bf.Viewports {
		vp, err := capture.ParseViewport(vs)
		if err != nil {
			return nil, err
		}
		viewports = append(viewports, vp)
	}

	threshold := bf.Threshold
	if threshold == 0 {
		threshold = bf.Settings.DefaultThreshold
	}
	settle := o.opts.SettleTimeout
	if bf.Settings.Timeout > 0 {
		settle = bf.Settings.Timeout
	}

	var jobs []job
	add := func(page config.BatchPage, variant string, vp models.Viewport) {
		name := page.Name
		if variant != "" {
			name = fmt.Sprintf("%s-%s", page.Name, variant)
		}
		ref := filepath.Join(o.opts.ReferenceDir,
			fmt.Sprintf("%s-%dx%d.png", name, vp.Width, vp.Height))
		selector := ""
		if len(page.Selectors) > 0 {
			selector = page.Selectors[0]
		}
		jobs = append(jobs, job{
			index: len(jobs),
			req: validate.Request{
				Name:          name,
				URL:           bf.BaseURL + page.Path,
				Viewport:      vp,
				Reference:     ref,
				Selector:      selector,
				Threshold:     threshold,
				SettleTimeout: settle,
			},
		})
	}

	for _, page := range bf.Pages {
		for _, vp := range viewports {
			add(page, "", vp)
			for _, variant := range page.Variants {
				add(page, variant, vp)
			}
		}
	}
	return jobs, nil
}

func skipped(req validate.Request) models.DiffResult {
	return models.DiffResult{
		Name:           req.Name,
		URL:            req.URL,
		Viewport:       req.Viewport,
		ReferenceImage: req.Reference,
		Passed:         false,
		ErrorKind:      "skipped",
		Error:          "skipped: earlier validation failed with fail-fast enabled",
	}
}

func summarize(results []models.DiffResult) models.ReportSummary {
	s := models.ReportSummary{TotalTests: len(results)}
	for _, r := range results {
		switch {
		case r.Errored():
			s.Errored++
		case r.Passed:
			s.Passed++
		default:
			s.Failed++
		}
	}
	return s
}

func verdict(res *models.DiffResult) string {
	switch {
	case res.Errored():
		return fmt.Sprintf("ERROR (%s)", res.ErrorKind)
	case res.Passed:
		return fmt.Sprintf("PASS (%.2f%% similar)", res.SimilarityScore*100)
	default:
		return fmt.Sprintf("FAIL (%.2f%% similar)", res.SimilarityScore*100)
	}
}
