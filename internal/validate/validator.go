// Package validate runs the capture-compare-decide pipeline for a single
// page against a reference screenshot.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/DaveSmith227/vizspec/internal/cache"
	"github.com/DaveSmith227/vizspec/internal/capture"
	"github.com/DaveSmith227/vizspec/internal/diff"
	"github.com/DaveSmith227/vizspec/internal/imagefile"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

// Store is the subset of the result cache the validator needs.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, payload []byte, operation string) error
}

// Request describes one comparison.
type Request struct {
	Name      string
	URL       string
	Viewport  models.Viewport
	Reference string
	// Selector scopes the capture to one element. Empty means full page.
	Selector      string
	Threshold     float64
	SettleTimeout time.Duration
}

// Options configures a Validator.
type Options struct {
	// Store caches validation results. Nil disables caching.
	Store Store
	// TTL bounds how long a cached result stays valid.
	TTL       time.Duration
	OutputDir string
	// Retries applies to capture failures only. Comparison never retries.
	Retries int
	Backoff time.Duration
	// MaxDimension bounds reference image width and height.
	MaxDimension int
}

// Validator captures a live page and compares it against a reference
// image. Failures are recorded in the result rather than returned, so a
// batch of validations always completes.
type Validator struct {
	capturer capture.Capturer
	engine   *diff.Engine
	codec    *imagefile.Codec
	opts     Options
}

func New(capturer capture.Capturer, codec *imagefile.Codec, opts Options) *Validator {
	if opts.OutputDir == "" {
		opts.OutputDir = "validation-output"
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = imagefile.DefaultMaxDimension
	}
	return &Validator{
		capturer: capturer,
		engine:   diff.NewEngine(),
		codec:    codec,
		opts:     opts,
	}
}

// cachedResult wraps a result with its creation time so the validator
// can expire entries without schema support in the cache itself.
type cachedResult struct {
	CachedAt time.Time         `json:"cachedAt"`
	Result   models.DiffResult `json:"result"`
}

// Validate runs one comparison. The returned result is always non-nil;
// check Errored for infrastructure failures.
func (v *Validator) Validate(ctx context.Context, req Request) *models.DiffResult {
	started := time.Now()
	result := &models.DiffResult{
		Name:           req.Name,
		URL:            req.URL,
		Viewport:       req.Viewport,
		ReferenceImage: req.Reference,
	}

	refData, err := v.loadReference(req.Reference)
	if err != nil {
		return v.fail(result, started, err)
	}
	refHash := cache.HashBytes(refData)

	key := v.cacheKey(req, refHash)
	if cached, ok := v.lookup(key); ok {
		log.Printf("[validate] %s: cached result (age within ttl)", req.Name)
		cached.FromCache = true
		cached.Duration = time.Since(started)
		return cached
	}

	actData, err := v.captureWithRetry(ctx, req)
	if err != nil {
		return v.fail(result, started, err)
	}

	cmp, err := v.engine.Compare(refData, actData)
	if err != nil {
		return v.fail(result, started, fmt.Errorf("%w: %v", models.ErrCapture, err))
	}

	result.SimilarityScore = cmp.Similarity
	result.PixelDiffCount = cmp.DiffPixels
	result.TotalPixels = cmp.TotalPixels
	// Drift exactly at the threshold passes. Compared on pixel counts so
	// the boundary is exact rather than subject to float rounding.
	result.Passed = float64(cmp.DiffPixels) <= req.Threshold*float64(cmp.TotalPixels)

	if err := v.writeOutputs(result, req, actData, cmp); err != nil {
		log.Printf("[validate] %s: artifact write failed: %v", req.Name, err)
	}

	result.Duration = time.Since(started)
	v.storeResult(key, result)
	return result
}

func (v *Validator) loadReference(path string) ([]byte, error) {
	resolved, err := v.codec.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := v.codec.ValidateDimensions(resolved, v.opts.MaxDimension); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrImageNotFound, path, err)
	}
	return data, nil
}

func (v *Validator) cacheKey(req Request, refHash string) string {
	return cache.ComputeKey([]byte(refHash), "validate", map[string]string{
		"url":       req.URL,
		"viewport":  fmt.Sprintf("%dx%d", req.Viewport.Width, req.Viewport.Height),
		"selector":  req.Selector,
		"threshold": fmt.Sprintf("%g", req.Threshold),
	})
}

func (v *Validator) lookup(key string) (*models.DiffResult, bool) {
	if v.opts.Store == nil {
		return nil, false
	}
	payload, ok := v.opts.Store.Get(key)
	if !ok {
		return nil, false
	}
	var cr cachedResult
	if err := json.Unmarshal(payload, &cr); err != nil {
		return nil, false
	}
	if v.opts.TTL > 0 && time.Since(cr.CachedAt) > v.opts.TTL {
		return nil, false
	}
	return &cr.Result, true
}

func (v *Validator) storeResult(key string, result *models.DiffResult) {
	if v.opts.Store == nil || result.Errored() {
		return
	}
	payload, err := json.Marshal(cachedResult{CachedAt: time.Now().UTC(), Result: *result})
	if err != nil {
		return
	}
	if err := v.opts.Store.Put(key, payload, "validate"); err != nil {
		log.Printf("[validate] cache write failed: %v", err)
	}
}

func (v *Validator) captureWithRetry(ctx context.Context, req Request) ([]byte, error) {
	capReq := capture.Request{
		URL:           req.URL,
		Viewport:      req.Viewport,
		Selector:      req.Selector,
		SettleTimeout: req.SettleTimeout,
	}

	var lastErr error
	for attempt := 0; attempt <= v.opts.Retries; attempt++ {
		if attempt > 0 {
			wait := v.opts.Backoff << (attempt - 1)
			log.Printf("[validate] %s: capture retry %d/%d after %s (%v)",
				req.Name, attempt, v.opts.Retries, wait, lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", models.ErrCaptureTimeout, ctx.Err())
			case <-time.After(wait):
			}
		}

		data, err := v.capturer.Capture(ctx, capReq)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !models.Retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (v *Validator) writeOutputs(result *models.DiffResult, req Request, actData []byte, cmp *diff.Result) error {
	name := fmt.Sprintf("%s-%dx%d", sanitize(req.Name), req.Viewport.Width, req.Viewport.Height)

	if err := os.MkdirAll(v.opts.OutputDir, 0o755); err != nil {
		return err
	}
	actPath := filepath.Join(v.opts.OutputDir, name+"-actual.png")
	if err := os.WriteFile(actPath, actData, 0o644); err != nil {
		return err
	}
	result.ActualImage = actPath

	// Artifacts are only interesting when something differs.
	if result.Passed && cmp.DiffPixels == 0 {
		return nil
	}
	paths, err := diff.WriteArtifacts(cmp, v.opts.OutputDir, name)
	if err != nil {
		return err
	}
	result.Artifacts = paths
	return nil
}

func (v *Validator) fail(result *models.DiffResult, started time.Time, err error) *models.DiffResult {
	result.Passed = false
	result.ErrorKind = models.Classify(err)
	result.Error = err.Error()
	result.Duration = time.Since(started)
	log.Printf("[validate] %s: %v", result.Name, err)
	return result
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ', r == '/':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "page"
	}
	return string(out)
}
