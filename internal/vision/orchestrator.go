package vision

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/DaveSmith227/vizspec/internal/config"
	"github.com/DaveSmith227/vizspec/internal/imagefile"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

// typographyTimeoutFactor extends the deadline for typography
// extraction, which is materially slower than the other categories.
const typographyTimeoutFactor = 2

// progressInterval is how often a slow in-flight call is logged so
// operators can tell "slow" from "hung".
const progressInterval = 15 * time.Second

// Orchestrator drives vision providers per token type. It selects the
// first configured provider, applies per-token-type timeouts, and
// retries transient failures a bounded number of times. Failures
// propagate to the caller: substituting empty token sets on error
// previously masked systemic misconfiguration and must not return.
type Orchestrator struct {
	providers []Provider
	codec     *imagefile.Codec
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	maxDim    int
}

// NewOrchestrator creates an Orchestrator over the given providers.
// The provider order is significant: the first entry wins.
func NewOrchestrator(providers []Provider, codec *imagefile.Codec, extraction config.ExtractionConfig, maxDim int) *Orchestrator {
	timeout := extraction.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	backoff := extraction.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Orchestrator{
		providers: providers,
		codec:     codec,
		timeout:   timeout,
		retries:   extraction.Retries,
		backoff:   backoff,
		maxDim:    maxDim,
	}
}

// ProviderName returns the active provider's name, or "" when none is
// configured. Used in cache keys so a provider switch invalidates
// cached fragments.
func (o *Orchestrator) ProviderName() string {
	if len(o.providers) == 0 {
		return ""
	}
	return o.providers[0].Name()
}

// TimeoutFor returns the per-call deadline for a token type.
func (o *Orchestrator) TimeoutFor(tokenType models.TokenType) time.Duration {
	if tokenType == models.TokenTypography {
		return o.timeout * typographyTimeoutFactor
	}
	return o.timeout
}

// LoadImage resolves, validates, and reads the image at path. It is
// exposed so callers can hash the same bytes the provider will see.
func (o *Orchestrator) LoadImage(imagePath string) (ImageInput, error) {
	resolved, err := o.codec.Resolve(imagePath)
	if err != nil {
		return ImageInput{}, err
	}
	mediaType, err := o.codec.DetectMediaType(resolved)
	if err != nil {
		return ImageInput{}, err
	}
	if err := o.codec.ValidateDimensions(resolved, o.maxDim); err != nil {
		return ImageInput{}, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return ImageInput{}, fmt.Errorf("read image %s: %w", resolved, err)
	}
	return ImageInput{Path: resolved, Data: data, MediaType: mediaType}, nil
}

// Analyze extracts one token category from the image at imagePath.
// Fails with ErrProviderUnavailable before any I/O when no provider is
// configured.
func (o *Orchestrator) Analyze(ctx context.Context, imagePath string, tokenType models.TokenType) ([]byte, error) {
	if len(o.providers) == 0 {
		return nil, models.ErrProviderUnavailable
	}
	img, err := o.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	return o.AnalyzeImage(ctx, img, tokenType)
}

// AnalyzeImage runs the provider call for an already-loaded image,
// with the token type's timeout and the retry policy applied.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, img ImageInput, tokenType models.TokenType) ([]byte, error) {
	if len(o.providers) == 0 {
		return nil, models.ErrProviderUnavailable
	}
	prompt := PromptFor(tokenType)
	if prompt == "" {
		return nil, fmt.Errorf("unknown token type %q", tokenType)
	}
	timeout := o.TimeoutFor(tokenType)

	// Each provider gets the full retry budget before falling back to
	// the next one.
	var lastErr error
	for pi, provider := range o.providers {
		if pi > 0 {
			log.Printf("[vision] falling back to %s for %s extraction: %v",
				provider.Name(), tokenType, lastErr)
		}
		for attempt := 0; attempt <= o.retries; attempt++ {
			if attempt > 0 {
				delay := o.backoff << (attempt - 1)
				log.Printf("[vision] retrying %s extraction via %s in %v (attempt %d/%d): %v",
					tokenType, provider.Name(), delay, attempt+1, o.retries+1, lastErr)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %v", models.ErrProviderTimeout, ctx.Err())
				}
			}

			payload, err := o.callOnce(ctx, provider, img, tokenType, prompt, timeout)
			if err == nil {
				return payload, nil
			}
			lastErr = err
			if !models.Retryable(err) {
				break
			}
		}
	}
	return nil, lastErr
}

func (o *Orchestrator) callOnce(ctx context.Context, provider Provider, img ImageInput, tokenType models.TokenType, prompt string, timeout time.Duration) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Periodic progress logging for long-running calls.
	started := time.Now()
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-ticker.C:
				log.Printf("[vision] %s extraction via %s still in flight after %v (deadline %v)",
					tokenType, provider.Name(), time.Since(started).Round(time.Second), timeout)
			case <-done:
				return
			}
		}
	}()

	payload, err := provider.Analyze(callCtx, img, prompt)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && !models.Retryable(err) {
			return nil, fmt.Errorf("%w: %s extraction exceeded %v", models.ErrProviderTimeout, tokenType, timeout)
		}
		return nil, err
	}
	return stripFences(payload), nil
}

// stripFences removes a markdown code fence wrapper when the provider
// ignores the bare-JSON instruction.
func stripFences(payload []byte) []byte {
	trimmed := bytes.TrimSpace(payload)
	if !bytes.HasPrefix(trimmed, []byte("```")) {
		return trimmed
	}
	if idx := bytes.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := bytes.LastIndex(trimmed, []byte("```")); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return bytes.TrimSpace(trimmed)
}
