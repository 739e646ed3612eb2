package models

import "errors"

// Sentinel errors for the failure taxonomy. Components wrap these with
// fmt.Errorf("...: %w", ...) so callers classify with errors.Is while
// the message keeps the underlying cause.
var (
	// ErrConfiguration is fatal, surfaced immediately, never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrImageNotFound means no path candidate resolved to a file.
	ErrImageNotFound = errors.New("image not found")
	// ErrImageTooLarge means a dimension exceeds the provider maximum.
	ErrImageTooLarge = errors.New("image exceeds provider dimension limit")

	// ErrProviderUnavailable means no vision provider is configured.
	ErrProviderUnavailable = errors.New("no vision provider configured")
	// ErrProviderTimeout means the provider deadline elapsed.
	ErrProviderTimeout = errors.New("vision provider timed out")
	// ErrProviderError covers any non-timeout vendor failure.
	ErrProviderError = errors.New("vision provider request failed")

	// ErrCaptureTimeout means the page did not settle in time.
	ErrCaptureTimeout = errors.New("page capture timed out")
	// ErrCapture covers any non-timeout capture failure.
	ErrCapture = errors.New("page capture failed")

	// ErrExtraction wraps a provider failure for a required token type.
	ErrExtraction = errors.New("token extraction failed")

	// ErrNoMigrationPath means no rule chain connects the two versions.
	ErrNoMigrationPath = errors.New("no migration path between versions")
)

// Classify maps an error to a stable kind string for batch reports, so
// failures are diagnosable from the report alone.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrImageNotFound):
		return "image_not_found"
	case errors.Is(err, ErrImageTooLarge):
		return "image_too_large"
	// Extraction failures wrap their provider cause, so this case must
	// win over the provider sentinels.
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrProviderTimeout):
		return "provider_timeout"
	case errors.Is(err, ErrProviderError):
		return "provider_error"
	case errors.Is(err, ErrCaptureTimeout):
		return "capture_timeout"
	case errors.Is(err, ErrCapture):
		return "capture_error"
	case errors.Is(err, ErrNoMigrationPath):
		return "no_migration_path"
	default:
		return "internal"
	}
}

// Retryable returns true for transient failures worth a bounded number
// of retries with backoff. Configuration and not-found errors are never
// retried.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrProviderError) ||
		errors.Is(err, ErrCaptureTimeout) ||
		errors.Is(err, ErrCapture)
}

// Remediation returns a short operator hint for an error kind, printed
// alongside the CLI error classification.
func Remediation(err error) string {
	return RemediationForKind(Classify(err))
}

// RemediationForKind is Remediation for already-classified kinds, as
// carried in a DiffResult.
func RemediationForKind(kind string) string {
	switch kind {
	case "provider_unavailable":
		return "set ANTHROPIC_API_KEY or configure AWS Bedrock credentials"
	case "configuration":
		return "check your .vizspec.yaml and batch config file"
	case "image_not_found":
		return "check the path, or set images.base_dir in config"
	case "image_too_large":
		return "resize the image below the provider dimension limit"
	case "capture_timeout":
		return "raise capture.settle_timeout or check that the page is reachable"
	default:
		return ""
	}
}
