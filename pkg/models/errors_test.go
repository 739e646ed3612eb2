package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"configuration", ErrConfiguration, "configuration"},
		{"wrapped timeout", fmt.Errorf("typography: %w", ErrProviderTimeout), "provider_timeout"},
		{"wrapped capture", fmt.Errorf("navigate: %w", ErrCapture), "capture_error"},
		{"extraction wrapping provider", fmt.Errorf("%w: %w", ErrExtraction, ErrProviderError), "extraction_error"},
		{"unknown", errors.New("boom"), "internal"},
		{"no migration path", ErrNoMigrationPath, "no_migration_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	retryable := []error{ErrProviderTimeout, ErrProviderError, ErrCaptureTimeout, ErrCapture}
	for _, err := range retryable {
		if !Retryable(fmt.Errorf("wrapped: %w", err)) {
			t.Errorf("%v should be retryable", err)
		}
	}

	terminal := []error{ErrConfiguration, ErrImageNotFound, ErrImageTooLarge, ErrProviderUnavailable, ErrNoMigrationPath}
	for _, err := range terminal {
		if Retryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}

func TestRemediationHints(t *testing.T) {
	if Remediation(ErrProviderUnavailable) == "" {
		t.Error("provider-unavailable should carry a remediation hint")
	}
	if Remediation(errors.New("boom")) != "" {
		t.Error("unknown errors should have no hint")
	}
}
