// Package version exposes the vizspec release version, embedded at
// build time from the VERSION file.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current release version with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}
