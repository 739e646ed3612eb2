package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ChangelogEntry records one completed migration.
type ChangelogEntry struct {
	At    time.Time `yaml:"at"`
	File  string    `yaml:"file"`
	From  string    `yaml:"from"`
	To    string    `yaml:"to"`
	Steps []string  `yaml:"steps"`
}

// appendChangelog adds an entry to the YAML changelog, creating the file
// and its directory on first use.
func appendChangelog(path string, entry ChangelogEntry) error {
	var entries []ChangelogEntry
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("parse changelog %s: %w", path, err)
		}
	}
	entries = append(entries, entry)

	out, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// ReadChangelog returns all recorded migrations, oldest first.
func ReadChangelog(path string) ([]ChangelogEntry, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []ChangelogEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse changelog %s: %w", path, err)
	}
	return entries, nil
}
