// Package migrate upgrades and downgrades token documents between schema
// versions along a chain of reversible rules.
package migrate

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/blang/semver/v4"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

// Rule transforms a document between two adjacent schema versions. Rules
// operate on the raw JSON object so they can reshape fields the current
// struct no longer has.
type Rule struct {
	From  semver.Version
	To    semver.Version
	Apply func(doc map[string]any) error
	// Revert undoes Apply. Nil marks the rule one-way.
	Revert func(doc map[string]any) error
}

func (r Rule) Reversible() bool { return r.Revert != nil }

type step struct {
	rule    Rule
	reverse bool
}

func (s step) from() semver.Version {
	if s.reverse {
		return s.rule.To
	}
	return s.rule.From
}

func (s step) to() semver.Version {
	if s.reverse {
		return s.rule.From
	}
	return s.rule.To
}

func (s step) apply(doc map[string]any) error {
	if s.reverse {
		return s.rule.Revert(doc)
	}
	return s.rule.Apply(doc)
}

// Migrator holds the rule chain. The zero value has no rules; use New
// for the built-in chain.
type Migrator struct {
	rules []Rule
}

func New() *Migrator {
	return &Migrator{rules: builtinRules()}
}

func NewWithRules(rules []Rule) *Migrator {
	return &Migrator{rules: rules}
}

// Path finds the shortest rule sequence from one version to another.
// Downgrades traverse reversible rules backwards. Returns
// ErrNoMigrationPath when the versions are not connected.
func (m *Migrator) Path(from, to semver.Version) ([]step, error) {
	if from.EQ(to) {
		return nil, nil
	}

	type node struct {
		version semver.Version
		path    []step
	}
	visited := map[string]bool{from.String(): true}
	queue := []node{{version: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, r := range m.rules {
			var candidates []step
			if r.From.EQ(cur.version) {
				candidates = append(candidates, step{rule: r})
			}
			if r.Reversible() && r.To.EQ(cur.version) {
				candidates = append(candidates, step{rule: r, reverse: true})
			}
			for _, s := range candidates {
				next := s.to()
				if visited[next.String()] {
					continue
				}
				path := append(append([]step(nil), cur.path...), s)
				if next.EQ(to) {
					return path, nil
				}
				visited[next.String()] = true
				queue = append(queue, node{version: next, path: path})
			}
		}
	}
	return nil, fmt.Errorf("%w: %s to %s", models.ErrNoMigrationPath, from, to)
}

// CheckCompatibility reports whether a document at the given version can
// reach the target. It never mutates anything.
func (m *Migrator) CheckCompatibility(docVersion, target string) error {
	from, err := semver.Parse(docVersion)
	if err != nil {
		return fmt.Errorf("%w: document schema version %q: %v", models.ErrConfiguration, docVersion, err)
	}
	to, err := semver.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: target version %q: %v", models.ErrConfiguration, target, err)
	}
	_, err = m.Path(from, to)
	return err
}

// Options configures a migration run.
type Options struct {
	DryRun bool
	// Backup writes the original file next to itself before the first
	// rule runs.
	Backup bool
	// ChangelogPath appends a migration record when non-empty.
	ChangelogPath string
}

// Result describes what a migration did or, for dry runs, would do.
type Result struct {
	From       string
	To         string
	Steps      []string
	BackupPath string
	// Doc is the migrated document. Nil for dry runs.
	Doc map[string]any
}

// Migrate transforms the document to the target version. All rules run
// against a working copy; the input map is never mutated, so a failing
// rule leaves no partial state behind. The failing rule is named in the
// returned error.
func (m *Migrator) Migrate(doc map[string]any, target string, opts Options) (*Result, error) {
	docVersion, _ := doc["schema_version"].(string)
	if docVersion == "" {
		return nil, fmt.Errorf("%w: document has no schema_version", models.ErrConfiguration)
	}
	from, err := semver.Parse(docVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: schema version %q: %v", models.ErrConfiguration, docVersion, err)
	}
	to, err := semver.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: target version %q: %v", models.ErrConfiguration, target, err)
	}

	path, err := m.Path(from, to)
	if err != nil {
		return nil, err
	}

	result := &Result{From: from.String(), To: to.String()}
	for _, s := range path {
		result.Steps = append(result.Steps, fmt.Sprintf("%s -> %s", s.from(), s.to()))
	}
	if opts.DryRun {
		return result, nil
	}

	working := cloneDoc(doc)
	for _, s := range path {
		if err := s.apply(working); err != nil {
			return nil, fmt.Errorf("migration step %s -> %s: %w", s.from(), s.to(), err)
		}
		working["schema_version"] = s.to().String()
	}
	result.Doc = working
	return result, nil
}

// MigrateFile migrates a token document on disk in place.
func (m *Migrator) MigrateFile(path, target string, opts Options) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse token document %s: %v", models.ErrConfiguration, path, err)
	}

	result, err := m.Migrate(doc, target, opts)
	if err != nil {
		return nil, err
	}
	if opts.DryRun || len(result.Steps) == 0 {
		return result, nil
	}

	if opts.Backup {
		backup := fmt.Sprintf("%s.v%s.bak", path, result.From)
		if err := os.WriteFile(backup, raw, 0o644); err != nil {
			return nil, fmt.Errorf("write backup: %w", err)
		}
		result.BackupPath = backup
		log.Printf("[migrate] backup written to %s", backup)
	}

	out, err := json.MarshalIndent(result.Doc, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write migrated document: %w", err)
	}

	if opts.ChangelogPath != "" {
		if err := appendChangelog(opts.ChangelogPath, ChangelogEntry{
			At:    time.Now().UTC(),
			File:  path,
			From:  result.From,
			To:    result.To,
			Steps: result.Steps,
		}); err != nil {
			log.Printf("[migrate] changelog update failed: %v", err)
		}
	}

	log.Printf("[migrate] %s: %s -> %s (%d step(s))", path, result.From, result.To, len(result.Steps))
	return result, nil
}

func cloneDoc(doc map[string]any) map[string]any {
	// Round-tripping through JSON deep-copies every nested container.
	raw, err := json.Marshal(doc)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
