package migrate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/blang/semver/v4"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

func v1Doc() map[string]any {
	return map[string]any{
		"schema_version": "1.0.0",
		"colors": map[string]any{
			"primary": map[string]any{"brand": "#58CC02"},
		},
		"typography": map[string]any{
			"font_family": "Nunito",
			"sizes":       map[string]any{"base": 16.0, "lg": 20.0},
		},
		"radius": map[string]any{
			"small":  4.0,
			"medium": 8.0,
			"large":  16.0,
		},
	}
}

func TestMigrateUpgradeChain(t *testing.T) {
	m := New()
	res, err := m.Migrate(v1Doc(), "2.0.0", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := []string{"1.0.0 -> 1.1.0", "1.1.0 -> 2.0.0"}; !reflect.DeepEqual(res.Steps, got) {
		t.Errorf("Steps = %v", res.Steps)
	}
	doc := res.Doc
	if doc["schema_version"] != "2.0.0" {
		t.Errorf("schema_version = %v", doc["schema_version"])
	}
	if _, ok := doc["shadows"]; !ok {
		t.Error("1.1.0 step should add shadows")
	}
	radii, ok := doc["radii"].(map[string]any)
	if !ok {
		t.Fatal("radius should be restructured into radii")
	}
	values := radii["values"].(map[string]any)
	for _, key := range []string{"sm", "md", "lg"} {
		if _, ok := values[key]; !ok {
			t.Errorf("radii missing renamed key %s", key)
		}
	}
	typo := doc["typography"].(map[string]any)
	if _, ok := typo["font_sizes"]; !ok {
		t.Error("typography sizes should move to font_sizes")
	}
	if _, ok := typo["sizes"]; ok {
		t.Error("old sizes key should be gone")
	}
}

func TestMigrateInputNeverMutated(t *testing.T) {
	doc := v1Doc()
	snapshot := cloneDoc(doc)

	if _, err := New().Migrate(doc, "2.0.0", Options{}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(doc, snapshot) {
		t.Error("input document was mutated")
	}
}

func TestMigrateRoundTrip(t *testing.T) {
	m := New()
	up, err := m.Migrate(v1Doc(), "2.0.0", Options{})
	if err != nil {
		t.Fatal(err)
	}
	down, err := m.Migrate(up.Doc, "1.0.0", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if down.Doc["schema_version"] != "1.0.0" {
		t.Errorf("schema_version = %v", down.Doc["schema_version"])
	}
	radius := down.Doc["radius"].(map[string]any)
	for _, key := range []string{"small", "medium", "large"} {
		if _, ok := radius[key]; !ok {
			t.Errorf("downgrade should restore radius key %s", key)
		}
	}
	typo := down.Doc["typography"].(map[string]any)
	if _, ok := typo["sizes"]; !ok {
		t.Error("downgrade should restore typography sizes")
	}
	if _, ok := down.Doc["shadows"]; ok {
		t.Error("downgrade should drop shadows")
	}
}

func TestMigrateSameVersionNoop(t *testing.T) {
	res, err := New().Migrate(v1Doc(), "1.0.0", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Steps) != 0 {
		t.Errorf("Steps = %v, want none", res.Steps)
	}
}

func TestMigrateNoPath(t *testing.T) {
	_, err := New().Migrate(v1Doc(), "9.0.0", Options{})
	if !errors.Is(err, models.ErrNoMigrationPath) {
		t.Errorf("err = %v, want ErrNoMigrationPath", err)
	}
}

func TestMigrateDryRun(t *testing.T) {
	res, err := New().Migrate(v1Doc(), "2.0.0", Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Doc != nil {
		t.Error("dry run must not produce a document")
	}
	if len(res.Steps) != 2 {
		t.Errorf("Steps = %v", res.Steps)
	}
}

func TestMigrateFailingRuleNamesStep(t *testing.T) {
	boom := errors.New("bad shape")
	m := NewWithRules([]Rule{
		{
			From:  semver.MustParse("1.0.0"),
			To:    semver.MustParse("1.1.0"),
			Apply: func(map[string]any) error { return nil },
		},
		{
			From:  semver.MustParse("1.1.0"),
			To:    semver.MustParse("2.0.0"),
			Apply: func(map[string]any) error { return boom },
		},
	})
	doc := v1Doc()
	snapshot := cloneDoc(doc)

	_, err := m.Migrate(doc, "2.0.0", Options{})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, boom) {
		t.Errorf("failing rule error should be wrapped, got %v", err)
	}
	if got := err.Error(); got != "migration step 1.1.0 -> 2.0.0: bad shape" {
		t.Errorf("error = %q", got)
	}
	if !reflect.DeepEqual(doc, snapshot) {
		t.Error("failed migration must leave the input untouched")
	}
}

func TestCheckCompatibility(t *testing.T) {
	m := New()
	tests := []struct {
		from, to string
		ok       bool
	}{
		{"1.0.0", "2.0.0", true},
		{"2.0.0", "1.0.0", true},
		{"1.1.0", "1.1.0", true},
		{"1.0.0", "3.0.0", false},
		{"not-semver", "2.0.0", false},
	}
	for _, tt := range tests {
		err := m.CheckCompatibility(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("CheckCompatibility(%s, %s): %v", tt.from, tt.to, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("CheckCompatibility(%s, %s) should fail", tt.from, tt.to)
		}
	}
}

func TestMigrateFileWithBackupAndChangelog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	raw, err := json.Marshal(v1Doc())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	changelog := filepath.Join(dir, ".vizspec", "changelog.yaml")
	res, err := New().MigrateFile(path, "2.0.0", Options{Backup: true, ChangelogPath: changelog})
	if err != nil {
		t.Fatal(err)
	}

	if res.BackupPath == "" {
		t.Fatal("backup path should be reported")
	}
	backup, err := os.ReadFile(res.BackupPath)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != string(raw) {
		t.Error("backup should hold the pre-migration bytes")
	}

	migrated, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(migrated, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["schema_version"] != "2.0.0" {
		t.Errorf("file schema_version = %v", doc["schema_version"])
	}

	entries, err := ReadChangelog(changelog)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("changelog entries = %d, want 1", len(entries))
	}
	if entries[0].From != "1.0.0" || entries[0].To != "2.0.0" {
		t.Errorf("changelog entry = %+v", entries[0])
	}

	// A second migration appends rather than overwrites.
	if _, err := New().MigrateFile(path, "1.1.0", Options{ChangelogPath: changelog}); err != nil {
		t.Fatal(err)
	}
	entries, err = ReadChangelog(changelog)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("changelog entries = %d, want 2", len(entries))
	}
}

func TestMigrateMissingSchemaVersion(t *testing.T) {
	_, err := New().Migrate(map[string]any{"colors": map[string]any{}}, "2.0.0", Options{})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("err = %v, want configuration error", err)
	}
}
