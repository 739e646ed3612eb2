package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/DaveSmith227/vizspec/internal/vision"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

// fakeAnalyzer scripts per-token-type responses and counts calls.
type fakeAnalyzer struct {
	calls     atomic.Int64
	responses map[models.TokenType][]byte
	errs      map[models.TokenType]error
}

func (f *fakeAnalyzer) LoadImage(imagePath string) (vision.ImageInput, error) {
	return vision.ImageInput{Path: imagePath, Data: []byte("png-bytes-" + imagePath), MediaType: "image/png"}, nil
}

func (f *fakeAnalyzer) AnalyzeImage(_ context.Context, _ vision.ImageInput, tokenType models.TokenType) ([]byte, error) {
	f.calls.Add(1)
	if err, ok := f.errs[tokenType]; ok {
		return nil, err
	}
	if resp, ok := f.responses[tokenType]; ok {
		return resp, nil
	}
	return []byte(`{}`), nil
}

func (f *fakeAnalyzer) ProviderName() string { return "fake" }

// memStore is an in-memory Store.
type memStore struct {
	entries map[string][]byte
}

func newMemStore() *memStore { return &memStore{entries: map[string][]byte{}} }

func (m *memStore) Get(key string) ([]byte, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *memStore) Put(key string, payload []byte, _ string) error {
	m.entries[key] = payload
	return nil
}

func defaultResponses() map[models.TokenType][]byte {
	return map[models.TokenType][]byte{
		models.TokenColors:     []byte(`{"primary": {"brand": "#58CC02"}, "text": {"body": "#3C3C3C"}}`),
		models.TokenTypography: []byte(`{"font_family": "Nunito", "font_sizes": {"base": 16, "lg": 20}}`),
		models.TokenSpacing:    []byte(`{"values": {"1": 4, "2": 8}}`),
		models.TokenRadii:      []byte(`{"values": {"md": 8}}`),
		models.TokenShadows:    []byte(`[{"name": "card", "type": "drop", "y": 2, "blur": 8, "color": "#00000033"}]`),
	}
}

func TestExtractAssemblesDocument(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: defaultResponses()}
	ex := New(analyzer, nil)

	doc, err := ex.Extract(context.Background(), "home.png", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if doc.SchemaVersion != models.CurrentSchemaVersion {
		t.Errorf("SchemaVersion = %q", doc.SchemaVersion)
	}
	if doc.SourceImageHash == "" {
		t.Error("SourceImageHash should be set")
	}
	if doc.Colors == nil || doc.Colors.Primary["brand"] != "#58CC02" {
		t.Errorf("Colors = %+v", doc.Colors)
	}
	if doc.Typography == nil || doc.Typography.FontFamily != "Nunito" {
		t.Errorf("Typography = %+v", doc.Typography)
	}
	if doc.Spacing == nil || doc.Spacing.Values["2"] != 8 {
		t.Errorf("Spacing = %+v", doc.Spacing)
	}
	if len(doc.Shadows) != 1 || doc.Shadows[0].Name != "card" {
		t.Errorf("Shadows = %+v", doc.Shadows)
	}
	if analyzer.calls.Load() != 5 {
		t.Errorf("provider calls = %d, want 5", analyzer.calls.Load())
	}
}

func TestExtractWarmCacheIdempotent(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: defaultResponses()}
	store := newMemStore()
	ex := New(analyzer, store)

	first, err := ex.Extract(context.Background(), "home.png", nil)
	if err != nil {
		t.Fatal(err)
	}
	coldCalls := analyzer.calls.Load()

	second, err := ex.Extract(context.Background(), "home.png", nil)
	if err != nil {
		t.Fatal(err)
	}

	if analyzer.calls.Load() != coldCalls {
		t.Errorf("warm run made %d extra provider calls", analyzer.calls.Load()-coldCalls)
	}

	firstJSON, _ := marshal(first)
	secondJSON, _ := marshal(second)
	if !bytes.Equal(firstJSON, secondJSON) {
		t.Error("warm-cache document should be byte-identical to the first run")
	}
}

func TestExtractRequiredFailureFailsLoud(t *testing.T) {
	analyzer := &fakeAnalyzer{
		responses: defaultResponses(),
		errs: map[models.TokenType]error{
			models.TokenColors: fmt.Errorf("%w: 500", models.ErrProviderError),
		},
	}
	ex := New(analyzer, nil)

	_, err := ex.Extract(context.Background(), "home.png", nil)
	if !errors.Is(err, models.ErrExtraction) {
		t.Fatalf("want ErrExtraction, got %v", err)
	}
	if !errors.Is(err, models.ErrProviderError) {
		t.Error("underlying provider error should stay wrapped")
	}
}

func TestExtractOptionalFailureRecordedAbsent(t *testing.T) {
	analyzer := &fakeAnalyzer{
		responses: defaultResponses(),
		errs: map[models.TokenType]error{
			models.TokenShadows: fmt.Errorf("%w: flaky", models.ErrProviderTimeout),
		},
	}
	ex := New(analyzer, nil)

	doc, err := ex.Extract(context.Background(), "home.png", nil)
	if err != nil {
		t.Fatalf("optional failure must not fail the extraction: %v", err)
	}
	if doc.Shadows != nil {
		t.Error("failed optional type should be absent, not defaulted")
	}
	if doc.Colors == nil {
		t.Error("other types should still be present")
	}
}

func TestExtractSubsetOfTypes(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: defaultResponses()}
	ex := New(analyzer, nil)

	doc, err := ex.Extract(context.Background(), "home.png", []models.TokenType{models.TokenColors, models.TokenTypography})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Colors == nil || doc.Typography == nil {
		t.Error("requested types should be present")
	}
	if doc.Spacing != nil || doc.Radii != nil || doc.Shadows != nil {
		t.Error("unrequested types should be absent")
	}
	if analyzer.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", analyzer.calls.Load())
	}
}

func TestExtractUnknownTypeRejected(t *testing.T) {
	ex := New(&fakeAnalyzer{}, nil)
	_, err := ex.Extract(context.Background(), "home.png", []models.TokenType{"gradients"})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("want ErrConfiguration, got %v", err)
	}
}

func TestDifferentImagesGetDifferentCacheKeys(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: defaultResponses()}
	store := newMemStore()
	ex := New(analyzer, store)

	if _, err := ex.Extract(context.Background(), "home.png", []models.TokenType{models.TokenColors}); err != nil {
		t.Fatal(err)
	}
	calls := analyzer.calls.Load()

	if _, err := ex.Extract(context.Background(), "lesson.png", []models.TokenType{models.TokenColors}); err != nil {
		t.Fatal(err)
	}
	if analyzer.calls.Load() == calls {
		t.Error("a different image must not hit the first image's cache entry")
	}
}

func marshal(doc *models.TokenDocument) ([]byte, error) {
	return json.Marshal(doc)
}
