// Package extract drives the vision orchestrator per token category and
// assembles the fragments into a versioned token document.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/DaveSmith227/vizspec/internal/cache"
	"github.com/DaveSmith227/vizspec/internal/vision"
	"github.com/DaveSmith227/vizspec/pkg/models"
)

// Analyzer is the slice of the vision orchestrator the extractor needs.
type Analyzer interface {
	LoadImage(imagePath string) (vision.ImageInput, error)
	AnalyzeImage(ctx context.Context, img vision.ImageInput, tokenType models.TokenType) ([]byte, error)
	ProviderName() string
}

// Store is the slice of the content cache the extractor needs.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, payload []byte, operation string) error
}

// Extractor extracts design tokens from reference screenshots. Results
// are memoized twice: per-fragment (one provider call per token type)
// and per-document, so re-running on an unchanged image with a warm
// cache returns a byte-identical document with zero provider calls.
type Extractor struct {
	analyzer Analyzer
	store    Store // nil disables caching
}

// New creates an Extractor. A nil store disables caching; results are
// identical, only latency changes.
func New(analyzer Analyzer, store Store) *Extractor {
	return &Extractor{analyzer: analyzer, store: store}
}

// Extract derives the requested token types from the image and returns
// the assembled document. A required type failing fails the whole
// extraction with ErrExtraction wrapping the cause; optional types are
// recorded as absent, never defaulted.
func (e *Extractor) Extract(ctx context.Context, imagePath string, tokenTypes []models.TokenType) (*models.TokenDocument, error) {
	if len(tokenTypes) == 0 {
		tokenTypes = models.AllTokenTypes()
	}
	for _, t := range tokenTypes {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown token type %q", models.ErrConfiguration, t)
		}
	}

	img, err := e.analyzer.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	imageHash := cache.HashBytes(img.Data)

	docKey := e.documentKey(img.Data, tokenTypes)
	if e.store != nil {
		if payload, ok := e.store.Get(docKey); ok {
			doc := &models.TokenDocument{}
			if err := json.Unmarshal(payload, doc); err == nil {
				return doc, nil
			}
			// Unparseable cached document reads as a miss.
		}
	}

	doc := &models.TokenDocument{
		SchemaVersion:   models.CurrentSchemaVersion,
		ExtractedAt:     time.Now().UTC(),
		SourceImageHash: imageHash,
	}

	for _, tokenType := range tokenTypes {
		fragment, err := e.fragment(ctx, img, tokenType)
		if err != nil {
			if tokenType.Required() {
				return nil, fmt.Errorf("%w: %s: %w", models.ErrExtraction, tokenType, err)
			}
			log.Printf("[extract] optional %s extraction failed, recording as absent: %v", tokenType, err)
			continue
		}
		if err := mergeFragment(doc, tokenType, fragment); err != nil {
			if tokenType.Required() {
				return nil, fmt.Errorf("%w: %s: %w", models.ErrExtraction, tokenType, err)
			}
			log.Printf("[extract] optional %s fragment unparseable, recording as absent: %v", tokenType, err)
		}
	}

	if e.store != nil {
		if payload, err := json.Marshal(doc); err == nil {
			if err := e.store.Put(docKey, payload, "extract-doc"); err != nil {
				log.Printf("[extract] cache document: %v", err)
			}
		}
	}
	return doc, nil
}

// fragment returns the provider response for one token type, from
// cache when possible.
func (e *Extractor) fragment(ctx context.Context, img vision.ImageInput, tokenType models.TokenType) ([]byte, error) {
	key := cache.ComputeKey(img.Data, "extract", map[string]string{
		"type":     string(tokenType),
		"provider": e.analyzer.ProviderName(),
		"schema":   models.CurrentSchemaVersion,
	})

	if e.store != nil {
		if payload, ok := e.store.Get(key); ok {
			return payload, nil
		}
	}

	payload, err := e.analyzer.AnalyzeImage(ctx, img, tokenType)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.Put(key, payload, "extract"); err != nil {
			log.Printf("[extract] cache fragment %s: %v", tokenType, err)
		}
	}
	return payload, nil
}

func (e *Extractor) documentKey(imageData []byte, tokenTypes []models.TokenType) string {
	names := make([]string, len(tokenTypes))
	for i, t := range tokenTypes {
		names[i] = string(t)
	}
	sort.Strings(names)
	return cache.ComputeKey(imageData, "extract-doc", map[string]string{
		"types":    strings.Join(names, ","),
		"provider": e.analyzer.ProviderName(),
		"schema":   models.CurrentSchemaVersion,
	})
}

// mergeFragment parses a provider fragment into the matching document
// section.
func mergeFragment(doc *models.TokenDocument, tokenType models.TokenType, fragment []byte) error {
	switch tokenType {
	case models.TokenColors:
		colors := &models.ColorTokens{}
		if err := json.Unmarshal(fragment, colors); err != nil {
			return fmt.Errorf("parse colors fragment: %w", err)
		}
		doc.Colors = colors
	case models.TokenTypography:
		typography := &models.TypographyTokens{}
		if err := json.Unmarshal(fragment, typography); err != nil {
			return fmt.Errorf("parse typography fragment: %w", err)
		}
		doc.Typography = typography
	case models.TokenSpacing:
		spacing := &models.SpacingTokens{}
		if err := json.Unmarshal(fragment, spacing); err != nil {
			return fmt.Errorf("parse spacing fragment: %w", err)
		}
		doc.Spacing = spacing
	case models.TokenRadii:
		radii := &models.RadiusTokens{}
		if err := json.Unmarshal(fragment, radii); err != nil {
			return fmt.Errorf("parse radii fragment: %w", err)
		}
		doc.Radii = radii
	case models.TokenShadows:
		var shadows []models.ShadowToken
		if err := json.Unmarshal(fragment, &shadows); err != nil {
			return fmt.Errorf("parse shadows fragment: %w", err)
		}
		doc.Shadows = shadows
	default:
		return fmt.Errorf("unknown token type %q", tokenType)
	}
	return nil
}
