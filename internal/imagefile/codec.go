// Package imagefile resolves reference image paths and validates images
// against vision provider limits before any network call is made.
package imagefile

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

// DefaultMaxDimension is the largest width or height accepted by the
// configured vision providers.
const DefaultMaxDimension = 8000

// Codec resolves image paths and inspects image files. Resolution tries
// an ordered list of candidates and stops at the first hit: the path as
// given, then relative to BaseDir, then relative to ProjectRoot.
type Codec struct {
	// BaseDir is the configured reference image directory. May be empty.
	BaseDir string
	// ProjectRoot is the repository root fallback. May be empty.
	ProjectRoot string
}

// New creates a Codec with the given base directory and project root.
func New(baseDir, projectRoot string) *Codec {
	return &Codec{BaseDir: baseDir, ProjectRoot: projectRoot}
}

// Resolve returns the absolute path of the first candidate that exists
// as a regular file. Fails with models.ErrImageNotFound when no
// candidate exists.
func (c *Codec) Resolve(path string) (string, error) {
	for _, candidate := range c.candidates(path) {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, nil
	}
	return "", fmt.Errorf("%w: %s (tried as-given, base dir, project root)", models.ErrImageNotFound, path)
}

func (c *Codec) candidates(path string) []string {
	out := []string{path}
	if !filepath.IsAbs(path) {
		if c.BaseDir != "" {
			out = append(out, filepath.Join(c.BaseDir, path))
		}
		if c.ProjectRoot != "" {
			out = append(out, filepath.Join(c.ProjectRoot, path))
		}
	}
	return out
}

// Magic numbers for the image formats the providers accept.
var signatures = []struct {
	prefix []byte
	mime   string
}{
	{[]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, "image/png"},
	{[]byte{0xff, 0xd8, 0xff}, "image/jpeg"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
}

// DetectMediaType returns the MIME type of the file at path. The file
// signature is authoritative; the extension is only a fallback for
// formats whose magic is not checked (webp).
func (c *Codec) DetectMediaType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", models.ErrImageNotFound, path)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, _ := f.Read(header)
	header = header[:n]

	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.prefix) {
			return sig.mime, nil
		}
	}
	// RIFF....WEBP
	if len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")) {
		return "image/webp", nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".gif":
		return "image/gif", nil
	case ".webp":
		return "image/webp", nil
	}
	return "", fmt.Errorf("unsupported image format: %s", path)
}

// ValidateDimensions fails with models.ErrImageTooLarge when either
// dimension of the image exceeds maxDim. Only the header is decoded.
func (c *Codec) ValidateDimensions(path string, maxDim int) error {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrImageNotFound, path)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("decode image config %s: %w", path, err)
	}

	if cfg.Width > maxDim || cfg.Height > maxDim {
		return fmt.Errorf("%w: %dx%d exceeds %dpx", models.ErrImageTooLarge, cfg.Width, cfg.Height, maxDim)
	}
	return nil
}
