package diff

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompareIdentical(t *testing.T) {
	data := solidPNG(t, 100, 100, color.RGBA{R: 88, G: 204, B: 2, A: 255})
	res, err := NewEngine().Compare(data, data)
	if err != nil {
		t.Fatal(err)
	}
	if res.DiffPixels != 0 {
		t.Errorf("identical images: DiffPixels = %d, want 0", res.DiffPixels)
	}
	if res.Similarity != 1.0 {
		t.Errorf("identical images: Similarity = %v, want 1.0", res.Similarity)
	}
	if res.TotalPixels != 10000 {
		t.Errorf("TotalPixels = %d, want 10000", res.TotalPixels)
	}
}

func TestCompareFullyDifferent(t *testing.T) {
	black := solidPNG(t, 10, 10, color.RGBA{A: 255})
	white := solidPNG(t, 10, 10, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	res, err := NewEngine().Compare(black, white)
	if err != nil {
		t.Fatal(err)
	}
	if res.DiffPixels != 100 {
		t.Errorf("black vs white: DiffPixels = %d, want 100", res.DiffPixels)
	}
	if res.Similarity != 0 {
		t.Errorf("black vs white: Similarity = %v, want 0", res.Similarity)
	}
}

func TestCompareSubtleShiftWithinTolerance(t *testing.T) {
	a := solidPNG(t, 10, 10, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	b := solidPNG(t, 10, 10, color.RGBA{R: 130, G: 129, B: 128, A: 255})
	res, err := NewEngine().Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.DiffPixels != 0 {
		t.Errorf("anti-aliasing level shift should be tolerated, got %d diff pixels", res.DiffPixels)
	}
}

func TestComparePartialRegion(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			base.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	changed := image.NewRGBA(image.Rect(0, 0, 20, 20))
	copy(changed.Pix, base.Pix)
	// Repaint a 5x5 corner.
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			changed.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	res := NewEngine().CompareImages(base, changed)
	if res.DiffPixels != 25 {
		t.Errorf("DiffPixels = %d, want 25", res.DiffPixels)
	}
	want := 1 - 25.0/400.0
	if res.Similarity != want {
		t.Errorf("Similarity = %v, want %v", res.Similarity, want)
	}
	// The mask must mark exactly the repainted corner.
	if res.Mask.AlphaAt(2, 2).A == 0 {
		t.Error("mask should mark changed pixel (2,2)")
	}
	if res.Mask.AlphaAt(10, 10).A != 0 {
		t.Error("mask should not mark unchanged pixel (10,10)")
	}
}

func TestCompareDimensionMismatch(t *testing.T) {
	small := solidPNG(t, 10, 10, color.RGBA{R: 50, G: 50, B: 50, A: 255})
	wide := solidPNG(t, 15, 10, color.RGBA{R: 50, G: 50, B: 50, A: 255})
	res, err := NewEngine().Compare(small, wide)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalPixels != 150 {
		t.Errorf("TotalPixels = %d, want union 150", res.TotalPixels)
	}
	// The 5x10 strip only present in the wider image counts as diff.
	if res.DiffPixels != 50 {
		t.Errorf("DiffPixels = %d, want 50", res.DiffPixels)
	}
}

func TestWriteArtifacts(t *testing.T) {
	a := solidPNG(t, 12, 8, color.RGBA{R: 10, G: 200, B: 10, A: 255})
	b := solidPNG(t, 12, 8, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	res, err := NewEngine().Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	paths, err := WriteArtifacts(res, filepath.Join(dir, "nested"), "homepage-1280x720")
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{paths.SideBySide, paths.Overlay, paths.DiffMask} {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("artifact missing: %v", err)
		}
		if _, err := png.Decode(f); err != nil {
			t.Errorf("artifact %s is not valid PNG: %v", filepath.Base(p), err)
		}
		f.Close()
	}

	sbs := SideBySide(res.Ref, res.Act)
	if got := sbs.Bounds().Dx(); got != 12+sideBySideGutter+12 {
		t.Errorf("side-by-side width = %d", got)
	}
}

func TestCompareRejectsGarbage(t *testing.T) {
	good := solidPNG(t, 4, 4, color.White)
	if _, err := NewEngine().Compare([]byte("not a png"), good); err == nil {
		t.Error("garbage reference should fail to decode")
	}
	if _, err := NewEngine().Compare(good, []byte{0x89, 0x50}); err == nil {
		t.Error("truncated actual should fail to decode")
	}
}
