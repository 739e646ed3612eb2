package diff

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

const sideBySideGutter = 8

// WriteArtifacts renders the three comparison artifacts into dir and
// returns their paths. The name becomes the file prefix.
func WriteArtifacts(res *Result, dir, name string) (models.ArtifactPaths, error) {
	var paths models.ArtifactPaths

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return paths, fmt.Errorf("create artifact dir: %w", err)
	}

	sbs := filepath.Join(dir, name+"-side-by-side.png")
	if err := writePNG(sbs, SideBySide(res.Ref, res.Act)); err != nil {
		return paths, err
	}
	paths.SideBySide = sbs

	ovl := filepath.Join(dir, name+"-overlay.png")
	if err := writePNG(ovl, Overlay(res.Ref, res.Act)); err != nil {
		return paths, err
	}
	paths.Overlay = ovl

	msk := filepath.Join(dir, name+"-diff-mask.png")
	if err := writePNG(msk, MaskImage(res)); err != nil {
		return paths, err
	}
	paths.DiffMask = msk

	return paths, nil
}

// SideBySide places reference and actual next to each other with a thin
// gutter between them.
func SideBySide(ref, act image.Image) image.Image {
	rb, ab := ref.Bounds(), act.Bounds()
	w := rb.Dx() + sideBySideGutter + ab.Dx()
	h := max(rb.Dy(), ab.Dy())

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(out, out.Bounds(), image.NewUniform(color.Gray{Y: 40}), image.Point{}, xdraw.Src)
	xdraw.Draw(out, image.Rect(0, 0, rb.Dx(), rb.Dy()), ref, rb.Min, xdraw.Src)
	off := rb.Dx() + sideBySideGutter
	xdraw.Draw(out, image.Rect(off, 0, off+ab.Dx(), ab.Dy()), act, ab.Min, xdraw.Src)
	return out
}

// Overlay blends the actual screenshot at half opacity over the
// reference so drift shows up as ghosting.
func Overlay(ref, act image.Image) image.Image {
	rb, ab := ref.Bounds(), act.Bounds()
	w := max(rb.Dx(), ab.Dx())
	h := max(rb.Dy(), ab.Dy())

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(out, image.Rect(0, 0, rb.Dx(), rb.Dy()), ref, rb.Min, xdraw.Src)
	half := image.NewUniform(color.Alpha{A: 128})
	xdraw.DrawMask(out, image.Rect(0, 0, ab.Dx(), ab.Dy()), act, ab.Min, half, image.Point{}, xdraw.Over)
	return out
}

// MaskImage renders differing pixels in red on the reference, dimmed so
// the hotspots stand out.
func MaskImage(res *Result) image.Image {
	b := res.Mask.Bounds()
	out := image.NewRGBA(b)

	rb := res.Ref.Bounds()
	xdraw.Draw(out, image.Rect(0, 0, rb.Dx(), rb.Dy()), res.Ref, rb.Min, xdraw.Src)
	// Dim the base image.
	dim := image.NewUniform(color.NRGBA{A: 160})
	xdraw.DrawMask(out, b, image.NewUniform(color.Black), image.Point{}, dim, image.Point{}, xdraw.Over)

	red := image.NewUniform(color.NRGBA{R: 255, A: 255})
	xdraw.DrawMask(out, b, red, image.Point{}, res.Mask, b.Min, xdraw.Over)
	return out
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return nil
}
