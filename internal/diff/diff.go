// Package diff compares reference and actual screenshots pixel by pixel
// using a perceptual color distance, and renders the comparison artifacts
// reviewers use to triage failures.
package diff

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"runtime"
	"sync"

	_ "image/jpeg"
	_ "image/png"
)

// DefaultPixelTolerance is the normalized perceptual distance below which
// two pixels are considered the same. Tuned to absorb sub-pixel
// anti-aliasing noise without masking real color shifts.
const DefaultPixelTolerance = 0.04

// Result carries the raw comparison numbers. The caller applies the
// pass/fail threshold.
type Result struct {
	DiffPixels  int
	TotalPixels int
	// Similarity is 1 - DiffPixels/TotalPixels, in [0, 1].
	Similarity float64
	// Mask marks differing pixels. Same bounds as the comparison area.
	Mask *image.Alpha
	Ref  image.Image
	Act  image.Image
}

// Engine compares image pairs. Zero value is not usable; use NewEngine.
type Engine struct {
	pixelTolerance float64
	workers        int
}

func NewEngine() *Engine {
	return &Engine{
		pixelTolerance: DefaultPixelTolerance,
		workers:        runtime.NumCPU(),
	}
}

// Compare decodes both images and counts perceptually differing pixels.
// When dimensions differ the comparison covers the union of both areas
// and every pixel outside either image counts as a difference.
func (e *Engine) Compare(refData, actData []byte) (*Result, error) {
	ref, _, err := image.Decode(bytes.NewReader(refData))
	if err != nil {
		return nil, fmt.Errorf("decode reference image: %w", err)
	}
	act, _, err := image.Decode(bytes.NewReader(actData))
	if err != nil {
		return nil, fmt.Errorf("decode actual image: %w", err)
	}
	return e.CompareImages(ref, act), nil
}

// CompareImages is Compare for already-decoded images.
func (e *Engine) CompareImages(ref, act image.Image) *Result {
	rb, ab := ref.Bounds(), act.Bounds()
	width := max(rb.Dx(), ab.Dx())
	height := max(rb.Dy(), ab.Dy())

	refRGBA := toRGBA(ref)
	actRGBA := toRGBA(act)
	mask := image.NewAlpha(image.Rect(0, 0, width, height))

	workers := e.workers
	if workers < 1 {
		workers = 1
	}
	rowsPer := (height + workers - 1) / workers

	counts := make([]int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		y0 := w * rowsPer
		y1 := min(y0+rowsPer, height)
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(slot, y0, y1 int) {
			defer wg.Done()
			counts[slot] = e.compareRows(refRGBA, actRGBA, mask, y0, y1, width)
		}(w, y0, y1)
	}
	wg.Wait()

	diff := 0
	for _, c := range counts {
		diff += c
	}
	total := width * height
	similarity := 1.0
	if total > 0 {
		similarity = 1 - float64(diff)/float64(total)
	}

	return &Result{
		DiffPixels:  diff,
		TotalPixels: total,
		Similarity:  similarity,
		Mask:        mask,
		Ref:         refRGBA,
		Act:         actRGBA,
	}
}

func (e *Engine) compareRows(ref, act *image.RGBA, mask *image.Alpha, y0, y1, width int) int {
	diff := 0
	rb, ab := ref.Bounds(), act.Bounds()
	for y := y0; y < y1; y++ {
		for x := 0; x < width; x++ {
			inRef := x < rb.Dx() && y < rb.Dy()
			inAct := x < ab.Dx() && y < ab.Dy()
			if !inRef || !inAct {
				diff++
				mask.SetAlpha(x, y, color.Alpha{A: 255})
				continue
			}
			rp := ref.RGBAAt(rb.Min.X+x, rb.Min.Y+y)
			ap := act.RGBAAt(ab.Min.X+x, ab.Min.Y+y)
			if pixelDistance(rp, ap) > e.pixelTolerance {
				diff++
				mask.SetAlpha(x, y, color.Alpha{A: 255})
			}
		}
	}
	return diff
}

// pixelDistance is the redmean-weighted color distance normalized to
// [0, 1]. Redmean approximates human sensitivity better than plain
// Euclidean RGB without a full colorspace conversion.
func pixelDistance(a, b color.RGBA) float64 {
	rMean := (float64(a.R) + float64(b.R)) / 2
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)

	d := math.Sqrt((2+rMean/256)*dr*dr + 4*dg*dg + (2+(255-rMean)/256)*db*db)
	// Maximum redmean distance, black vs white.
	const maxDist = 764.834
	return d / maxDist
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
