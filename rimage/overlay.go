package rimage

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Overlay alpha blends the covered pixels of a rendering over base. Uncovered rendering pixels
// (see SilhouetteMask) leave base untouched.
func Overlay(base, rendering image.Image, alpha float64) (*image.NRGBA, error) {
	if !SameImgSize(base, rendering) {
		return nil, errors.Errorf("rendering dimension and image don't match Rendering(%d,%d) != Image(%d,%d)",
			rendering.Bounds().Dx(), rendering.Bounds().Dy(), base.Bounds().Dx(), base.Bounds().Dy())
	}
	if alpha < 0 || alpha > 1 {
		return nil, errors.Errorf("overlay alpha must be within [0, 1], got %v", alpha)
	}
	mask := SilhouetteMask(rendering)
	top := imaging.Clone(rendering)
	bounds := top.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if mask.At(y, x) == 0 {
				top.SetNRGBA(x, y, color.NRGBA{})
				continue
			}
			c := top.NRGBAAt(x, y)
			c.A = 255
			top.SetNRGBA(x, y, c)
		}
	}
	return imaging.Overlay(imaging.Clone(base), top, image.Pt(0, 0), alpha), nil
}
