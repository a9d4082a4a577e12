package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DilateSquare takes in a matrix and returns a dilated version with a k x k square kernel.
// Each output pixel is the maximum of its neighborhood; pixels outside the matrix are ignored.
func DilateSquare(m *mat.Dense, k int) (*mat.Dense, error) {
	if k < 1 || k%2 == 0 {
		return nil, errors.Errorf("kernel size must be a positive odd number, got %d", k)
	}
	half := k / 2
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			best := m.At(r, c)
			for dr := -half; dr <= half; dr++ {
				for dc := -half; dc <= half; dc++ {
					rr, cc := r+dr, c+dc
					if rr < 0 || cc < 0 || rr >= rows || cc >= cols {
						continue
					}
					if v := m.At(rr, cc); v > best {
						best = v
					}
				}
			}
			out.Set(r, c, best)
		}
	}
	return out, nil
}

// SilhouetteMask returns a rows x cols matrix holding 1 where a rendering covers the pixel.
// A pixel is covered when it is not transparent and not pure black.
func SilhouetteMask(img image.Image) *mat.Dense {
	bounds := img.Bounds()
	mask := mat.NewDense(bounds.Dy(), bounds.Dx(), nil)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if a != 0 && r|g|b != 0 {
				mask.Set(y, x, 1)
			}
		}
	}
	return mask
}

// MaskEdges returns the inner boundary of a binary mask: set pixels with at least one
// 4-neighbor that is unset or outside the mask.
func MaskEdges(mask *mat.Dense) *mat.Dense {
	rows, cols := mask.Dims()
	edges := mat.NewDense(rows, cols, nil)
	set := func(r, c int) bool {
		return r >= 0 && c >= 0 && r < rows && c < cols && mask.At(r, c) > 0
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !set(r, c) {
				continue
			}
			if !set(r-1, c) || !set(r+1, c) || !set(r, c-1) || !set(r, c+1) {
				edges.Set(r, c, 1)
			}
		}
	}
	return edges
}

// ContourMask computes the silhouette edges of a rendering, dilated iterations times with a 3x3 kernel.
func ContourMask(rendering image.Image, iterations int) (*mat.Dense, error) {
	contour := MaskEdges(SilhouetteMask(rendering))
	for i := 0; i < iterations; i++ {
		var err error
		contour, err = DilateSquare(contour, 3)
		if err != nil {
			return nil, err
		}
	}
	return contour, nil
}

// PaintMask returns a copy of img with every pixel under mask replaced by c.
func PaintMask(img image.Image, mask *mat.Dense, c color.Color) (*image.NRGBA, error) {
	bounds := img.Bounds()
	rows, cols := mask.Dims()
	if rows != bounds.Dy() || cols != bounds.Dx() {
		return nil, errors.Errorf("mask dimension and image don't match Mask(%d,%d) != Image(%d,%d)",
			cols, rows, bounds.Dx(), bounds.Dy())
	}
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if mask.At(y, x) > 0 {
				out.SetNRGBA(x, y, nc)
				continue
			}
			out.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return out, nil
}
