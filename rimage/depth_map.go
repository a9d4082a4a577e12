package rimage

import (
	"image"
	"image/color"
	"math"
)

// Depth is the raw 16-bit value stored in a depth image.
type Depth uint16

// DepthMap is a raw 16-bit depth image. Convert with a scale to get metric depth.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromImage copies a 16-bit grayscale image into a depth map. Other image types are
// converted through the Gray16 color model.
func NewDepthMapFromImage(img image.Image) *DepthMap {
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	if g16, ok := img.(*image.Gray16); ok {
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, Depth(g16.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return dm
	}
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			c := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			dm.Set(x, y, Depth(c.Y))
		}
	}
	return dm
}

// Width returns the horizontal size.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// GetDepth returns the raw depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set stores the raw depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// MinMax returns the smallest non-zero and the largest raw values.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min, max := Depth(math.MaxUint16), Depth(0)
	for _, v := range dm.data {
		if v == 0 {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// ToGray16 returns the depth map as a 16-bit grayscale image.
func (dm *DepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(dm.GetDepth(x, y))})
		}
	}
	return img
}
