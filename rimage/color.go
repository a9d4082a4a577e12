package rimage

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

var (
	// Green is the default contour highlight.
	Green = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	// White is the default ambient light color.
	White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	// Black is the background of renderings.
	Black = color.NRGBA{A: 255}
)

// NewColorFromHex parses "#rrggbb" or "#rgb" into an opaque color.
func NewColorFromHex(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "couldn't parse hex color %q", hex)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// ColorToHex formats any color as "#rrggbb", ignoring alpha.
func ColorToHex(c color.Color) string {
	cc, ok := colorful.MakeColor(c)
	if !ok {
		// fully transparent
		return "#000000"
	}
	return cc.Hex()
}

// ColorToFloats returns the r, g and b channels of c in [0, 1].
func ColorToFloats(c color.Color) (float64, float64, float64) {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	return float64(nc.R) / 255, float64(nc.G) / 255, float64(nc.B) / 255
}
