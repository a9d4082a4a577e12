package rimage

import (
	"bytes"
	"image"
	// register decoders.
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/pkg/errors"
)

// ReadImageFromFile decodes a PNG or JPEG image from disk.
func ReadImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open image %q", path)
	}
	defer f.Close() //nolint:errcheck

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode image %q", path)
	}
	return img, nil
}

// ReadImageSize reads only the header of an image file and returns its width and height.
func ReadImageSize(path string) (int, int, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "cannot open image %q", path)
	}
	defer f.Close() //nolint:errcheck

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "cannot decode image header %q", path)
	}
	return cfg.Width, cfg.Height, nil
}

// ReadDepthMapFromFile reads a 16-bit single channel PNG into a DepthMap.
func ReadDepthMapFromFile(path string) (*DepthMap, error) {
	img, err := ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return NewDepthMapFromImage(img), nil
}

// EncodePNG encodes img as PNG in memory.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "cannot encode png")
	}
	return buf.Bytes(), nil
}

// SameImgSize compares images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Dx() == g2.Bounds().Dx() && g1.Bounds().Dy() == g2.Bounds().Dy()
}
