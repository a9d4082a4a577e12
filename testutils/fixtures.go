package testutils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

// CameraFile is the camera file name used by example fixtures.
const CameraFile = "camera_data.json"

// CubePLY returns an ascii PLY cube with the given edge length centered on the origin.
func CubePLY(size float64) string {
	h := size / 2
	var b strings.Builder
	b.WriteString("ply\nformat ascii 1.0\nelement vertex 8\nproperty float x\nproperty float y\nproperty float z\n")
	b.WriteString("element face 6\nproperty list uchar int vertex_indices\nend_header\n")
	for _, v := range [][3]float64{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	} {
		fmt.Fprintf(&b, "%g %g %g\n", v[0], v[1], v[2])
	}
	b.WriteString("4 0 1 2 3\n4 4 5 6 7\n4 0 1 5 4\n4 1 2 6 5\n4 2 3 7 6\n4 3 0 4 7\n")
	return b.String()
}

// CubeOBJ returns a wavefront OBJ cube with the given edge length centered on the origin.
func CubeOBJ(size float64) string {
	h := size / 2
	var b strings.Builder
	for _, v := range [][3]float64{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	} {
		fmt.Fprintf(&b, "v %g %g %g\n", v[0], v[1], v[2])
	}
	b.WriteString("f 1 2 3 4\nf 5 6 7 8\nf 1 2 6 5\nf 2 3 7 6\nf 3 4 8 7\nf 4 1 5 8\n")
	return b.String()
}

// WriteGenericCatalog writes root/{label}/{label}.ply for each label, each a 0.1m cube.
func WriteGenericCatalog(t *testing.T, root string, labels ...string) {
	t.Helper()
	for _, label := range labels {
		WriteFile(t, filepath.Join(root, label, label+".ply"), []byte(CubePLY(0.1)))
	}
}

// WriteYCBCatalog writes n millimeter cubes named root/models/obj_{i:06d}.ply.
func WriteYCBCatalog(t *testing.T, root string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		WriteFile(t, filepath.Join(root, "models", fmt.Sprintf("obj_%06d.ply", i)), []byte(CubePLY(100)))
	}
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// WritePNG encodes img to path.
func WritePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, img), test.ShouldBeNil)
	WriteFile(t, path, buf.Bytes())
}

// WriteRenderViews writes views pairs of rgb_{i:03d}.png and normal_{i:03d}.png under root/label.
// View i is filled with a gray level that increases with i.
func WriteRenderViews(t *testing.T, root, label string, views, w, h int) {
	t.Helper()
	for i := 0; i < views; i++ {
		level := uint8(40 * (i + 1) % 256)
		WritePNG(t, filepath.Join(root, label, fmt.Sprintf("rgb_%03d.png", i)), SolidImage(w, h, color.NRGBA{R: level, G: level, B: level, A: 255}))
		WritePNG(t, filepath.Join(root, label, fmt.Sprintf("normal_%03d.png", i)), SolidImage(w, h, color.NRGBA{R: 128, G: 128, B: 255, A: 255}))
	}
}

// CameraJSON returns camera data JSON with focal length f and the principal point at the center.
func CameraJSON(w, h int, f float64) string {
	return fmt.Sprintf(`{"K": [[%g, 0, %g], [0, %g, %g], [0, 0, 1]], "resolution": [%d, %d]}`,
		f, float64(w)/2, f, float64(h)/2, h, w)
}

// Example describes a per-example directory fixture.
type Example struct {
	// Image size written to image_rgb.png.
	Width, Height int
	// Camera resolution written to the camera file; defaults to the image size.
	CameraWidth, CameraHeight int
	// Raw 16-bit depth value for every pixel; zero skips image_depth.png.
	Depth uint16
	// Inputs is written verbatim to inputs/object_data.json when not empty.
	Inputs string
}

// WriteExample writes an example directory with a camera file, an RGB image, an optional depth
// image and optional input annotations.
func WriteExample(t *testing.T, dir string, ex Example) {
	t.Helper()
	cw, ch := ex.CameraWidth, ex.CameraHeight
	if cw == 0 && ch == 0 {
		cw, ch = ex.Width, ex.Height
	}
	WriteFile(t, filepath.Join(dir, CameraFile), []byte(CameraJSON(cw, ch, float64(cw))))

	rgb := image.NewNRGBA(image.Rect(0, 0, ex.Width, ex.Height))
	for y := 0; y < ex.Height; y++ {
		for x := 0; x < ex.Width; x++ {
			rgb.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	WritePNG(t, filepath.Join(dir, "image_rgb.png"), rgb)

	if ex.Depth != 0 {
		depth := image.NewGray16(image.Rect(0, 0, ex.Width, ex.Height))
		for y := 0; y < ex.Height; y++ {
			for x := 0; x < ex.Width; x++ {
				depth.SetGray16(x, y, color.Gray16{Y: ex.Depth})
			}
		}
		WritePNG(t, filepath.Join(dir, "image_depth.png"), depth)
	}
	if ex.Inputs != "" {
		WriteFile(t, filepath.Join(dir, "inputs", "object_data.json"), []byte(ex.Inputs))
	}
}
