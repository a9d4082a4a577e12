package rimage

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestImageToTensor(t *testing.T) {
	img := solidImage(4, 2, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	tt := ImageToTensor(img)
	test.That(t, []int(tt.Shape()), test.ShouldResemble, []int{3, 2, 4})
	data := tt.Data().([]float32)
	test.That(t, data[0], test.ShouldEqual, float32(1))
	test.That(t, data[8], test.ShouldEqual, float32(0))
	test.That(t, data[16], test.ShouldAlmostEqual, 0.2, 1e-6)
}

func TestReadWriteFiles(t *testing.T) {
	dir := t.TempDir()

	rgbPath := filepath.Join(dir, "image_rgb.png")
	data, err := EncodePNG(solidImage(6, 3, Green))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(rgbPath, data, 0o600), test.ShouldBeNil)

	img, err := ReadImageFromFile(rgbPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 6)
	w, h, err := ReadImageSize(rgbPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, 6)
	test.That(t, h, test.ShouldEqual, 3)

	depth := image.NewGray16(image.Rect(0, 0, 3, 2))
	depth.SetGray16(1, 1, color.Gray16{Y: 12345})
	depthPath := filepath.Join(dir, "image_depth.png")
	f, err := os.Create(depthPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, png.Encode(f, depth), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	dm, err := ReadDepthMapFromFile(depthPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 3)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(1, 1), test.ShouldEqual, Depth(12345))
	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, Depth(12345))
	test.That(t, max, test.ShouldEqual, Depth(12345))

	dt := DepthMapToTensor(dm, 10000)
	test.That(t, []int(dt.Shape()), test.ShouldResemble, []int{1, 2, 3})
	test.That(t, dt.Data().([]float32)[4], test.ShouldAlmostEqual, 1.2345, 1e-6)

	_, err = ReadImageFromFile(filepath.Join(dir, "nope.png"))
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot open image")
}

func TestDilateSquare(t *testing.T) {
	m := mat.NewDense(5, 5, nil)
	m.Set(2, 2, 1)
	dilated, err := DilateSquare(m, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Sum(dilated), test.ShouldEqual, 9.)
	test.That(t, dilated.At(1, 1), test.ShouldEqual, 1.)
	test.That(t, dilated.At(0, 0), test.ShouldEqual, 0.)

	_, err = DilateSquare(m, 2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestContour(t *testing.T) {
	rendering := image.NewNRGBA(image.Rect(0, 0, 7, 7))
	for y := 1; y < 6; y++ {
		for x := 1; x < 6; x++ {
			rendering.Set(x, y, White)
		}
	}
	mask := SilhouetteMask(rendering)
	test.That(t, mat.Sum(mask), test.ShouldEqual, 25.)

	edges := MaskEdges(mask)
	test.That(t, mat.Sum(edges), test.ShouldEqual, 16.)
	test.That(t, edges.At(3, 3), test.ShouldEqual, 0.)

	contour, err := ContourMask(rendering, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, contour.At(0, 0), test.ShouldEqual, 1.)
	test.That(t, contour.At(3, 3), test.ShouldEqual, 0.)

	base := solidImage(7, 7, Black)
	painted, err := PaintMask(base, contour, Green)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, painted.NRGBAAt(0, 0), test.ShouldResemble, Green)
	test.That(t, painted.NRGBAAt(3, 3), test.ShouldResemble, Black)

	_, err = PaintMask(solidImage(3, 3, Black), contour, Green)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOverlay(t *testing.T) {
	base := solidImage(2, 1, color.NRGBA{B: 255, A: 255})
	rendering := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	rendering.Set(0, 0, color.NRGBA{R: 255, A: 255})

	out, err := Overlay(base, rendering, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{R: 127, G: 0, B: 127, A: 255})
	test.That(t, out.NRGBAAt(1, 0), test.ShouldResemble, color.NRGBA{B: 255, A: 255})

	_, err = Overlay(base, solidImage(3, 3, Black), 0.5)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Overlay(base, rendering, 2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestColors(t *testing.T) {
	c, err := NewColorFromHex("#00ff00")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c, test.ShouldResemble, Green)
	test.That(t, ColorToHex(Green), test.ShouldEqual, "#00ff00")
	r, g, b := ColorToFloats(White)
	test.That(t, r+g+b, test.ShouldEqual, 3.)

	_, err = NewColorFromHex("green")
	test.That(t, err, test.ShouldNotBeNil)
}
