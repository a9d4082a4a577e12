package rimage

import (
	"image"
	"image/color"

	"gorgonia.org/tensor"
)

// ImageToTensor converts an image into a [3, H, W] float32 tensor with values in [0, 1].
func ImageToTensor(img image.Image) *tensor.Dense {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			k := y*w + x
			data[k] = float32(c.R) / 255
			data[plane+k] = float32(c.G) / 255
			data[2*plane+k] = float32(c.B) / 255
		}
	}
	return tensor.New(tensor.WithShape(3, h, w), tensor.WithBacking(data))
}

// DepthMapToTensor converts raw depth into a [1, H, W] float32 tensor of raw / scale.
func DepthMapToTensor(dm *DepthMap, scale float64) *tensor.Dense {
	data := make([]float32, len(dm.data))
	for i, v := range dm.data {
		data[i] = float32(float64(v) / scale)
	}
	return tensor.New(tensor.WithShape(1, dm.height, dm.width), tensor.WithBacking(data))
}
