// Package ml provides the tensor and device primitives shared by the estimation pipeline.
package ml

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"
)

// Tensors are a map of tensor names to tensors.
type Tensors map[string]*tensor.Dense

// Names returns the sorted names of the tensors.
func (t Tensors) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bytes returns the total backing size of the tensors.
func (t Tensors) Bytes() int64 {
	var total int64
	for _, tt := range t {
		total += TensorBytes(tt)
	}
	return total
}

// TensorBytes returns the number of bytes backing a dense tensor.
func TensorBytes(t *tensor.Dense) int64 {
	if t == nil {
		return 0
	}
	return int64(t.Shape().TotalSize()) * int64(t.Dtype().Size())
}

// CheckShape returns an error when t does not have exactly the expected shape. Negative
// expected dimensions match any size.
func CheckShape(name string, t *tensor.Dense, expected ...int) error {
	shape := t.Shape()
	if len(shape) != len(expected) {
		return errors.Errorf("tensor %q has shape %v, expected %d dimensions", name, shape, len(expected))
	}
	for i, dim := range expected {
		if dim >= 0 && shape[i] != dim {
			return errors.Errorf("tensor %q has shape %v, expected %v", name, shape, expected)
		}
	}
	return nil
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

// ConvertToFloat64Slice converts the backing data of a tensor into a []float64.
func ConvertToFloat64Slice(slice interface{}) ([]float64, error) {
	switch v := slice.(type) {
	case []float64:
		return v, nil
	case float64:
		return []float64{v}, nil
	case []float32:
		return convertNumberSlice[float32, float64](v), nil
	case float32:
		return []float64{float64(v)}, nil
	case []int:
		return convertNumberSlice[int, float64](v), nil
	case []int32:
		return convertNumberSlice[int32, float64](v), nil
	case []int64:
		return convertNumberSlice[int64, float64](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float64](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float64](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float64", slice)
	}
}

// ChannelMeans returns the mean of every channel of a [C, H, W] tensor.
func ChannelMeans(t *tensor.Dense) ([]float64, error) {
	if err := CheckShape("image", t, -1, -1, -1); err != nil {
		return nil, err
	}
	data, err := ConvertToFloat64Slice(t.Data())
	if err != nil {
		return nil, err
	}
	shape := t.Shape()
	plane := shape[1] * shape[2]
	means := make([]float64, shape[0])
	if plane == 0 {
		return means, nil
	}
	for c := range means {
		var sum float64
		for _, v := range data[c*plane : (c+1)*plane] {
			sum += v
		}
		means[c] = sum / float64(plane)
	}
	return means, nil
}

// Softmax takes the input slice and applies the softmax function.
func Softmax(in []float64) []float64 {
	out := make([]float64, 0, len(in))
	if len(in) == 0 {
		return out
	}
	// shift by the max for numerical stability
	maxV := in[0]
	for _, x := range in {
		maxV = math.Max(maxV, x)
	}
	bigSum := 0.0
	for _, x := range in {
		bigSum += math.Exp(x - maxV)
	}
	for _, x := range in {
		out = append(out, math.Exp(x-maxV)/bigSum)
	}
	return out
}
