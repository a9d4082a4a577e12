package ml

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gorgonia.org/tensor"
)

func TestDevices(t *testing.T) {
	d, err := ParseDevice("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, CPU)
	test.That(t, d.IsHost(), test.ShouldBeTrue)

	d, err = ParseDevice("cuda:1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.IsHost(), test.ShouldBeFalse)

	_, err = ParseDevice("gpu0")
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, CheckDevice("observation", CPU, CPU), test.ShouldBeNil)
	err = CheckDevice("detections", CPU, Device("cuda:0"))
	var mismatch *DeviceMismatchError
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
	test.That(t, mismatch.Actual, test.ShouldEqual, Device("cuda:0"))
	test.That(t, err.Error(), test.ShouldContainSubstring, "detections")
}

func TestTensorHelpers(t *testing.T) {
	tt := tensor.New(tensor.WithShape(2, 1, 2), tensor.WithBacking([]float32{0, 1, 0.5, 0.5}))
	test.That(t, TensorBytes(tt), test.ShouldEqual, int64(16))
	test.That(t, Tensors{"b": tt, "a": tt}.Names(), test.ShouldResemble, []string{"a", "b"})
	test.That(t, Tensors{"a": tt}.Bytes(), test.ShouldEqual, int64(16))

	means, err := ChannelMeans(tt)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, means, test.ShouldResemble, []float64{0.5, 0.5})

	test.That(t, CheckShape("x", tt, 2, -1, 2), test.ShouldBeNil)
	test.That(t, CheckShape("x", tt, 3, 1, 2), test.ShouldNotBeNil)
	test.That(t, CheckShape("x", tt, 2, 1), test.ShouldNotBeNil)

	_, err = ConvertToFloat64Slice("nope")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSoftmax(t *testing.T) {
	out := Softmax([]float64{1000, 1000})
	test.That(t, out[0], test.ShouldAlmostEqual, 0.5)
	test.That(t, out[1], test.ShouldAlmostEqual, 0.5)
	test.That(t, Softmax(nil), test.ShouldBeEmpty)
}
