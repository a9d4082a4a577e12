package spatialmath

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

func rotationZ(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{c, -s, 0, s, c, 0, 0, 0, 1})
}

func TestTransformFromMatrix(t *testing.T) {
	tf, err := NewTransformFromMatrix(mat.NewDense(4, 4, []float64{
		1, 0, 0, 0.1,
		0, 1, 0, 0.2,
		0, 0, 1, 0.3,
		0, 0, 0, 1,
	}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.Translation(), test.ShouldResemble, r3.Vector{X: 0.1, Y: 0.2, Z: 0.3})

	_, err = NewTransformFromMatrix(mat.NewDense(3, 3, nil))
	test.That(t, err.Error(), test.ShouldContainSubstring, "4x4")

	_, err = NewTransformFromMatrix(mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 1, 1,
	}))
	test.That(t, err.Error(), test.ShouldContainSubstring, "bottom row")
}

func TestTransformComposeInverse(t *testing.T) {
	tf, err := NewTransformFromRotationTranslation(rotationZ(math.Pi/3), r3.Vector{X: 1, Y: -2, Z: 0.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.CheckRigid(DefaultTransformTolerance), test.ShouldBeNil)

	ident := tf.Compose(tf.Inverse())
	test.That(t, ident.AlmostEqual(NewIdentityTransform(), 1e-9), test.ShouldBeTrue)

	p := r3.Vector{X: 1, Y: 0, Z: 0}
	moved := tf.Apply(p)
	test.That(t, moved.X, test.ShouldAlmostEqual, 1+math.Cos(math.Pi/3))
	test.That(t, moved.Y, test.ShouldAlmostEqual, -2+math.Sin(math.Pi/3))
	test.That(t, tf.Inverse().Apply(moved).Sub(p).Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestTransformQuaternionRoundTrip(t *testing.T) {
	for _, theta := range []float64{0, 0.3, math.Pi / 2, math.Pi - 0.01, -2.5} {
		tf, err := NewTransformFromRotationTranslation(rotationZ(theta), r3.Vector{X: 3})
		test.That(t, err, test.ShouldBeNil)
		back, err := NewTransformFromQuaternion(tf.Quaternion(), tf.Translation())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.AlmostEqual(tf, 1e-9), test.ShouldBeTrue)
	}

	_, err := NewTransformFromQuaternion(quat.Number{}, r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCheckRigid(t *testing.T) {
	tf := NewIdentityTransform()
	tf[0][0] = 2
	test.That(t, tf.CheckRigid(DefaultTransformTolerance).Error(), test.ShouldContainSubstring, "orthonormal")
}

func TestTransformJSON(t *testing.T) {
	tf, err := NewTransformFromRotationTranslation(rotationZ(0.7), r3.Vector{X: 0.01, Y: 0.02, Z: 0.8})
	test.That(t, err, test.ShouldBeNil)

	data, err := json.Marshal(tf)
	test.That(t, err, test.ShouldBeNil)
	var decoded Transform
	test.That(t, json.Unmarshal(data, &decoded), test.ShouldBeNil)
	test.That(t, decoded.AlmostEqual(tf, 1e-12), test.ShouldBeTrue)

	// quaternion (x, y, z, w) + translation form
	var legacy Transform
	test.That(t, json.Unmarshal([]byte(`[[0, 0, 0, 1], [0.1, 0.2, 0.3]]`), &legacy), test.ShouldBeNil)
	test.That(t, legacy.Translation(), test.ShouldResemble, r3.Vector{X: 0.1, Y: 0.2, Z: 0.3})
	test.That(t, legacy.Rotation(), test.ShouldResemble, NewIdentityTransform().Rotation())

	test.That(t, json.Unmarshal([]byte(`[[1, 2, 3]]`), &legacy), test.ShouldNotBeNil)
	test.That(t, json.Unmarshal([]byte(`"nope"`), &legacy), test.ShouldNotBeNil)
	test.That(t, json.Unmarshal([]byte(`[[1,0,0,0],[0,1,0,0],[0,0,1,0],[0,0,0]]`), &legacy), test.ShouldNotBeNil)
}
