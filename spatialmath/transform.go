package spatialmath

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// DefaultTransformTolerance is the absolute tolerance used when checking that a matrix is a rigid
// homogeneous transform.
const DefaultTransformTolerance = 1e-6

// Transform is a 4x4 homogeneous rigid transform stored row-major. It maps points from a source
// frame (e.g. an object's local frame) into a target frame (e.g. the camera or world frame).
type Transform [4][4]float64

// NewIdentityTransform returns the identity transform.
func NewIdentityTransform() Transform {
	return Transform{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// NewTransformFromMatrix converts a 4x4 matrix into a Transform. The bottom row must be [0 0 0 1].
func NewTransformFromMatrix(m mat.Matrix) (Transform, error) {
	var t Transform
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return t, errors.Errorf("expected a 4x4 matrix but got %dx%d", r, c)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			t[i][j] = m.At(i, j)
		}
	}
	if err := t.CheckHomogeneous(DefaultTransformTolerance); err != nil {
		return Transform{}, err
	}
	return t, nil
}

// NewTransformFromSlice converts 16 row-major values into a Transform.
func NewTransformFromSlice(data []float64) (Transform, error) {
	if len(data) != 16 {
		return Transform{}, errors.Errorf("expected 16 values for a 4x4 transform but got %d", len(data))
	}
	return NewTransformFromMatrix(mat.NewDense(4, 4, data))
}

// NewTransformFromRotationTranslation builds a transform from a 3x3 rotation matrix and a translation.
func NewTransformFromRotationTranslation(rot mat.Matrix, translation r3.Vector) (Transform, error) {
	r, c := rot.Dims()
	if r != 3 || c != 3 {
		return Transform{}, errors.Errorf("expected a 3x3 rotation but got %dx%d", r, c)
	}
	t := NewIdentityTransform()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = rot.At(i, j)
		}
	}
	t[0][3], t[1][3], t[2][3] = translation.X, translation.Y, translation.Z
	return t, nil
}

// NewTransformFromQuaternion builds a transform from a rotation quaternion and a translation. The
// quaternion is normalized first.
func NewTransformFromQuaternion(q quat.Number, translation r3.Vector) (Transform, error) {
	norm := quat.Abs(q)
	if norm == 0 || math.IsNaN(norm) {
		return Transform{}, errors.Errorf("cannot build rotation from quaternion %v", q)
	}
	q = quat.Scale(1/norm, q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	rot := mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
	return NewTransformFromRotationTranslation(rot, translation)
}

// Matrix returns the transform as a 4x4 gonum matrix.
func (t Transform) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.Set(i, j, t[i][j])
		}
	}
	return m
}

// Rotation returns the upper-left 3x3 block.
func (t Transform) Rotation() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, t[i][j])
		}
	}
	return m
}

// Translation returns the translation column.
func (t Transform) Translation() r3.Vector {
	return r3.Vector{X: t[0][3], Y: t[1][3], Z: t[2][3]}
}

// Quaternion returns the rotation as a unit quaternion.
func (t Transform) Quaternion() quat.Number {
	m00, m01, m02 := t[0][0], t[0][1], t[0][2]
	m10, m11, m12 := t[1][0], t[1][1], t[1][2]
	m20, m21, m22 := t[2][0], t[2][1], t[2][2]

	var q quat.Number
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{Real: 0.25 * s, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{Real: (m21 - m12) / s, Imag: 0.25 * s, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: 0.25 * s, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: 0.25 * s}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// Compose returns t * other, i.e. other is applied first.
func (t Transform) Compose(other Transform) Transform {
	var out Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t[i][k] * other[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// Inverse returns the inverse of a rigid transform.
func (t Transform) Inverse() Transform {
	out := NewIdentityTransform()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = t[j][i]
		}
	}
	tr := t.Translation()
	for i := 0; i < 3; i++ {
		out[i][3] = -(out[i][0]*tr.X + out[i][1]*tr.Y + out[i][2]*tr.Z)
	}
	return out
}

// Apply transforms a point.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: t[0][0]*p.X + t[0][1]*p.Y + t[0][2]*p.Z + t[0][3],
		Y: t[1][0]*p.X + t[1][1]*p.Y + t[1][2]*p.Z + t[1][3],
		Z: t[2][0]*p.X + t[2][1]*p.Y + t[2][2]*p.Z + t[2][3],
	}
}

// CheckHomogeneous returns an error if the bottom row is not [0 0 0 1] within tol.
func (t Transform) CheckHomogeneous(tol float64) error {
	expected := [4]float64{0, 0, 0, 1}
	for j, want := range expected {
		if math.Abs(t[3][j]-want) > tol || math.IsNaN(t[3][j]) {
			return errors.Errorf("transform bottom row must be [0 0 0 1] but got %v", t[3])
		}
	}
	return nil
}

// CheckRigid returns an error if the transform is not homogeneous or its rotation block is not
// orthonormal with determinant 1, within tol.
func (t Transform) CheckRigid(tol float64) error {
	if err := t.CheckHomogeneous(tol); err != nil {
		return err
	}
	rot := t.Rotation()
	var rrt mat.Dense
	rrt.Mul(rot, rot.T())
	if !mat.EqualApprox(&rrt, eye3, tol) {
		return errors.Errorf("rotation block is not orthonormal: %v", mat.Formatted(rot, mat.Squeeze()))
	}
	if det := mat.Det(rot); math.Abs(det-1) > tol {
		return errors.Errorf("rotation block determinant must be 1 but got %.6f", det)
	}
	return nil
}

var eye3 = mat.NewDiagDense(3, []float64{1, 1, 1})

// AlmostEqual compares two transforms entry by entry within an absolute tolerance.
func (t Transform) AlmostEqual(other Transform, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(t[i][j]-other[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func (t Transform) String() string {
	return fmt.Sprintf("%v", [4][4]float64(t))
}

// MarshalJSON encodes the transform as a nested 4x4 array.
func (t Transform) MarshalJSON() ([]byte, error) {
	return json.Marshal([4][4]float64(t))
}

// UnmarshalJSON decodes either a nested 4x4 array or the legacy pair
// [[qx, qy, qz, qw], [tx, ty, tz]].
func (t *Transform) UnmarshalJSON(data []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return errors.Wrap(err, "transform must be a 4x4 array or a [quaternion, translation] pair")
	}
	switch {
	case len(rows) == 4:
		flat := make([]float64, 0, 16)
		for i, row := range rows {
			if len(row) != 4 {
				return errors.Errorf("transform row %d has %d entries, expected 4", i, len(row))
			}
			flat = append(flat, row...)
		}
		parsed, err := NewTransformFromSlice(flat)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case len(rows) == 2 && len(rows[0]) == 4 && len(rows[1]) == 3:
		q := quat.Number{Real: rows[0][3], Imag: rows[0][0], Jmag: rows[0][1], Kmag: rows[0][2]}
		parsed, err := NewTransformFromQuaternion(q, r3.Vector{X: rows[1][0], Y: rows[1][1], Z: rows[1][2]})
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return errors.Errorf("transform must be a 4x4 array or a [quaternion, translation] pair, got %d rows", len(rows))
	}
}
