package centroid

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// fibonacciDirection returns the i-th of n unit directions spread evenly over the sphere. It is
// the direction, in the object frame, from which view i of the render cache was taken.
func fibonacciDirection(i, n int) r3.Vector {
	if n <= 1 {
		return r3.Vector{Z: -1}
	}
	y := 1 - 2*(float64(i)+0.5)/float64(n)
	r := math.Sqrt(math.Max(0, 1-y*y))
	phi := float64(i) * goldenAngle
	return r3.Vector{X: math.Cos(phi) * r, Y: y, Z: math.Sin(phi) * r}
}

// viewpointRotation returns the object-to-camera rotation that places a camera looking along +z
// on the object's dir axis, i.e. R * dir = (0, 0, -1).
func viewpointRotation(dir r3.Vector) *mat.Dense {
	row3 := dir.Normalize().Mul(-1)
	up := r3.Vector{Y: 1}
	if math.Abs(row3.Dot(up)) > 0.99 {
		up = r3.Vector{X: 1}
	}
	row1 := up.Cross(row3).Normalize()
	row2 := row3.Cross(row1)
	return mat.NewDense(3, 3, []float64{
		row1.X, row1.Y, row1.Z,
		row2.X, row2.Y, row2.Z,
		row3.X, row3.Y, row3.Z,
	})
}
