package spatialmath

import (
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

const floatEpsilon = 1e-12

// PlaneNormal returns the unit normal of the plane through three points.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Norm2() < floatEpsilon {
		return r3.Vector{}
	}
	return n.Normalize()
}

// spaceDelimitedStringToSlice splits up space-delimited numeric fields, as found in OBJ records.
// Fields that fail to parse become NaN.
func spaceDelimitedStringToSlice(s string) []float64 {
	var converted []float64
	slice := strings.Fields(s)
	for _, value := range slice {
		value, err := strconv.ParseFloat(value, 64)
		if err != nil {
			value = math.NaN()
		}
		converted = append(converted, value)
	}
	return converted
}
