package spatialmath

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

const cubePLY = `ply
format ascii 1.0
comment unit cube
element vertex 8
property float x
property float y
property float z
element face 6
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
1 1 0
0 1 0
0 0 1
1 0 1
1 1 1
0 1 1
4 0 1 2 3
4 4 5 6 7
4 0 1 5 4
4 1 2 6 5
4 2 3 7 6
4 3 0 4 7
`

const triangleOBJ = `# single face
v 0 0 0
v 10 0 0
v 0 10 0
vt 0 0
f 1/1 2/1 3/1
f -3 -2 -1
`

func TestReadPLY(t *testing.T) {
	mesh, err := ReadPLY(strings.NewReader(cubePLY))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mesh.Triangles(), test.ShouldHaveLength, 12)
	lo, hi := mesh.Bounds()
	test.That(t, lo, test.ShouldResemble, r3.Vector{})
	test.That(t, hi, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 1})

	_, err = ReadPLY(strings.NewReader("ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty float x\nend_header\n\x00"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadPLY(strings.NewReader("ply\nformat ebcdic 1.0\nend_header\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadPLY(strings.NewReader("obj\nformat ascii 1.0\nend_header\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadPLY(strings.NewReader(""))
	test.That(t, err, test.ShouldNotBeNil)
}

// binaryQuadPLY encodes a unit square in the xy plane at height 2 as a single quad face. Each
// vertex carries an extra confidence property that the reader has to skip.
func binaryQuadPLY(t *testing.T, format string, order binary.ByteOrder) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("ply\nformat " + format + " 1.0\n")
	buf.WriteString("comment made by hand\n")
	buf.WriteString("element vertex 4\nproperty float x\nproperty float y\nproperty double z\nproperty uchar confidence\n")
	buf.WriteString("element face 1\nproperty list uchar int vertex_indices\n")
	buf.WriteString("end_header\n")
	for _, v := range [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
		test.That(t, binary.Write(&buf, order, v), test.ShouldBeNil)
		test.That(t, binary.Write(&buf, order, float64(2)), test.ShouldBeNil)
		buf.WriteByte(255)
	}
	buf.WriteByte(4)
	test.That(t, binary.Write(&buf, order, []int32{0, 1, 2, 3}), test.ShouldBeNil)
	return buf.Bytes()
}

func TestReadBinaryPLY(t *testing.T) {
	for _, tc := range []struct {
		format string
		order  binary.ByteOrder
	}{
		{"binary_little_endian", binary.LittleEndian},
		{"binary_big_endian", binary.BigEndian},
	} {
		t.Run(tc.format, func(t *testing.T) {
			data := binaryQuadPLY(t, tc.format, tc.order)
			mesh, err := ReadPLY(bytes.NewReader(data))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, mesh.Triangles(), test.ShouldHaveLength, 2)
			lo, hi := mesh.Bounds()
			test.That(t, lo, test.ShouldResemble, r3.Vector{Z: 2})
			test.That(t, hi, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 2})

			_, err = ReadPLY(bytes.NewReader(data[:len(data)-3]))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}

	t.Run("out of range index", func(t *testing.T) {
		data := binaryQuadPLY(t, "binary_little_endian", binary.LittleEndian)
		binary.LittleEndian.PutUint32(data[len(data)-4:], 9)
		_, err := ReadPLY(bytes.NewReader(data))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "invalid vertex")
	})
}

func TestReadOBJ(t *testing.T) {
	mesh, err := ReadOBJ(strings.NewReader(triangleOBJ))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mesh.Triangles(), test.ShouldHaveLength, 2)
	test.That(t, mesh.Triangles()[0].Normal(), test.ShouldResemble, r3.Vector{Z: 1})

	scaled := mesh.Scale(0.001)
	test.That(t, scaled.Diameter(), test.ShouldAlmostEqual, mesh.Diameter()*0.001)

	_, err = ReadOBJ(strings.NewReader("v 0 0\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadOBJ(strings.NewReader("v 0 0 0\nf 1 2 3\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadMesh(t *testing.T) {
	dir := t.TempDir()
	plyPath := filepath.Join(dir, "cube.ply")
	test.That(t, os.WriteFile(plyPath, []byte(cubePLY), 0o600), test.ShouldBeNil)

	mesh, err := LoadMesh(plyPath)
	test.That(t, err, test.ShouldBeNil)

	moved := mesh.Transform(Transform{
		{1, 0, 0, 5},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	})
	lo, _ := moved.Bounds()
	test.That(t, lo.X, test.ShouldEqual, 5.)

	_, err = LoadMesh(filepath.Join(dir, "missing.ply"))
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing.ply")

	stlPath := filepath.Join(dir, "cube.stl")
	test.That(t, os.WriteFile(stlPath, []byte("solid"), 0o600), test.ShouldBeNil)
	_, err = LoadMesh(stlPath)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported mesh extension")
}
