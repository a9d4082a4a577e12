package spatialmath

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Mesh is a set of triangles expressed in the mesh's local frame.
type Mesh struct {
	triangles []*Triangle
}

// NewMesh creates a mesh from triangles.
func NewMesh(triangles []*Triangle) *Mesh {
	return &Mesh{triangles: triangles}
}

// Triangles returns the mesh faces.
func (m *Mesh) Triangles() []*Triangle {
	return m.triangles
}

// Transform returns a new mesh with every triangle mapped through tf.
func (m *Mesh) Transform(tf Transform) *Mesh {
	out := make([]*Triangle, 0, len(m.triangles))
	for _, t := range m.triangles {
		out = append(out, t.Transform(tf))
	}
	return NewMesh(out)
}

// Scale returns a new mesh with every vertex multiplied by factor. It is used to bring meshes
// authored in millimeters into meters.
func (m *Mesh) Scale(factor float64) *Mesh {
	out := make([]*Triangle, 0, len(m.triangles))
	for _, t := range m.triangles {
		pts := t.Points()
		out = append(out, NewTriangle(pts[0].Mul(factor), pts[1].Mul(factor), pts[2].Mul(factor)))
	}
	return NewMesh(out)
}

// Bounds returns the axis aligned bounding box of the mesh.
func (m *Mesh) Bounds() (r3.Vector, r3.Vector) {
	if len(m.triangles) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	lo := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, t := range m.triangles {
		for _, p := range t.Points() {
			lo = r3.Vector{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
			hi = r3.Vector{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		}
	}
	return lo, hi
}

// Diameter returns the length of the bounding box diagonal.
func (m *Mesh) Diameter() float64 {
	lo, hi := m.Bounds()
	return hi.Sub(lo).Norm()
}

// LoadMesh reads a mesh file, choosing the parser from the extension (.ply or .obj).
func LoadMesh(path string) (*Mesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open mesh %q", path)
	}
	defer f.Close() //nolint:errcheck

	var mesh *Mesh
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ply":
		mesh, err = ReadPLY(f)
	case ".obj":
		mesh, err = ReadOBJ(f)
	default:
		return nil, errors.Errorf("unsupported mesh extension %q for %q", ext, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse mesh %q", path)
	}
	if len(mesh.Triangles()) == 0 {
		return nil, errors.Errorf("mesh %q has no faces", path)
	}
	return mesh, nil
}

// ReadPLY parses a PLY stream in ascii, binary_little_endian or binary_big_endian format. Faces
// with more than three vertices are fan triangulated.
func ReadPLY(r io.Reader) (*Mesh, error) {
	br := bufio.NewReader(r)
	header, raw, err := readPLYHeader(br)
	if err != nil {
		return nil, err
	}
	switch header.format {
	case "ascii":
		return readASCIIPLY(io.MultiReader(bytes.NewReader(raw), br))
	case "binary_little_endian":
		return readBinaryPLY(br, header, binary.LittleEndian)
	case "binary_big_endian":
		return readBinaryPLY(br, header, binary.BigEndian)
	default:
		return nil, errors.Errorf("unsupported ply format %q", header.format)
	}
}

type plyProperty struct {
	name string
	typ  string
	// countType is set for list properties.
	countType string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string
	elements []plyElement
}

// readPLYHeader consumes the header through end_header and also returns its raw bytes.
func readPLYHeader(r *bufio.Reader) (plyHeader, []byte, error) {
	var (
		header plyHeader
		raw    bytes.Buffer
	)
	for lineNum := 1; ; lineNum++ {
		line, err := r.ReadString('\n')
		raw.WriteString(line)
		if err != nil && (err != io.EOF || line == "") {
			return plyHeader{}, nil, errors.Wrap(err, "ply header ended before end_header")
		}
		fields := strings.Fields(line)
		if lineNum == 1 {
			if len(fields) != 1 || fields[0] != "ply" {
				return plyHeader{}, nil, errors.New("missing ply magic number")
			}
			continue
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return plyHeader{}, nil, errors.Errorf("line %d: malformed format %q", lineNum, line)
			}
			header.format = fields[1]
		case "element":
			if len(fields) != 3 {
				return plyHeader{}, nil, errors.Errorf("line %d: malformed element %q", lineNum, line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return plyHeader{}, nil, errors.Errorf("line %d: malformed element count %q", lineNum, line)
			}
			header.elements = append(header.elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(header.elements) == 0 {
				return plyHeader{}, nil, errors.Errorf("line %d: property before any element", lineNum)
			}
			var prop plyProperty
			switch {
			case len(fields) == 5 && fields[1] == "list":
				prop = plyProperty{countType: fields[2], typ: fields[3], name: fields[4]}
			case len(fields) == 3:
				prop = plyProperty{typ: fields[1], name: fields[2]}
			default:
				return plyHeader{}, nil, errors.Errorf("line %d: malformed property %q", lineNum, line)
			}
			for _, typ := range []string{prop.typ, prop.countType} {
				if typ != "" && plyTypeSize(typ) == 0 {
					return plyHeader{}, nil, errors.Errorf("line %d: unknown property type %q", lineNum, typ)
				}
			}
			last := &header.elements[len(header.elements)-1]
			last.props = append(last.props, prop)
		case "end_header":
			if header.format == "" {
				return plyHeader{}, nil, errors.New("ply header has no format")
			}
			return header, raw.Bytes(), nil
		}
	}
}

func plyTypeSize(typ string) int {
	switch typ {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	default:
		return 0
	}
}

func decodePLYScalar(b []byte, order binary.ByteOrder, typ string) float64 {
	switch typ {
	case "char", "int8":
		return float64(int8(b[0]))
	case "uchar", "uint8":
		return float64(b[0])
	case "short", "int16":
		return float64(int16(order.Uint16(b)))
	case "ushort", "uint16":
		return float64(order.Uint16(b))
	case "int", "int32":
		return float64(int32(order.Uint32(b)))
	case "uint", "uint32":
		return float64(order.Uint32(b))
	case "float", "float32":
		return float64(math.Float32frombits(order.Uint32(b)))
	default:
		return math.Float64frombits(order.Uint64(b))
	}
}

func readBinaryPLY(r io.Reader, header plyHeader, order binary.ByteOrder) (*Mesh, error) {
	var (
		vertices  []r3.Vector
		triangles []*Triangle
		scratch   [8]byte
	)
	readScalar := func(typ string) (float64, error) {
		b := scratch[:plyTypeSize(typ)]
		if _, err := io.ReadFull(r, b); err != nil {
			return 0, err
		}
		return decodePLYScalar(b, order, typ), nil
	}

	for _, elem := range header.elements {
		for i := 0; i < elem.count; i++ {
			var (
				v       r3.Vector
				indices []int
			)
			for _, prop := range elem.props {
				if prop.countType == "" {
					val, err := readScalar(prop.typ)
					if err != nil {
						return nil, errors.Wrapf(err, "%s %d: truncated property %q", elem.name, i, prop.name)
					}
					switch prop.name {
					case "x":
						v.X = val
					case "y":
						v.Y = val
					case "z":
						v.Z = val
					}
					continue
				}
				n, err := readScalar(prop.countType)
				if err != nil {
					return nil, errors.Wrapf(err, "%s %d: truncated list %q", elem.name, i, prop.name)
				}
				isIndexList := elem.name == "face" && (prop.name == "vertex_indices" || prop.name == "vertex_index")
				for k := 0; k < int(n); k++ {
					idx, err := readScalar(prop.typ)
					if err != nil {
						return nil, errors.Wrapf(err, "%s %d: truncated list %q", elem.name, i, prop.name)
					}
					if isIndexList {
						if int(idx) < 0 || int(idx) >= len(vertices) {
							return nil, errors.Errorf("face %d references invalid vertex %v", i, idx)
						}
						indices = append(indices, int(idx))
					}
				}
			}
			switch elem.name {
			case "vertex":
				vertices = append(vertices, v)
			case "face":
				triangles = append(triangles, fanTriangulate(vertices, indices)...)
			}
		}
	}
	return NewMesh(triangles), nil
}

func readASCIIPLY(r io.Reader) (mesh *Mesh, err error) {
	// goply panics on malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			mesh = nil
			err = errors.Errorf("invalid ply data: %v", rec)
		}
	}()
	ply := goply.New(r)

	vertexElems := ply.Elements("vertex")
	vertices := make([]r3.Vector, 0, len(vertexElems))
	for i, v := range vertexElems {
		x, okX := plyNumber(v.Property("x"))
		y, okY := plyNumber(v.Property("y"))
		z, okZ := plyNumber(v.Property("z"))
		if !okX || !okY || !okZ {
			return nil, errors.Errorf("vertex %d is missing x/y/z", i)
		}
		vertices = append(vertices, r3.Vector{X: x, Y: y, Z: z})
	}

	var triangles []*Triangle
	for i, f := range ply.Elements("face") {
		raw := f.Property("vertex_indices")
		if raw == nil {
			raw = f.Property("vertex_index")
		}
		list, ok := raw.([]interface{})
		if !ok {
			return nil, errors.Errorf("face %d has no vertex index list", i)
		}
		indices := make([]int, 0, len(list))
		for _, item := range list {
			idx, ok := plyNumber(item)
			if !ok || int(idx) < 0 || int(idx) >= len(vertices) {
				return nil, errors.Errorf("face %d references invalid vertex %v", i, item)
			}
			indices = append(indices, int(idx))
		}
		triangles = append(triangles, fanTriangulate(vertices, indices)...)
	}
	return NewMesh(triangles), nil
}

// ReadOBJ parses the vertex and face records of a Wavefront OBJ stream. Texture and normal indices
// are ignored, negative indices are resolved relative to the current vertex count.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	var vertices []r3.Vector
	var triangles []*Triangle

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		keyword, rest, _ := strings.Cut(line, " ")
		switch keyword {
		case "v":
			coords := spaceDelimitedStringToSlice(rest)
			if len(coords) < 3 || math.IsNaN(coords[0]) || math.IsNaN(coords[1]) || math.IsNaN(coords[2]) {
				return nil, errors.Errorf("line %d: malformed vertex %q", lineNum, line)
			}
			vertices = append(vertices, r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]})
		case "f":
			fields := strings.Fields(rest)
			indices := make([]int, 0, len(fields))
			for _, field := range fields {
				idxStr, _, _ := strings.Cut(field, "/")
				idx, err := strconv.Atoi(idxStr)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d: malformed face index %q", lineNum, field)
				}
				if idx < 0 {
					idx = len(vertices) + idx
				} else {
					idx--
				}
				if idx < 0 || idx >= len(vertices) {
					return nil, errors.Errorf("line %d: face index %q out of range", lineNum, field)
				}
				indices = append(indices, idx)
			}
			triangles = append(triangles, fanTriangulate(vertices, indices)...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewMesh(triangles), nil
}

func fanTriangulate(vertices []r3.Vector, indices []int) []*Triangle {
	if len(indices) < 3 {
		return nil
	}
	out := make([]*Triangle, 0, len(indices)-2)
	for k := 1; k+1 < len(indices); k++ {
		out = append(out, NewTriangle(vertices[indices[0]], vertices[indices[k]], vertices[indices[k+1]]))
	}
	return out
}

func plyNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int8:
		return float64(n), true
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

func (m *Mesh) String() string {
	lo, hi := m.Bounds()
	return fmt.Sprintf("mesh{faces: %d, bounds: [%v, %v]}", len(m.triangles), lo, hi)
}
