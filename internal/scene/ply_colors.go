package scene

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/EliCDavis/vector/vector3"
)

// plyProperty is one scalar property of the PLY vertex element.
type plyProperty struct {
	name string
	kind string
	list bool
}

// plyLayout is the part of a PLY header needed to read vertex rows directly.
type plyLayout struct {
	format      string
	vertexCount int
	vertexFirst bool
	properties  []plyProperty
	dataOffset  int
}

var (
	plainColorNames   = [3]string{"red", "green", "blue"}
	diffuseColorNames = [3]string{"diffuse_red", "diffuse_green", "diffuse_blue"}
)

// readPLYLayout parses the header of data. It reports false when data is not
// a PLY file with a vertex element.
func readPLYLayout(data []byte) (plyLayout, bool) {
	var layout plyLayout
	offset := 0
	element := ""
	elements := 0
	for offset < len(data) {
		end := bytes.IndexByte(data[offset:], '\n')
		if end < 0 {
			return plyLayout{}, false
		}
		line := strings.TrimSpace(string(data[offset : offset+end]))
		offset += end + 1

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) > 1 {
				layout.format = fields[1]
			}
		case "element":
			if len(fields) < 3 {
				return plyLayout{}, false
			}
			element = fields[1]
			elements++
			if element == "vertex" {
				n, err := strconv.Atoi(fields[2])
				if err != nil || n < 0 {
					return plyLayout{}, false
				}
				layout.vertexCount = n
				layout.vertexFirst = elements == 1
			}
		case "property":
			if element != "vertex" || len(fields) < 3 {
				continue
			}
			if fields[1] == "list" {
				layout.properties = append(layout.properties, plyProperty{name: fields[len(fields)-1], list: true})
				continue
			}
			layout.properties = append(layout.properties, plyProperty{name: fields[2], kind: fields[1]})
		case "end_header":
			layout.dataOffset = offset
			return layout, layout.vertexCount > 0
		}
	}
	return plyLayout{}, false
}

func (l plyLayout) index(name string) int {
	for i, p := range l.properties {
		if p.name == name {
			return i
		}
	}
	return -1
}

// colorIndexes returns the vertex property indexes holding color channels,
// preferring red/green/blue over diffuse_red/diffuse_green/diffuse_blue.
func (l plyLayout) colorIndexes() ([3]int, bool) {
	for _, names := range [][3]string{plainColorNames, diffuseColorNames} {
		var idx [3]int
		ok := true
		for i, name := range names {
			idx[i] = l.index(name)
			ok = ok && idx[i] >= 0
		}
		if ok {
			return idx, true
		}
	}
	return [3]int{}, false
}

// readColoredVertices decodes positions and colors straight from the vertex
// rows. It handles color channels the container reader does not map.
func readColoredVertices(data []byte, layout plyLayout, maxPoints int) (PointCloud, error) {
	if !layout.vertexFirst {
		return PointCloud{}, errors.New("vertex element is not first")
	}
	xyz := [3]int{layout.index("x"), layout.index("y"), layout.index("z")}
	if xyz[0] < 0 || xyz[1] < 0 || xyz[2] < 0 {
		return PointCloud{}, errors.New("vertex element has no position")
	}
	rgb, ok := layout.colorIndexes()
	if !ok {
		return PointCloud{}, errors.New("vertex element has no color")
	}

	var rows [][]float64
	var err error
	switch layout.format {
	case "ascii":
		rows, err = asciiVertexRows(data[layout.dataOffset:], layout)
	case "binary_little_endian":
		rows, err = binaryVertexRows(data[layout.dataOffset:], layout, binary.LittleEndian)
	case "binary_big_endian":
		rows, err = binaryVertexRows(data[layout.dataOffset:], layout, binary.BigEndian)
	default:
		err = fmt.Errorf("unsupported ply format %q", layout.format)
	}
	if err != nil {
		return PointCloud{}, err
	}
	if len(rows) == 0 {
		return PointCloud{}, &DecodeError{Kind: EmptyCloud}
	}

	scale := 255.0
	if isFloatKind(layout.properties[rgb[0]].kind) {
		scale = 1
		for _, row := range rows {
			if row[rgb[0]] > 1 || row[rgb[1]] > 1 || row[rgb[2]] > 1 {
				scale = 255
				break
			}
		}
	}

	step := decimationStep(len(rows), maxPoints)
	points := make([]Point, 0, len(rows)/step+1)
	for i := 0; i < len(rows); i += step {
		row := rows[i]
		points = append(points, Point{
			Position: vector3.New(row[xyz[0]], row[xyz[1]], row[xyz[2]]),
			Color:    clampColor(vector3.New(row[rgb[0]], row[rgb[1]], row[rgb[2]]).DivByConstant(scale)),
		})
	}
	return PointCloud{Points: points}, nil
}

func asciiVertexRows(body []byte, layout plyLayout) ([][]float64, error) {
	lines := strings.Split(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n")
	rows := make([][]float64, 0, layout.vertexCount)
	for _, line := range lines {
		if len(rows) == layout.vertexCount {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < len(layout.properties) {
			return nil, fmt.Errorf("vertex %d: expected %d values, got %d", len(rows), len(layout.properties), len(fields))
		}
		row := make([]float64, len(layout.properties))
		for i, p := range layout.properties {
			if p.list {
				return nil, errors.New("list properties on vertices are not supported")
			}
			v, ok := parseFloat(fields[i])
			if !ok {
				return nil, fmt.Errorf("vertex %d: bad %s value %q", len(rows), p.name, fields[i])
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func binaryVertexRows(body []byte, layout plyLayout, order binary.ByteOrder) ([][]float64, error) {
	stride := 0
	for _, p := range layout.properties {
		size := kindSize(p.kind)
		if p.list || size == 0 {
			return nil, fmt.Errorf("unsupported vertex property %s", p.name)
		}
		stride += size
	}
	if len(body) < stride*layout.vertexCount {
		return nil, fmt.Errorf("vertex data truncated: need %d bytes, have %d", stride*layout.vertexCount, len(body))
	}
	rows := make([][]float64, layout.vertexCount)
	for i := range rows {
		rec := body[i*stride : (i+1)*stride]
		row := make([]float64, len(layout.properties))
		offset := 0
		for j, p := range layout.properties {
			row[j] = readScalar(rec[offset:], p.kind, order)
			offset += kindSize(p.kind)
		}
		rows[i] = row
	}
	return rows, nil
}

func kindSize(kind string) int {
	switch kind {
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

func isFloatKind(kind string) bool {
	switch kind {
	case "float", "float32", "double", "float64":
		return true
	default:
		return false
	}
}

func readScalar(b []byte, kind string, order binary.ByteOrder) float64 {
	switch kind {
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
