package scene

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/EliCDavis/polyform/formats/ply"
	"github.com/EliCDavis/polyform/modeling"
	"github.com/EliCDavis/vector/vector3"

	"recomo/internal/services"
)

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind string

const (
	EmptyCloud DecodeErrorKind = "empty_cloud"
	EmptyPath  DecodeErrorKind = "empty_path"
	Malformed  DecodeErrorKind = "malformed"
)

// DecodeError reports an artifact that produced no usable data.
type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	var msg string
	switch e.Kind {
	case EmptyCloud:
		msg = "point cloud is empty"
	case EmptyPath:
		msg = "camera path is empty"
	default:
		msg = "artifact is malformed"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is match the shared decode marker.
func (e *DecodeError) Is(target error) bool { return target == services.ErrDecode }

// DecodeKind tags which step of DecodePointCloud produced the result.
type DecodeKind int

const (
	Failed DecodeKind = iota
	BinaryOK
	TextFallback
)

func (k DecodeKind) String() string {
	switch k {
	case BinaryOK:
		return "binary"
	case TextFallback:
		return "text_fallback"
	default:
		return "failed"
	}
}

// DecodeResult is the outcome of DecodePointCloud.
type DecodeResult struct {
	Kind  DecodeKind
	Cloud PointCloud
	// BinaryErr holds the structured parse failure that triggered the fallback.
	BinaryErr error
	Err       error
}

// StructuredDecoder parses a point cloud container. ParsePLY is the default.
type StructuredDecoder func(data []byte, maxPoints int) (PointCloud, error)

// DecodePointCloud parses data as a PLY container and falls back to the
// ASCII point format when the structured parse fails or yields nothing.
func DecodePointCloud(data []byte, maxPoints int) DecodeResult {
	return DecodePointCloudWith(ParsePLY, data, maxPoints)
}

// DecodePointCloudWith is DecodePointCloud with a replaceable structured step.
func DecodePointCloudWith(structured StructuredDecoder, data []byte, maxPoints int) DecodeResult {
	var binaryErr error
	if structured != nil {
		cloud, err := structured(data, maxPoints)
		if err == nil && !cloud.Empty() {
			return DecodeResult{Kind: BinaryOK, Cloud: cloud}
		}
		binaryErr = err
		if binaryErr == nil {
			binaryErr = &DecodeError{Kind: EmptyCloud}
		}
	}

	cloud, err := ParseASCIICloud(string(data), maxPoints)
	if err != nil {
		return DecodeResult{Kind: Failed, BinaryErr: binaryErr, Err: err}
	}
	return DecodeResult{Kind: TextFallback, Cloud: cloud, BinaryErr: binaryErr}
}

// ParsePLY reads positions and optional colors through polyform's PLY reader.
// Color channels the reader leaves unmapped, such as diffuse_red or float
// red, are read from the vertex rows directly.
func ParsePLY(data []byte, maxPoints int) (PointCloud, error) {
	cloud, colored, err := parsePLYMesh(data, maxPoints)
	if err == nil && colored {
		return cloud, nil
	}
	if layout, ok := readPLYLayout(data); ok {
		if _, hasColor := layout.colorIndexes(); hasColor {
			if direct, directErr := readColoredVertices(data, layout, maxPoints); directErr == nil {
				return direct, nil
			}
		}
	}
	return cloud, err
}

// parsePLYMesh decodes data with polyform and reports whether the reader
// produced color data.
func parsePLYMesh(data []byte, maxPoints int) (cloud PointCloud, colored bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DecodeError{Kind: Malformed, Err: fmt.Errorf("ply reader: %v", r)}
		}
	}()

	mesh, err := ply.ReadMesh(bytes.NewReader(data))
	if err != nil {
		return PointCloud{}, false, &DecodeError{Kind: Malformed, Err: err}
	}
	if mesh == nil {
		return PointCloud{}, false, &DecodeError{Kind: Malformed, Err: errors.New("ply reader returned no mesh")}
	}

	view := mesh.View()
	positions := view.Float3Data[modeling.PositionAttribute]
	if len(positions) == 0 {
		return PointCloud{}, false, &DecodeError{Kind: EmptyCloud}
	}
	colors := view.Float3Data[modeling.ColorAttribute]
	scale := colorScale(colors)

	step := decimationStep(len(positions), maxPoints)
	points := make([]Point, 0, len(positions)/step+1)
	for i := 0; i < len(positions); i += step {
		color := DefaultColor
		if i < len(colors) {
			color = clampColor(colors[i].DivByConstant(scale))
		}
		points = append(points, Point{Position: positions[i], Color: color})
	}
	return PointCloud{Points: points}, len(colors) > 0, nil
}

// ParseASCIICloud parses the plain-text point format: a header ended by an
// end_header line, then one "x y z [r g b]" record per line. Colors are 0-255.
func ParseASCIICloud(text string, maxPoints int) (PointCloud, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	headerEnd := -1
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), "end_header") {
			headerEnd = i
			break
		}
	}
	if headerEnd < 0 {
		return PointCloud{}, &DecodeError{Kind: EmptyCloud, Err: errors.New("missing end_header")}
	}

	data := lines[headerEnd+1:]
	step := decimationStep(len(data), maxPoints)
	points := make([]Point, 0, len(data)/step+1)
	for i := 0; i < len(data); i += step {
		point, ok := parsePointLine(data[i])
		if !ok {
			continue
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return PointCloud{}, &DecodeError{Kind: EmptyCloud}
	}
	return PointCloud{Points: points}, nil
}

func parsePointLine(line string) (Point, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Point{}, false
	}
	var xyz [3]float64
	for j := 0; j < 3; j++ {
		v, ok := parseFloat(fields[j])
		if !ok {
			return Point{}, false
		}
		xyz[j] = v
	}
	point := Point{Position: vector3.New(xyz[0], xyz[1], xyz[2]), Color: DefaultColor}
	if len(fields) >= 6 {
		r, okR := parseFloat(fields[3])
		g, okG := parseFloat(fields[4])
		b, okB := parseFloat(fields[5])
		if okR && okG && okB {
			point.Color = clampColor(vector3.New(r, g, b).DivByConstant(255))
		}
	}
	return point, true
}

// decimationStep returns the uniform stride that keeps at most maxPoints of n lines.
func decimationStep(n, maxPoints int) int {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if n <= maxPoints {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(maxPoints)))
}

// colorScale detects 0-255 colors left unnormalized by the container reader.
func colorScale(colors []vector3.Float64) float64 {
	for _, c := range colors {
		if c.X() > 1 || c.Y() > 1 || c.Z() > 1 {
			return 255
		}
	}
	return 1
}

func clampColor(c vector3.Float64) vector3.Float64 {
	return vector3.New(clamp01(c.X()), clamp01(c.Y()), clamp01(c.Z()))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
