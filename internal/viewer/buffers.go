package viewer

import (
	"math"

	"recomo/internal/scene"
)

// Palette holds the scene colors as 0xRRGGBB.
type Palette struct {
	Background uint32
	Path       uint32
	Traversed  uint32
	Marker     uint32
}

// DefaultPalette matches the reference scene styling.
var DefaultPalette = Palette{
	Background: 0x0b0c10,
	Path:       0x00a8e8,
	Traversed:  0x00ff00,
	Marker:     0xffffff,
}

// SceneBuffers are the static vertex buffers for one scene, already in the
// display convention. Positions, Colors and PathVertices are packed xyz.
type SceneBuffers struct {
	Positions    []float32
	Colors       []float32
	PathVertices []float32
	Center       [3]float32
	Radius       float32
	Palette      Palette
}

// PointCount returns the number of cloud points.
func (b *SceneBuffers) PointCount() int { return len(b.Positions) / 3 }

// PathCount returns the number of path vertices.
func (b *SceneBuffers) PathCount() int { return len(b.PathVertices) / 3 }

// BuildBuffers packs cloud and path, both in the reconstruction frame, into
// display-frame buffers.
func BuildBuffers(cloud scene.PointCloud, path scene.CameraPath) *SceneBuffers {
	display := scene.DisplayCloud(cloud)
	displayPath := scene.DisplayPath(path)

	b := &SceneBuffers{
		Positions:    make([]float32, 0, len(display.Points)*3),
		Colors:       make([]float32, 0, len(display.Points)*3),
		PathVertices: make([]float32, 0, len(displayPath.Poses)*3),
		Palette:      DefaultPalette,
	}

	minV := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxV := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	extend := func(x, y, z float64) {
		for i, v := range [3]float64{x, y, z} {
			minV[i] = math.Min(minV[i], v)
			maxV[i] = math.Max(maxV[i], v)
		}
	}

	for _, p := range display.Points {
		x, y, z := p.Position.X(), p.Position.Y(), p.Position.Z()
		b.Positions = append(b.Positions, float32(x), float32(y), float32(z))
		b.Colors = append(b.Colors, float32(p.Color.X()), float32(p.Color.Y()), float32(p.Color.Z()))
		extend(x, y, z)
	}
	for _, pose := range displayPath.Poses {
		x, y, z := pose.Position.X(), pose.Position.Y(), pose.Position.Z()
		b.PathVertices = append(b.PathVertices, float32(x), float32(y), float32(z))
		extend(x, y, z)
	}

	if !math.IsInf(minV[0], 0) {
		var r2 float64
		for i := range 3 {
			b.Center[i] = float32((minV[i] + maxV[i]) / 2)
			half := (maxV[i] - minV[i]) / 2
			r2 += half * half
		}
		b.Radius = float32(math.Sqrt(r2))
	}
	return b
}
