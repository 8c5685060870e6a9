package scene

import (
	"math"

	"github.com/EliCDavis/vector/vector3"
)

// flipX is a half turn about the X axis, applied to orientations so they match
// positions after the Y negation.
var flipX = Quaternion{X: math.Sin(math.Pi / 2), W: math.Cos(math.Pi / 2)}

// ToDisplay converts a reconstruction-frame position to the display frame.
func ToDisplay(v vector3.Float64) vector3.Float64 {
	return vector3.New(v.X(), -v.Y(), v.Z())
}

// ToDisplayOrientation converts a reconstruction-frame orientation to the display frame.
func ToDisplayOrientation(q Quaternion) Quaternion {
	return flipX.Mul(q)
}

// DisplayCloud returns a copy of cloud in the display frame.
func DisplayCloud(cloud PointCloud) PointCloud {
	points := make([]Point, len(cloud.Points))
	for i, p := range cloud.Points {
		points[i] = Point{Position: ToDisplay(p.Position), Color: p.Color}
	}
	return PointCloud{Points: points}
}

// DisplayPath returns a copy of path in the display frame.
func DisplayPath(path CameraPath) CameraPath {
	poses := make([]Pose, len(path.Poses))
	for i, p := range path.Poses {
		poses[i] = Pose{
			Timestamp:   p.Timestamp,
			Position:    ToDisplay(p.Position),
			Orientation: ToDisplayOrientation(p.Orientation),
		}
	}
	return CameraPath{Poses: poses}
}
