package scene

import (
	"math"

	"github.com/EliCDavis/vector/vector3"
)

// DefaultMaxPoints bounds decoded point clouds.
const DefaultMaxPoints = 100000

// DefaultColor is applied to points that carry no color channels.
var DefaultColor = vector3.New(0.7, 0.8, 1.0)

// Point is a single colored sample of the reconstruction. Color channels are in [0,1].
type Point struct {
	Position vector3.Float64
	Color    vector3.Float64
}

// PointCloud is an ordered set of points in the reconstruction's local frame.
type PointCloud struct {
	Points []Point
}

// Len returns the number of points.
func (c PointCloud) Len() int { return len(c.Points) }

// Empty reports whether the cloud has no points.
func (c PointCloud) Empty() bool { return len(c.Points) == 0 }

// Quaternion is a rotation in x, y, z, w order.
type Quaternion struct {
	X, Y, Z, W float64
}

// IdentityQuaternion is the zero rotation.
var IdentityQuaternion = Quaternion{W: 1}

// Mul returns q*r.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// Normalize returns q scaled to unit length. A zero quaternion becomes the identity.
func (q Quaternion) Normalize() Quaternion {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n == 0 {
		return IdentityQuaternion
	}
	return Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// Dot returns the four-component dot product.
func (q Quaternion) Dot(r Quaternion) float64 {
	return q.X*r.X + q.Y*r.Y + q.Z*r.Z + q.W*r.W
}

// Slerp interpolates between q and r along the shortest arc.
func (q Quaternion) Slerp(r Quaternion, t float64) Quaternion {
	if t <= 0 {
		return q
	}
	if t >= 1 {
		return r
	}
	cos := q.Dot(r)
	if cos < 0 {
		r = Quaternion{X: -r.X, Y: -r.Y, Z: -r.Z, W: -r.W}
		cos = -cos
	}
	if cos > 0.9995 {
		return Quaternion{
			X: q.X + (r.X-q.X)*t,
			Y: q.Y + (r.Y-q.Y)*t,
			Z: q.Z + (r.Z-q.Z)*t,
			W: q.W + (r.W-q.W)*t,
		}.Normalize()
	}
	theta := math.Acos(cos)
	sin := math.Sin(theta)
	a := math.Sin((1-t)*theta) / sin
	b := math.Sin(t*theta) / sin
	return Quaternion{
		X: a*q.X + b*r.X,
		Y: a*q.Y + b*r.Y,
		Z: a*q.Z + b*r.Z,
		W: a*q.W + b*r.W,
	}
}

// EulerZXY returns the rotation as Z-X-Y Euler angles in degrees.
func (q Quaternion) EulerZXY() (x, y, z float64) {
	q = q.Normalize()
	// Rotation matrix terms for R = Rz * Rx * Ry decomposition.
	m21 := 2 * (q.Y*q.Z + q.W*q.X)
	sinX := math.Max(-1, math.Min(1, m21))
	x = math.Asin(sinX)
	if math.Abs(sinX) < 0.9999999 {
		m20 := 2 * (q.X*q.Z - q.W*q.Y)
		m22 := 1 - 2*(q.X*q.X+q.Y*q.Y)
		m01 := 2 * (q.X*q.Y - q.W*q.Z)
		m11 := 1 - 2*(q.X*q.X+q.Z*q.Z)
		y = math.Atan2(-m20, m22)
		z = math.Atan2(-m01, m11)
	} else {
		m10 := 2 * (q.X*q.Y + q.W*q.Z)
		m00 := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
		z = math.Atan2(m10, m00)
	}
	const deg = 180 / math.Pi
	return x * deg, y * deg, z * deg
}

// Pose is one timestamped camera sample.
type Pose struct {
	Timestamp   float64
	Position    vector3.Float64
	Orientation Quaternion
}

// CameraPath is a time-ordered camera trajectory. Timestamps are assumed
// non-decreasing; interpolation over unsorted input is undefined.
type CameraPath struct {
	Poses []Pose
}

// Len returns the number of poses.
func (p CameraPath) Len() int { return len(p.Poses) }

// Empty reports whether the path has no poses.
func (p CameraPath) Empty() bool { return len(p.Poses) == 0 }

// Span returns the smallest and largest timestamps.
func (p CameraPath) Span() (start, end float64) {
	if len(p.Poses) == 0 {
		return 0, 0
	}
	start, end = p.Poses[0].Timestamp, p.Poses[0].Timestamp
	for _, pose := range p.Poses[1:] {
		start = math.Min(start, pose.Timestamp)
		end = math.Max(end, pose.Timestamp)
	}
	return start, end
}

// Duration returns the path's timestamp span in seconds.
func (p CameraPath) Duration() float64 {
	start, end := p.Span()
	return end - start
}
