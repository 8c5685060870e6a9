package scene

import (
	"math"
	"math/rand/v2"

	"github.com/EliCDavis/vector/vector3"
)

const (
	samplePathSteps    = 20
	samplePathDuration = 10.0
)

// SamplePointCloud returns a synthetic cloud of n points. The same seed always
// produces the same cloud.
func SamplePointCloud(n int, seed uint64) PointCloud {
	if n <= 0 {
		return PointCloud{}
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			Position: vector3.New(
				(rng.Float64()-0.5)*2,
				rng.Float64()*1.2,
				(rng.Float64()-0.5)*2,
			),
			Color: vector3.New(
				0.4+rng.Float64()*0.3,
				0.6+rng.Float64()*0.3,
				0.8+rng.Float64()*0.2,
			),
		}
	}
	return PointCloud{Points: points}
}

// SampleCameraPath returns a short synthetic sweep spanning ten seconds.
func SampleCameraPath() CameraPath {
	poses := make([]Pose, samplePathSteps)
	for i := range poses {
		t := float64(i) / float64(samplePathSteps-1)
		poses[i] = Pose{
			Timestamp: t * samplePathDuration,
			Position: vector3.New(
				-0.6+t*1.2+math.Sin(t*math.Pi*2)*0.1,
				0.2+math.Cos(t*math.Pi)*0.05,
				0.8-t*1.0+math.Cos(t*math.Pi*2)*0.08,
			),
			Orientation: IdentityQuaternion,
		}
	}
	return CameraPath{Poses: poses}
}
