package scene

import (
	"math"
	"testing"

	"github.com/EliCDavis/vector/vector3"
)

func TestToDisplayNegatesY(t *testing.T) {
	v := ToDisplay(vector3.New(1.0, 2.0, 3.0))
	if v.X() != 1 || v.Y() != -2 || v.Z() != 3 {
		t.Fatalf("unexpected display position: (%v,%v,%v)", v.X(), v.Y(), v.Z())
	}
}

func TestToDisplayOrientationRotatesAboutX(t *testing.T) {
	q := ToDisplayOrientation(IdentityQuaternion)
	if math.Abs(q.X-1) > 1e-9 || math.Abs(q.W) > 1e-9 {
		t.Fatalf("expected half turn about X, got %+v", q)
	}
}

func TestDisplayCloudAndPathShareConvention(t *testing.T) {
	cloud := PointCloud{Points: []Point{{Position: vector3.New(0.0, 5.0, 0.0)}}}
	path := CameraPath{Poses: []Pose{{Position: vector3.New(0.0, 5.0, 0.0), Orientation: IdentityQuaternion}}}

	dc := DisplayCloud(cloud)
	dp := DisplayPath(path)
	if dc.Points[0].Position.Y() != dp.Poses[0].Position.Y() {
		t.Fatalf("cloud and path disagree: %v vs %v", dc.Points[0].Position.Y(), dp.Poses[0].Position.Y())
	}
	if cloud.Points[0].Position.Y() != 5 {
		t.Fatal("DisplayCloud must not mutate its input")
	}
}

func TestSampleDataIsDeterministic(t *testing.T) {
	a := SamplePointCloud(50, 7)
	b := SamplePointCloud(50, 7)
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			t.Fatalf("point %d differs between runs", i)
		}
	}
	path := SampleCameraPath()
	if path.Len() != 20 || path.Duration() != 10 {
		t.Fatalf("unexpected sample path: len=%d duration=%v", path.Len(), path.Duration())
	}
}

func TestQuaternionSlerpEndpoints(t *testing.T) {
	a := IdentityQuaternion
	b := Quaternion{Z: math.Sin(math.Pi / 4), W: math.Cos(math.Pi / 4)}
	if got := a.Slerp(b, 0); got != a {
		t.Fatalf("slerp(0) = %+v", got)
	}
	if got := a.Slerp(b, 1); got != b {
		t.Fatalf("slerp(1) = %+v", got)
	}
	mid := a.Slerp(b, 0.5)
	want := math.Sin(math.Pi / 8)
	if math.Abs(mid.Z-want) > 1e-9 {
		t.Fatalf("expected z=%v at midpoint, got %+v", want, mid)
	}
}
