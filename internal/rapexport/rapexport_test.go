package rapexport_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"recomo/internal/rapexport"
	"recomo/internal/scene"
)

func TestWriteCloudDecodesBack(t *testing.T) {
	cloud := scene.SamplePointCloud(50, 7)
	var buf bytes.Buffer
	if err := rapexport.WriteCloud(&buf, cloud); err != nil {
		t.Fatalf("WriteCloud returned error: %v", err)
	}

	result := scene.DecodePointCloud(buf.Bytes(), scene.DefaultMaxPoints)
	if result.Kind != scene.BinaryOK {
		t.Fatalf("expected binary decode, got %v (%v)", result.Kind, result.Err)
	}
	if result.Cloud.Len() != cloud.Len() {
		t.Fatalf("expected %d points, got %d", cloud.Len(), result.Cloud.Len())
	}
	got := result.Cloud.Points[0].Position
	want := cloud.Points[0].Position
	if math.Abs(got.X()-want.X()) > 1e-5 || math.Abs(got.Y()+want.Y()) > 1e-5 {
		t.Fatalf("expected display-frame point %v, got %v", want, got)
	}
}

func TestWriteCloudRejectsEmpty(t *testing.T) {
	if err := rapexport.WriteCloud(&bytes.Buffer{}, scene.PointCloud{}); err == nil {
		t.Fatal("expected error for empty cloud")
	}
}

func TestWriteRecording(t *testing.T) {
	s := rapexport.Scene{ProjectID: "proj-1", Path: scene.SampleCameraPath(), Cloud: scene.SamplePointCloud(10, 1)}
	rec := rapexport.Recording(s)
	if rec.ID() != "proj-1" || rec.Name() != "proj-1" {
		t.Fatalf("unexpected recording identity %q %q", rec.ID(), rec.Name())
	}
	subjects := rec.Recordings()
	if len(subjects) != 1 {
		t.Fatalf("expected one camera subject, got %d", len(subjects))
	}
	if got := len(subjects[0].CaptureCollections()); got != 3 {
		t.Fatalf("expected position, rotation and event collections, got %d", got)
	}

	var buf bytes.Buffer
	if err := rapexport.WriteRecording(&buf, rec); err != nil {
		t.Fatalf("WriteRecording returned error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected encoded bytes")
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := rapexport.Scene{ProjectID: "proj-9", Path: scene.SampleCameraPath(), Cloud: scene.SamplePointCloud(10, 1)}
	files, err := rapexport.WriteFiles(dir, "", s)
	if err != nil {
		t.Fatalf("WriteFiles returned error: %v", err)
	}
	if files.Recording != filepath.Join(dir, "proj-9.rap") || files.Cloud != filepath.Join(dir, "proj-9.ply") {
		t.Fatalf("unexpected files %+v", files)
	}
	for _, path := range []string{files.Recording, files.Cloud} {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected non-empty %s: %v", path, err)
		}
	}
}

func TestWriteFilesWithoutCloudSkipsSidecar(t *testing.T) {
	dir := t.TempDir()
	files, err := rapexport.WriteFiles(dir, "path-only", rapexport.Scene{Path: scene.SampleCameraPath()})
	if err != nil {
		t.Fatalf("WriteFiles returned error: %v", err)
	}
	if files.Cloud != "" {
		t.Fatalf("expected no cloud sidecar, got %s", files.Cloud)
	}
}
