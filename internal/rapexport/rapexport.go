// Package rapexport writes a reconstructed scene as a RAP recording with the
// camera trajectory as position, rotation and event captures, plus the point
// cloud as a binary PLY sidecar.
package rapexport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/EliCDavis/polyform/formats/ply"
	"github.com/EliCDavis/polyform/modeling"
	"github.com/EliCDavis/vector/vector3"
	"github.com/recolude/rap/format"
	"github.com/recolude/rap/format/collection/euler"
	"github.com/recolude/rap/format/collection/event"
	"github.com/recolude/rap/format/collection/position"
	"github.com/recolude/rap/format/encoding"
	eulEnc "github.com/recolude/rap/format/encoding/euler"
	eventEnc "github.com/recolude/rap/format/encoding/event"
	posEnc "github.com/recolude/rap/format/encoding/position"
	rapio "github.com/recolude/rap/format/io"
	"github.com/recolude/rap/format/metadata"

	"recomo/internal/scene"
)

// Scene is the data exported for one project.
type Scene struct {
	ProjectID string
	Name      string
	Cloud     scene.PointCloud
	Path      scene.CameraPath
	// CloudFile is recorded in the recording metadata when a sidecar is written.
	CloudFile string
}

// Files lists the paths written by WriteFiles.
type Files struct {
	Recording string
	Cloud     string
}

// Recording converts s into a RAP recording in the display convention.
// Capture times are seconds since the first pose.
func Recording(s Scene) format.Recording {
	start, _ := s.Path.Span()
	positions := make([]position.Capture, 0, s.Path.Len())
	rotations := make([]euler.Capture, 0, s.Path.Len())
	events := make([]event.Capture, 0, s.Path.Len())

	for i, pose := range scene.DisplayPath(s.Path).Poses {
		t := pose.Timestamp - start
		positions = append(positions, position.NewCapture(t, pose.Position.X(), pose.Position.Y(), pose.Position.Z()))
		x, y, z := pose.Orientation.EulerZXY()
		rotations = append(rotations, euler.NewEulerZXYCapture(t, x, y, z))
		events = append(events, event.NewCapture(t, fmt.Sprintf("pose-%d", i), metadata.NewBlock(map[string]metadata.Property{
			"Index":     metadata.NewIntProperty(i),
			"Timestamp": metadata.NewFloat32Property(float32(pose.Timestamp)),
		})))
	}

	name := s.Name
	if name == "" {
		name = s.ProjectID
	}
	camera := format.NewRecording(
		"camera",
		"Camera",
		[]format.CaptureCollection{
			position.NewCollection("Position", positions),
			euler.NewCollection("Rotation", rotations),
			event.NewCollection("Custom Event", events),
		},
		nil,
		metadata.NewBlock(map[string]metadata.Property{
			"Poses":    metadata.NewIntProperty(s.Path.Len()),
			"Duration": metadata.NewFloat32Property(float32(s.Path.Duration())),
		}),
		[]format.Binary{},
		[]format.BinaryReference{},
	)

	props := map[string]metadata.Property{
		"project": metadata.NewStringProperty(s.ProjectID),
		"points":  metadata.NewIntProperty(s.Cloud.Len()),
		"cameras": metadata.NewIntProperty(s.Path.Len()),
	}
	if s.CloudFile != "" {
		props["pointcloud"] = metadata.NewStringProperty(s.CloudFile)
	}
	return format.NewRecording(
		s.ProjectID,
		name,
		[]format.CaptureCollection{},
		[]format.Recording{camera},
		metadata.NewBlock(props),
		[]format.Binary{},
		[]format.BinaryReference{},
	)
}

// WriteRecording encodes rec to w.
func WriteRecording(w io.Writer, rec format.Recording) error {
	writer := rapio.NewWriter(
		[]encoding.Encoder{
			posEnc.NewEncoder(posEnc.Oct24),
			eulEnc.NewEncoder(eulEnc.Raw16),
			eventEnc.NewEncoder(),
		},
		true,
		w,
		rapio.BST16,
	)
	if _, err := writer.Write(rec); err != nil {
		return fmt.Errorf("write rap: %w", err)
	}
	return nil
}

// WriteCloud encodes cloud as a binary PLY in the display convention.
func WriteCloud(w io.Writer, cloud scene.PointCloud) error {
	if cloud.Empty() {
		return errors.New("point cloud is empty")
	}
	display := scene.DisplayCloud(cloud)
	positions := make([]vector3.Float64, 0, display.Len())
	colors := make([]vector3.Float64, 0, display.Len())
	for _, p := range display.Points {
		positions = append(positions, p.Position)
		colors = append(colors, p.Color)
	}
	mesh := modeling.NewPointCloud(
		map[string][]vector3.Vector[float64]{
			modeling.PositionAttribute: positions,
			modeling.ColorAttribute:    colors,
		},
		nil,
		nil,
		nil,
	)
	if err := ply.WriteBinary(w, mesh); err != nil {
		return fmt.Errorf("write ply: %w", err)
	}
	return nil
}

// WriteFiles writes <dir>/<base>.rap and, when the cloud has points,
// <dir>/<base>.ply.
func WriteFiles(dir, base string, s Scene) (Files, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = s.ProjectID
	}
	if base == "" {
		return Files{}, errors.New("export name required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create export dir: %w", err)
	}

	var files Files
	if !s.Cloud.Empty() {
		files.Cloud = filepath.Join(dir, base+".ply")
		if err := writeFile(files.Cloud, func(w io.Writer) error { return WriteCloud(w, s.Cloud) }); err != nil {
			return Files{}, err
		}
		s.CloudFile = filepath.Base(files.Cloud)
	}

	files.Recording = filepath.Join(dir, base+".rap")
	if err := writeFile(files.Recording, func(w io.Writer) error { return WriteRecording(w, Recording(s)) }); err != nil {
		return Files{}, err
	}
	return files, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
