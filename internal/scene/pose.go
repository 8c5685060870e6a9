package scene

import (
	"strings"

	"github.com/EliCDavis/vector/vector3"
)

// ParseCameraPath parses a TUM trajectory: "ts x y z qx qy qz qw" per line.
// Blank lines, comment lines and records that are short or non-numeric are skipped.
func ParseCameraPath(text string) CameraPath {
	lines := strings.Split(text, "\n")
	poses := make([]Pose, 0, len(lines))
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 8 {
			continue
		}
		var v [8]float64
		valid := true
		for i := range v {
			f, ok := parseFloat(fields[i])
			if !ok {
				valid = false
				break
			}
			v[i] = f
		}
		if !valid {
			continue
		}
		poses = append(poses, Pose{
			Timestamp:   v[0],
			Position:    vector3.New(v[1], v[2], v[3]),
			Orientation: Quaternion{X: v[4], Y: v[5], Z: v[6], W: v[7]},
		})
	}
	return CameraPath{Poses: poses}
}

// DecodeCameraPath is ParseCameraPath for callers that require at least one pose.
func DecodeCameraPath(text string) (CameraPath, error) {
	path := ParseCameraPath(text)
	if path.Empty() {
		return CameraPath{}, &DecodeError{Kind: EmptyPath}
	}
	return path, nil
}
