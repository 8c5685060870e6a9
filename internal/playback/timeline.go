package playback

import (
	"math"
	"sort"
	"sync"

	"github.com/EliCDavis/vector/vector3"

	"recomo/internal/scene"
)

// Sample is the camera state at one playback time.
type Sample struct {
	Position        vector3.Float64
	Orientation     scene.Quaternion
	TargetTimestamp float64
	// Index is the bracketing pose at or before the target timestamp.
	Index int
	// Traversed counts poses with timestamps at or before the target.
	Traversed int
	// DrawCount is the vertex range of the traversed line. It extends to the
	// next pose so the line reaches the marker.
	DrawCount int
}

// Timeline combines a camera path with the reference video's duration.
type Timeline struct {
	mu            sync.RWMutex
	poses         []scene.Pose
	start, end    float64
	videoDuration float64
	lastDuration  float64
}

// NewTimeline returns a timeline over path.
func NewTimeline(path scene.CameraPath) *Timeline {
	t := &Timeline{}
	t.SetPath(path)
	return t
}

// SetPath replaces the camera path.
func (t *Timeline) SetPath(path scene.CameraPath) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.poses = append([]scene.Pose(nil), path.Poses...)
	t.start, t.end = path.Span()
	t.rememberDuration()
}

// SetVideoDuration records the reference video's duration in seconds.
func (t *Timeline) SetVideoDuration(seconds float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.videoDuration = seconds
	t.rememberDuration()
}

func (t *Timeline) rememberDuration() {
	if d := math.Max(t.videoDuration, t.end-t.start); d > 0 {
		t.lastDuration = d
	}
}

// PathDuration returns the camera path's timestamp span.
func (t *Timeline) PathDuration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.end - t.start
}

// Duration is the longer of the video and path durations. When both are
// unknown it keeps the last positive value.
func (t *Timeline) Duration() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.duration()
}

func (t *Timeline) duration() float64 {
	if d := math.Max(t.videoDuration, t.end-t.start); d > 0 {
		return d
	}
	return t.lastDuration
}

// Len returns the number of poses.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.poses)
}

// TargetTimestamp rescales playback seconds into the path's timestamp domain.
func (t *Timeline) TargetTimestamp(seconds float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.targetTimestamp(seconds)
}

func (t *Timeline) targetTimestamp(seconds float64) float64 {
	span := t.end - t.start
	duration := t.duration()
	scale := 1.0
	if duration > 0 && span > 0 {
		scale = span / duration
	}
	return t.start + seconds*scale
}

// Sample interpolates the camera at playback time seconds. ok is false when
// the path is empty.
func (t *Timeline) Sample(seconds float64) (Sample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.poses)
	if n == 0 {
		return Sample{}, false
	}
	target := t.targetTimestamp(seconds)

	// First pose at or after target.
	next := sort.Search(n, func(i int) bool { return t.poses[i].Timestamp >= target })

	var lo, hi int
	switch {
	case n == 1:
		lo, hi = 0, 0
	case next == 0:
		lo, hi = 0, 1
	case next == n:
		lo, hi = n-2, n-1
	default:
		lo, hi = next-1, next
	}
	prev, after := t.poses[lo], t.poses[hi]

	local := 0.0
	if after.Timestamp != prev.Timestamp {
		local = clamp((target-prev.Timestamp)/(after.Timestamp-prev.Timestamp), 0, 1)
	}

	traversed := sort.Search(n, func(i int) bool { return t.poses[i].Timestamp > target })
	drawCount := n
	if next < n {
		drawCount = min(n, max(2, next+1))
	}

	index := lo
	if local >= 1 {
		index = hi
	}
	return Sample{
		Position:        lerp(prev.Position, after.Position, local),
		Orientation:     prev.Orientation.Normalize().Slerp(after.Orientation.Normalize(), local),
		Index:           index,
		Traversed:       traversed,
		DrawCount:       drawCount,
		TargetTimestamp: target,
	}, true
}

// TraversedCount returns the number of poses at or before playback time seconds.
func (t *Timeline) TraversedCount(seconds float64) int {
	s, _ := t.Sample(seconds)
	return s.Traversed
}

func lerp(a, b vector3.Float64, f float64) vector3.Float64 {
	return vector3.New(
		a.X()+(b.X()-a.X())*f,
		a.Y()+(b.Y()-a.Y())*f,
		a.Z()+(b.Z()-a.Z())*f,
	)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
