package viewer

import "sync"

// Frame is everything a backend needs to draw one frame.
type Frame struct {
	// Scene is set on the first frame after the scene changed and nil otherwise.
	Scene     *SceneBuffers
	Camera    CameraState
	Marker    [3]float32
	HasMarker bool
	DrawCount int
	Time      float64
	Duration  float64
	Playing   bool
}

// Backend is the rendering API boundary. Dispose must release every resource
// created by Upload; a backend may be reused after Dispose.
type Backend interface {
	Upload(frame Frame) error
	Resize(width, height int)
	Dispose()
}

// NullBackend draws nothing. It keeps the last frame and counts calls, which
// suits headless runs and tests.
type NullBackend struct {
	mu        sync.Mutex
	frames    int
	uploads   int
	disposals int
	resident  bool
	last      Frame
	width     int
	height    int
}

func (b *NullBackend) Upload(frame Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames++
	if frame.Scene != nil {
		b.uploads++
		b.resident = true
	}
	b.last = frame
	return nil
}

func (b *NullBackend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
}

func (b *NullBackend) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposals++
	b.resident = false
}

// Stats reports frames drawn, scene uploads, disposals and whether scene
// buffers are currently resident.
func (b *NullBackend) Stats() (frames, uploads, disposals int, resident bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames, b.uploads, b.disposals, b.resident
}

// Last returns the most recent frame.
func (b *NullBackend) Last() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Size returns the last viewport size.
func (b *NullBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}
