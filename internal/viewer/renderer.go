package viewer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"recomo/internal/logging"
	"recomo/internal/playback"
)

const defaultFrameInterval = time.Second / 60

// Renderer runs the per-frame loop: advance playback, move the marker and the
// traversed range, and hand the frame to the backend.
type Renderer struct {
	backend  Backend
	player   *playback.Player
	camera   *OrbitCamera
	interval time.Duration
	logger   *slog.Logger
	onFrame  func(Frame)

	mu      sync.Mutex
	buffers *SceneBuffers
	dirty   bool
	cancel  context.CancelFunc
	done    chan struct{}
	failing bool
}

// NewRenderer builds a stopped renderer. A zero interval renders at 60 fps.
func NewRenderer(backend Backend, player *playback.Player, camera *OrbitCamera, interval time.Duration, logger *slog.Logger) *Renderer {
	if backend == nil {
		backend = &NullBackend{}
	}
	if camera == nil {
		camera = DefaultOrbitCamera()
	}
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	return &Renderer{
		backend:  backend,
		player:   player,
		camera:   camera,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "renderer"),
	}
}

// Camera returns the orbit camera for input handling.
func (r *Renderer) Camera() *OrbitCamera { return r.camera }

// OnFrame registers a callback invoked after each rendered frame.
func (r *Renderer) OnFrame(fn func(Frame)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFrame = fn
}

// SetScene replaces the scene buffers; they are uploaded with the next frame.
func (r *Renderer) SetScene(buffers *SceneBuffers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers = buffers
	r.dirty = buffers != nil
}

// Resize updates the camera aspect and the backend viewport.
func (r *Renderer) Resize(width, height int) {
	r.camera.SetAspect(width, height)
	r.backend.Resize(width, height)
}

// Running reports whether the frame loop is active.
func (r *Renderer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Start launches the frame loop. Starting a running renderer is a no-op.
func (r *Renderer) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	go r.loop(loopCtx, done)
}

// Stop ends the frame loop, waits for it and disposes backend resources.
// Stopping a stopped renderer is a no-op.
func (r *Renderer) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	r.backend.Dispose()
	r.mu.Lock()
	r.dirty = r.buffers != nil
	r.mu.Unlock()
	r.logger.Debug("renderer stopped")
}

func (r *Renderer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RenderFrame()
		}
	}
}

// RenderFrame renders a single frame synchronously.
func (r *Renderer) RenderFrame() Frame {
	r.camera.Update()
	frame := Frame{Camera: r.camera.State()}

	if r.player != nil {
		st := r.player.Tick()
		frame.Time, frame.Duration, frame.Playing = st.CurrentTime, st.Duration, st.Playing
		if sample, ok := r.player.Timeline().Sample(st.CurrentTime); ok {
			frame.HasMarker = true
			frame.Marker = [3]float32{float32(sample.Position.X()), float32(sample.Position.Y()), float32(sample.Position.Z())}
			frame.DrawCount = sample.DrawCount
		}
	}

	r.mu.Lock()
	if r.dirty {
		frame.Scene = r.buffers
	}
	onFrame := r.onFrame
	r.mu.Unlock()

	if err := r.backend.Upload(frame); err != nil {
		r.mu.Lock()
		first := !r.failing
		r.failing = true
		r.mu.Unlock()
		if first {
			logging.WarnWithContext(r.logger, "frame upload failed", "render_upload_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the scene view is not updating"))
		}
		return frame
	}

	r.mu.Lock()
	if frame.Scene != nil && r.buffers == frame.Scene {
		r.dirty = false
	}
	r.failing = false
	r.mu.Unlock()

	if onFrame != nil {
		onFrame(frame)
	}
	return frame
}
