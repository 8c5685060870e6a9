package viewer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"recomo/internal/lifecycle"
	"recomo/internal/logging"
	"recomo/internal/playback"
	"recomo/internal/scene"
	"recomo/internal/services"
	"recomo/internal/sfm"
)

const (
	defaultSamplePoints = 1500
	sampleSeed          = 42
)

// Phase is the coarse state the viewer presents.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// Stats summarizes the displayed scene.
type Stats struct {
	Points  int
	Cameras int
}

// ViewState is the single state object a UI renders from.
type ViewState struct {
	Phase     Phase
	Message   string
	Status    sfm.ProjectStatus
	ProjectID string
	Stats     Stats
	// Recoverable reports whether Retry is worth offering.
	Recoverable bool
	// Sample is set when synthetic data is shown.
	Sample bool
}

// Options configures a Viewer.
type Options struct {
	Lifecycle     lifecycle.Options
	Backend       Backend
	Video         playback.VideoElement
	FrameInterval time.Duration
	SamplePoints  int
	Logger        *slog.Logger
	OnChange      func(ViewState)
}

// Viewer glues the project lifecycle, playback and rendering together.
type Viewer struct {
	manager      *lifecycle.Manager
	player       *playback.Player
	renderer     *Renderer
	samplePoints int
	logger       *slog.Logger
	onChange     func(ViewState)

	mu      sync.Mutex
	state   ViewState
	request lifecycle.Request
	ctx     context.Context
}

// New builds a viewer. Nothing runs until Open or UseSample.
func New(opts Options) (*Viewer, error) {
	v := &Viewer{
		samplePoints: opts.SamplePoints,
		logger:       logging.NewComponentLogger(opts.Logger, "viewer"),
		onChange:     opts.OnChange,
		state:        ViewState{Phase: PhaseLoading, Status: sfm.StatusUnknown},
	}
	if v.samplePoints <= 0 {
		v.samplePoints = defaultSamplePoints
	}

	lifecycleOpts := opts.Lifecycle
	if lifecycleOpts.Logger == nil {
		lifecycleOpts.Logger = opts.Logger
	}
	forward := lifecycleOpts.OnStatus
	lifecycleOpts.OnStatus = func(update lifecycle.Update) {
		v.statusUpdate(update)
		if forward != nil {
			forward(update)
		}
	}
	manager, err := lifecycle.New(lifecycleOpts)
	if err != nil {
		return nil, err
	}
	v.manager = manager

	var clock playback.Clock
	if opts.Video != nil {
		clock = playback.VideoClock{Video: opts.Video}
	}
	v.player = playback.NewPlayer(playback.NewTimeline(scene.CameraPath{}), clock)
	v.renderer = NewRenderer(opts.Backend, v.player, DefaultOrbitCamera(), opts.FrameInterval, opts.Logger)
	return v, nil
}

// Player returns the playback controller.
func (v *Viewer) Player() *playback.Player { return v.player }

// Renderer returns the frame loop.
func (v *Viewer) Renderer() *Renderer { return v.renderer }

// State returns the current view state.
func (v *Viewer) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Open starts preparing the scene for req. Progress and the outcome are
// reported through ViewState.
func (v *Viewer) Open(ctx context.Context, req lifecycle.Request) {
	v.mu.Lock()
	v.request = req
	v.ctx = ctx
	v.mu.Unlock()

	v.setState(func(s *ViewState) {
		*s = ViewState{Phase: PhaseLoading, Message: "Preparing scene", Status: sfm.StatusUnknown, ProjectID: req.ProjectID}
	})
	v.manager.Start(ctx, req, func(result *lifecycle.Result, err error) {
		if err != nil {
			v.fail(err)
			return
		}
		v.present(result.Cloud, result.Path, false)
		v.setState(func(s *ViewState) {
			s.ProjectID = result.Project.ID
			s.Status = result.Project.Status
		})
	})
}

// Retry reruns the last Open request.
func (v *Viewer) Retry() {
	v.mu.Lock()
	req, ctx := v.request, v.ctx
	v.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	v.Open(ctx, req)
}

// Rebuild forgets the cached project for the last request and opens it again,
// which creates a fresh reconstruction.
func (v *Viewer) Rebuild() error {
	v.mu.Lock()
	req := v.request
	v.mu.Unlock()
	v.manager.Close()
	v.renderer.Stop()
	v.renderer.SetScene(nil)
	if err := v.manager.Invalidate(req.SourceKey); err != nil {
		v.fail(err)
		return err
	}
	req.ProjectID = ""
	v.mu.Lock()
	v.request = req
	v.mu.Unlock()
	v.Retry()
	return nil
}

// UseSample abandons any running lifecycle and shows synthetic data.
func (v *Viewer) UseSample() {
	v.manager.Close()
	v.present(scene.SamplePointCloud(v.samplePoints, sampleSeed), scene.SampleCameraPath(), true)
}

// Close stops the lifecycle run and the frame loop.
func (v *Viewer) Close() {
	v.manager.Close()
	v.renderer.Stop()
}

func (v *Viewer) present(cloud scene.PointCloud, path scene.CameraPath, sample bool) {
	cameras := path.Len()
	if cameras < 2 {
		path = scene.SampleCameraPath()
	}
	buffers := BuildBuffers(cloud, path)

	v.player.Pause()
	v.player.Timeline().SetPath(scene.DisplayPath(path))
	v.player.Scrub(0)
	v.renderer.SetScene(buffers)

	v.mu.Lock()
	ctx := v.ctx
	v.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	v.renderer.Start(context.WithoutCancel(ctx))

	v.setState(func(s *ViewState) {
		s.Phase = PhaseReady
		s.Message = ""
		s.Recoverable = false
		s.Sample = sample
		s.Stats = Stats{Points: cloud.Len(), Cameras: cameras}
		if sample {
			s.Status = sfm.StatusUnknown
			s.ProjectID = ""
		}
	})
	v.logger.Info("scene ready",
		logging.Int("points", cloud.Len()),
		logging.Int("cameras", cameras),
		logging.Bool("sample", sample))
}

func (v *Viewer) fail(err error) {
	var missing *lifecycle.MissingProjectError
	hint := "retry or rebuild the project"
	if errors.As(err, &missing) {
		hint = "rebuild the project from the reference video"
	}
	logging.WarnWithContext(v.logger, "scene unavailable", "viewer_failed",
		logging.Error(err),
		logging.String("error_kind", services.Kind(err)),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "the scene is not displayed"))
	v.setState(func(s *ViewState) {
		s.Phase = PhaseError
		s.Message = err.Error()
		s.Recoverable = services.Recoverable(err)
	})
}

func (v *Viewer) statusUpdate(update lifecycle.Update) {
	v.setState(func(s *ViewState) {
		if s.Phase == PhaseReady {
			return
		}
		if update.ProjectID != "" {
			s.ProjectID = update.ProjectID
		}
		if update.Status != "" {
			s.Status = update.Status
		}
		if update.Message != "" {
			s.Message = update.Message
		}
	})
}

func (v *Viewer) setState(mutate func(*ViewState)) {
	v.mu.Lock()
	mutate(&v.state)
	snapshot := v.state
	onChange := v.onChange
	v.mu.Unlock()
	if onChange != nil {
		onChange(snapshot)
	}
}
