package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"recomo/internal/logging"
	"recomo/internal/projectcache"
	"recomo/internal/scene"
	"recomo/internal/services"
	"recomo/internal/sfm"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultMaxPollErrors = 10
)

// Request identifies the template whose scene should be prepared.
type Request struct {
	SourceKey string
	ProjectID string
	VideoURL  string
}

// Result is a loaded scene.
type Result struct {
	Project    sfm.Project
	Cloud      scene.PointCloud
	Path       scene.CameraPath
	DecodeKind scene.DecodeKind
}

// Update is emitted whenever the manager learns something the UI should show.
type Update struct {
	ProjectID string
	Status    sfm.ProjectStatus
	Message   string
}

// Options configures a Manager.
type Options struct {
	Client       sfm.Service
	Cache        *projectcache.Cache
	Locker       *projectcache.KeyLocker
	Downloader   Downloader
	PollInterval time.Duration
	// MaxPollErrors ends polling after this many consecutive status failures.
	// Negative polls until cancelled.
	MaxPollErrors int
	MaxPoints     int
	Preview       bool
	Logger        *slog.Logger
	OnStatus      func(Update)
}

// Manager owns the project lifecycle for one viewer.
type Manager struct {
	client        sfm.Service
	cache         *projectcache.Cache
	locker        *projectcache.KeyLocker
	download      Downloader
	pollInterval  time.Duration
	maxPollErrors int
	maxPoints     int
	preview       bool
	logger        *slog.Logger
	onStatus      func(Update)

	mu       sync.Mutex
	loadedID string
	loaded   *Result
	cancel   context.CancelFunc
	done     chan struct{}
}

// New constructs a Manager.
func New(opts Options) (*Manager, error) {
	if opts.Client == nil {
		return nil, errors.New("lifecycle: reconstruction client required")
	}
	m := &Manager{
		client:        opts.Client,
		cache:         opts.Cache,
		locker:        opts.Locker,
		download:      opts.Downloader,
		pollInterval:  opts.PollInterval,
		maxPollErrors: opts.MaxPollErrors,
		maxPoints:     opts.MaxPoints,
		preview:       opts.Preview,
		logger:        logging.NewComponentLogger(opts.Logger, "lifecycle"),
		onStatus:      opts.OnStatus,
	}
	if m.cache == nil {
		m.cache = projectcache.New(projectcache.NewMemoryStore(), opts.Logger)
	}
	if m.locker == nil {
		m.locker = projectcache.NewKeyLocker("")
	}
	if m.download == nil {
		m.download = defaultDownloader(opts.Client)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if m.maxPollErrors == 0 {
		m.maxPollErrors = defaultMaxPollErrors
	}
	if m.maxPoints <= 0 {
		m.maxPoints = scene.DefaultMaxPoints
	}
	return m, nil
}

// Start runs EnsureDataReady in the background, cancelling any previous run
// and waiting for it to exit first. done is called with the outcome unless the
// run was superseded or closed.
func (m *Manager) Start(ctx context.Context, req Request, done func(*Result, error)) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	previous := m.done
	runCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})
	m.cancel = cancel
	m.done = finished
	m.mu.Unlock()

	go func() {
		defer close(finished)
		defer cancel()
		if previous != nil {
			<-previous
		}
		if runCtx.Err() != nil {
			return
		}
		result, err := m.EnsureDataReady(runCtx, req)
		if runCtx.Err() != nil {
			return
		}
		if done != nil {
			done(result, err)
		}
	}()
}

// Close cancels the active run and waits for it to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel, finished := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if finished != nil {
		<-finished
	}
}

// Loaded returns the most recently loaded scene, if any.
func (m *Manager) Loaded() (*Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded, m.loaded != nil
}

// Invalidate forgets the cached project for sourceKey and the loaded scene so
// the next run recreates the project.
func (m *Manager) Invalidate(sourceKey string) error {
	m.resetLoaded()
	return m.cache.ClearProjectID(sourceKey)
}

// EnsureDataReady resolves, creates, checks, polls and loads the project for
// req. It blocks until the scene is loaded, a terminal error occurs or ctx ends.
func (m *Manager) EnsureDataReady(ctx context.Context, req Request) (*Result, error) {
	req = normalizeRequest(req)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithSourceKey(ctx, req.SourceKey)

	projectID, err := m.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.checkAndLoad(ctx, req, projectID, false)
}

func normalizeRequest(req Request) Request {
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	req.SourceKey = strings.TrimSpace(req.SourceKey)
	if req.SourceKey == "" {
		req.SourceKey = projectcache.SourceKey("", req.VideoURL, "")
	}
	return req
}

// resolve picks the cached id, else the caller's id, else uploads the video.
func (m *Manager) resolve(ctx context.Context, req Request) (string, error) {
	if id, ok := m.cache.GetProjectID(req.SourceKey); ok {
		m.log(ctx).Debug("using cached project", logging.String(logging.FieldProjectID, id))
		return id, nil
	}
	if req.ProjectID != "" {
		return req.ProjectID, nil
	}
	if req.VideoURL == "" {
		return "", &ConfigurationError{Message: "no project id or video url for template"}
	}

	unlock, err := m.locker.Lock(ctx, req.SourceKey)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Another holder may have created the project while we waited.
	if id, ok := m.cache.GetProjectID(req.SourceKey); ok {
		return id, nil
	}
	return m.create(ctx, req, false)
}

// create downloads the reference video, uploads it and caches the new id.
func (m *Manager) create(ctx context.Context, req Request, forceNew bool) (string, error) {
	if req.VideoURL == "" {
		return "", &ConfigurationError{Message: "missing video url, cannot create project"}
	}
	m.emit("", sfm.StatusUnknown, "uploading video")

	video, err := m.download(ctx, req.VideoURL)
	if err != nil {
		return "", fmt.Errorf("download reference video: %w", err)
	}
	id, err := m.client.CreateProject(ctx, video, "", forceNew)
	if err != nil {
		return "", err
	}
	m.log(ctx).Info("created reconstruction project",
		logging.String(logging.FieldEventType, "project_created"),
		logging.String(logging.FieldProjectID, id),
		logging.Bool("force_new", forceNew),
		logging.Int("video_bytes", len(video)))
	if err := m.cache.SetProjectID(req.SourceKey, id); err != nil {
		logging.WarnWithContext(m.log(ctx), "failed to cache project id", "projectcache_write_failed",
			logging.String(logging.FieldProjectID, id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the template will be uploaded again next time"))
	}
	return id, nil
}

// recreate evicts a stale project and uploads the video again with forceNew.
func (m *Manager) recreate(ctx context.Context, req Request, staleID string) (string, error) {
	logging.WarnWithContext(m.log(ctx), "project missing on reconstruction service, recreating", "project_missing",
		logging.String(logging.FieldProjectID, staleID),
		logging.String(logging.FieldErrorHint, "the service may have garbage-collected the project"),
		logging.String(logging.FieldImpact, "the reference video is uploaded and reconstructed again"))
	m.resetLoaded()
	if err := m.cache.ClearProjectID(req.SourceKey); err != nil {
		return "", err
	}
	return m.create(ctx, req, true)
}

func (m *Manager) checkAndLoad(ctx context.Context, req Request, projectID string, retrying bool) (*Result, error) {
	ctx = services.WithProjectID(ctx, projectID)
	m.emit(projectID, sfm.StatusUnknown, "checking reconstruction status")

	status, err := m.client.GetStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	m.emitStatus(projectID, status)

	if sfm.IsMissingProject(status) {
		return m.handleMissing(ctx, req, projectID, retrying)
	}

	if err := m.cache.SetProjectID(req.SourceKey, projectID); err != nil {
		logging.WarnWithContext(m.log(ctx), "failed to cache project id", "projectcache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the project will be resolved again next time"))
	}

	if status.HasArtifacts() {
		return m.Load(ctx, projectID)
	}
	if !status.Running() {
		m.emit(projectID, sfm.StatusQueued, "starting reconstruction")
		if err := m.client.StartReconstruction(ctx, projectID); err != nil {
			return nil, err
		}
		m.log(ctx).Info("reconstruction started",
			logging.String(logging.FieldEventType, "reconstruction_started"))
	}
	return m.poll(ctx, req, projectID, retrying)
}

func (m *Manager) handleMissing(ctx context.Context, req Request, projectID string, retrying bool) (*Result, error) {
	if retrying {
		m.resetLoaded()
		if err := m.cache.ClearProjectID(req.SourceKey); err != nil {
			m.log(ctx).Debug("clear cache after repeated miss failed", logging.Error(err))
		}
		m.emit(projectID, sfm.StatusMissing, "project missing after recreation")
		return nil, &MissingProjectError{SourceKey: req.SourceKey, ProjectID: projectID}
	}
	newID, err := m.recreate(ctx, req, projectID)
	if err != nil {
		return nil, err
	}
	return m.checkAndLoad(ctx, req, newID, true)
}

// poll re-checks status on a fixed interval until the service reports the
// job finished.
func (m *Manager) poll(ctx context.Context, req Request, projectID string, retrying bool) (*Result, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := m.client.GetStatus(ctx, projectID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			logging.WarnWithContext(m.log(ctx), "status poll failed", "status_poll_failed",
				logging.Error(err),
				logging.Int("consecutive_failures", failures),
				logging.String(logging.FieldImpact, "polling continues"))
			if m.maxPollErrors > 0 && failures >= m.maxPollErrors {
				return nil, err
			}
			continue
		}
		failures = 0
		m.emitStatus(projectID, status)

		if sfm.IsMissingProject(status) {
			return m.handleMissing(ctx, req, projectID, retrying)
		}
		if status.Finished() {
			return m.Load(ctx, projectID)
		}
	}
}

// Load fetches and decodes the project's artifacts. Loading the project that
// is already loaded returns the existing result without network or decode work.
func (m *Manager) Load(ctx context.Context, projectID string) (*Result, error) {
	m.mu.Lock()
	if m.loaded != nil && m.loadedID == projectID {
		result := m.loaded
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()

	ctx = services.WithProjectID(ctx, projectID)
	m.emit(projectID, sfm.StatusComplete, "loading point cloud")

	cloudURL, err := m.client.PointCloudURL(ctx, projectID, m.preview)
	if err != nil {
		return nil, err
	}
	posesURL, err := m.client.PosesURL(ctx, projectID)
	if err != nil {
		return nil, err
	}

	data, err := m.client.Fetch(ctx, cloudURL)
	if err != nil {
		return nil, err
	}
	decoded := scene.DecodePointCloud(data, m.maxPoints)
	if decoded.Kind == scene.Failed {
		return nil, decoded.Err
	}
	if decoded.Kind == scene.TextFallback {
		m.log(ctx).Debug("point cloud decoded through text fallback", logging.Error(decoded.BinaryErr))
	}

	var path scene.CameraPath
	if posesURL != "" {
		text, err := m.client.Fetch(ctx, posesURL)
		if err != nil {
			return nil, err
		}
		path = scene.ParseCameraPath(string(text))
	}

	sourceKey, _ := services.SourceKeyFromContext(ctx)
	result := &Result{
		Project:    sfm.Project{ID: projectID, SourceKey: sourceKey, Status: sfm.StatusComplete},
		Cloud:      decoded.Cloud,
		Path:       path,
		DecodeKind: decoded.Kind,
	}
	m.mu.Lock()
	m.loadedID = projectID
	m.loaded = result
	m.mu.Unlock()

	m.log(ctx).Info("scene loaded",
		logging.String(logging.FieldEventType, "scene_loaded"),
		logging.Int("points", result.Cloud.Len()),
		logging.Int("cameras", result.Path.Len()),
		logging.String("decode", decoded.Kind.String()))
	m.emit(projectID, sfm.StatusComplete, "ready")
	return result, nil
}

func (m *Manager) resetLoaded() {
	m.mu.Lock()
	m.loadedID = ""
	m.loaded = nil
	m.mu.Unlock()
}

func (m *Manager) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, m.logger)
}

func (m *Manager) emitStatus(projectID string, status sfm.Status) {
	message := strings.TrimSpace(status.Text)
	if message == "" {
		message = "unknown"
	}
	m.emit(projectID, status.Derive(), message)
}

func (m *Manager) emit(projectID string, status sfm.ProjectStatus, message string) {
	if m.onStatus != nil {
		m.onStatus(Update{ProjectID: projectID, Status: status, Message: message})
	}
}
