package viewer_test

import (
	"context"
	"testing"
	"time"

	"recomo/internal/lifecycle"
	"recomo/internal/playback"
	"recomo/internal/projectcache"
	"recomo/internal/sfm"
	"recomo/internal/testsupport"
	"recomo/internal/viewer"
)

func newViewer(t *testing.T, fake *testsupport.FakeSFM, backend viewer.Backend) *viewer.Viewer {
	t.Helper()
	client, err := sfm.New(fake.BaseURL(), sfm.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("sfm.New returned error: %v", err)
	}
	v, err := viewer.New(viewer.Options{
		Lifecycle: lifecycle.Options{
			Client:       client,
			Cache:        projectcache.New(projectcache.NewMemoryStore(), nil),
			Locker:       projectcache.NewKeyLocker(t.TempDir()),
			PollInterval: 5 * time.Millisecond,
		},
		Backend:       backend,
		FrameInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("viewer.New returned error: %v", err)
	}
	t.Cleanup(v.Close)
	return v
}

func waitSettled(t *testing.T, v *viewer.Viewer) viewer.ViewState {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if st := v.State(); st.Phase != viewer.PhaseLoading {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("viewer still loading: %+v", v.State())
	return viewer.ViewState{}
}

func TestViewerOpenReachesReady(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	backend := &viewer.NullBackend{}
	v := newViewer(t, fake, backend)

	video := fake.AddVideo("ref.mp4", []byte("video"))
	v.Open(context.Background(), lifecycle.Request{SourceKey: "tmpl-1", VideoURL: video})

	st := waitSettled(t, v)
	if st.Phase != viewer.PhaseReady {
		t.Fatalf("expected ready, got %+v", st)
	}
	if st.Stats.Points != 3 || st.Stats.Cameras != 2 {
		t.Fatalf("unexpected stats %+v", st.Stats)
	}
	if st.ProjectID == "" || st.Status != sfm.StatusComplete {
		t.Fatalf("expected completed project in state, got %+v", st)
	}
	if !v.Renderer().Running() {
		t.Fatal("expected renderer to run once ready")
	}
	if got := v.Player().State().Duration; got != 10 {
		t.Fatalf("expected duration 10, got %v", got)
	}
}

func TestViewerDecodeErrorThenRetry(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	fake.SetArtifacts("ply\nend_header\n", testsupport.DefaultPoses)
	v := newViewer(t, fake, nil)

	video := fake.AddVideo("ref.mp4", []byte("video"))
	v.Open(context.Background(), lifecycle.Request{SourceKey: "tmpl-1", VideoURL: video})
	st := waitSettled(t, v)
	if st.Phase != viewer.PhaseError {
		t.Fatalf("expected error phase, got %+v", st)
	}
	if !st.Recoverable || st.Message == "" {
		t.Fatalf("expected recoverable error with message, got %+v", st)
	}

	fake.SetArtifacts(testsupport.DefaultCloud, testsupport.DefaultPoses)
	v.Retry()
	st = waitSettled(t, v)
	if st.Phase != viewer.PhaseReady {
		t.Fatalf("expected ready after retry, got %+v", st)
	}
	if len(fake.Uploads()) != 1 {
		t.Fatalf("expected retry to reuse cached project, got %d uploads", len(fake.Uploads()))
	}
}

func TestViewerConfigurationErrorIsTerminal(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	v := newViewer(t, fake, nil)

	v.Open(context.Background(), lifecycle.Request{SourceKey: "tmpl-1"})
	st := waitSettled(t, v)
	if st.Phase != viewer.PhaseError || st.Recoverable {
		t.Fatalf("expected terminal error, got %+v", st)
	}
}

func TestViewerUseSample(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	v := newViewer(t, fake, nil)

	v.Open(context.Background(), lifecycle.Request{SourceKey: "tmpl-1"})
	waitSettled(t, v)
	v.UseSample()

	st := v.State()
	if st.Phase != viewer.PhaseReady || !st.Sample {
		t.Fatalf("expected sample scene, got %+v", st)
	}
	if st.Stats.Points != 1500 || st.Stats.Cameras != 20 {
		t.Fatalf("unexpected sample stats %+v", st.Stats)
	}
}

func TestViewerShortPathFallsBackToSampleTrajectory(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	fake.SetArtifacts(testsupport.DefaultCloud, "0 0 0 0 0 0 0 1\n")
	v := newViewer(t, fake, nil)

	video := fake.AddVideo("ref.mp4", []byte("video"))
	v.Open(context.Background(), lifecycle.Request{SourceKey: "tmpl-1", VideoURL: video})
	st := waitSettled(t, v)
	if st.Phase != viewer.PhaseReady || st.Stats.Cameras != 1 {
		t.Fatalf("expected ready with one camera, got %+v", st)
	}
	if got := v.Player().Timeline().Len(); got != 20 {
		t.Fatalf("expected sample trajectory on the timeline, got %d poses", got)
	}
}

func TestViewerRebuildCreatesNewProject(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	v := newViewer(t, fake, nil)

	video := fake.AddVideo("ref.mp4", []byte("video"))
	v.Open(context.Background(), lifecycle.Request{SourceKey: "tmpl-1", VideoURL: video})
	first := waitSettled(t, v)

	if err := v.Rebuild(); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}
	second := waitSettled(t, v)
	if second.Phase != viewer.PhaseReady {
		t.Fatalf("expected ready after rebuild, got %+v", second)
	}
	if second.ProjectID == first.ProjectID {
		t.Fatalf("expected a new project, still %s", second.ProjectID)
	}
	if len(fake.Uploads()) != 2 {
		t.Fatalf("expected two uploads, got %d", len(fake.Uploads()))
	}
}

func TestViewerFollowsVideoClock(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	client, err := sfm.New(fake.BaseURL())
	if err != nil {
		t.Fatalf("sfm.New returned error: %v", err)
	}
	video := &fakeVideo{}
	v, err := viewer.New(viewer.Options{
		Lifecycle:     lifecycle.Options{Client: client, PollInterval: 5 * time.Millisecond},
		Video:         video,
		FrameInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("viewer.New returned error: %v", err)
	}
	t.Cleanup(v.Close)

	v.UseSample()
	v.Player().Play()
	video.now = 4
	frame := v.Renderer().RenderFrame()
	if frame.Time != 4 || !frame.HasMarker {
		t.Fatalf("expected marker at video time 4, got %+v", frame)
	}
	if frame.Scene == nil {
		t.Fatal("expected first frame to carry the scene")
	}
}

type fakeVideo struct {
	now     float64
	playing bool
}

func (f *fakeVideo) CurrentTime() float64            { return f.now }
func (f *fakeVideo) SetCurrentTime(seconds float64) { f.now = seconds }
func (f *fakeVideo) Play()                           { f.playing = true }
func (f *fakeVideo) Pause()                          { f.playing = false }

var _ playback.VideoElement = (*fakeVideo)(nil)
