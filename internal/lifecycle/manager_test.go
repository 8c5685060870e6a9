package lifecycle_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"recomo/internal/lifecycle"
	"recomo/internal/projectcache"
	"recomo/internal/services"
	"recomo/internal/sfm"
	"recomo/internal/testsupport"
)

type harness struct {
	fake    *testsupport.FakeSFM
	cache   *projectcache.Cache
	manager *lifecycle.Manager
	video   string
}

func newHarness(t *testing.T, opts ...func(*lifecycle.Options)) *harness {
	t.Helper()
	fake := testsupport.NewFakeSFM(t)
	client, err := sfm.New(fake.BaseURL(), sfm.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("sfm.New returned error: %v", err)
	}
	cache := projectcache.New(projectcache.NewMemoryStore(), nil)
	options := lifecycle.Options{
		Client:       client,
		Cache:        cache,
		Locker:       projectcache.NewKeyLocker(t.TempDir()),
		PollInterval: 5 * time.Millisecond,
		Preview:      true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	manager, err := lifecycle.New(options)
	if err != nil {
		t.Fatalf("lifecycle.New returned error: %v", err)
	}
	t.Cleanup(manager.Close)
	return &harness{
		fake:    fake,
		cache:   cache,
		manager: manager,
		video:   fake.AddVideo("reference.mp4", []byte("fake-video")),
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEnsureDataReadyEndToEnd(t *testing.T) {
	h := newHarness(t)
	id := h.fake.NextProjectID()
	h.fake.ScriptStatus(id,
		sfm.Status{Text: "pending"},
		sfm.Status{Text: "执行中"},
		sfm.Status{Text: "执行中", HasPointCloud: true},
	)

	result, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-1", VideoURL: h.video})
	if err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}

	uploads := h.fake.Uploads()
	if len(uploads) != 1 || uploads[0].ForceNew || uploads[0].Size != len("fake-video") {
		t.Fatalf("expected one normal upload, got %+v", uploads)
	}
	if h.fake.Starts(id) != 1 {
		t.Fatalf("expected reconstruction started once, got %d", h.fake.Starts(id))
	}
	if h.fake.StatusCalls(id) != 3 {
		t.Fatalf("expected polling until artifacts appear (3 status calls), got %d", h.fake.StatusCalls(id))
	}
	if result.Cloud.Empty() || result.Path.Empty() {
		t.Fatalf("expected non-empty scene, got %d points %d poses", result.Cloud.Len(), result.Path.Len())
	}
	if result.Project.ID != id || result.Project.SourceKey != "tpl-1" {
		t.Fatalf("unexpected project %+v", result.Project)
	}
	if cached, ok := h.cache.GetProjectID("tpl-1"); !ok || cached != id {
		t.Fatalf("expected cache tpl-1 -> %s, got %q", id, cached)
	}
	if h.fake.Fetches("cloud.ply") != 1 || h.fake.Fetches("poses.txt") != 1 {
		t.Fatalf("expected exactly one load, got cloud=%d poses=%d", h.fake.Fetches("cloud.ply"), h.fake.Fetches("poses.txt"))
	}
}

func TestEnsureDataReadyStaleProjectSelfHeals(t *testing.T) {
	h := newHarness(t)
	if err := h.cache.SetProjectID("tpl-1", "stale"); err != nil {
		t.Fatalf("SetProjectID returned error: %v", err)
	}
	h.fake.ScriptStatus("stale", sfm.Status{Text: "Error: No such file or directory"})

	result, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-1", VideoURL: h.video})
	if err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}
	uploads := h.fake.Uploads()
	if len(uploads) != 1 || !uploads[0].ForceNew {
		t.Fatalf("expected exactly one forced upload, got %+v", uploads)
	}
	if cached, _ := h.cache.GetProjectID("tpl-1"); cached != uploads[0].ProjectID {
		t.Fatalf("expected cache to hold recreated project %s, got %q", uploads[0].ProjectID, cached)
	}
	if result.Project.ID != uploads[0].ProjectID {
		t.Fatalf("expected scene for recreated project, got %+v", result.Project)
	}
	if h.fake.StatusCalls("stale") != 1 {
		t.Fatalf("stale project should be checked once, got %d", h.fake.StatusCalls("stale"))
	}
}

func TestEnsureDataReadySecondMissingIsTerminal(t *testing.T) {
	h := newHarness(t)
	if err := h.cache.SetProjectID("tpl-1", "stale"); err != nil {
		t.Fatalf("SetProjectID returned error: %v", err)
	}
	h.fake.ScriptStatus("stale", sfm.Status{Text: "not found"})
	h.fake.ScriptStatus(h.fake.NextProjectID(), sfm.Status{Text: "项目不存在"})

	_, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-1", VideoURL: h.video})
	var missing *lifecycle.MissingProjectError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingProjectError, got %v", err)
	}
	if !errors.Is(err, services.ErrMissingProject) || services.Recoverable(err) {
		t.Fatalf("expected terminal missing-project classification, got %v", err)
	}
	if uploads := h.fake.Uploads(); len(uploads) != 1 || !uploads[0].ForceNew {
		t.Fatalf("expected exactly one forced recreation, got %+v", uploads)
	}
	if _, ok := h.cache.GetProjectID("tpl-1"); ok {
		t.Fatal("expected cache entry to be evicted")
	}
}

func TestEnsureDataReadyMissingDuringPoll(t *testing.T) {
	h := newHarness(t)
	h.fake.ScriptStatus("p-0", sfm.Status{Text: "执行中"}, sfm.Status{Text: "没有这样的文件"})

	result, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-2", ProjectID: "p-0", VideoURL: h.video})
	if err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}
	uploads := h.fake.Uploads()
	if len(uploads) != 1 || !uploads[0].ForceNew || result.Project.ID != uploads[0].ProjectID {
		t.Fatalf("expected recreation from poll, got uploads=%+v project=%+v", uploads, result.Project)
	}
	if h.fake.Starts("p-0") != 0 {
		t.Fatal("running project must not be restarted")
	}
}

func TestEnsureDataReadyCompletionTextWithoutArtifactsStartsReconstruction(t *testing.T) {
	h := newHarness(t)
	h.fake.ScriptStatus("p-done",
		sfm.Status{Text: "done"},
		sfm.Status{Text: "完成", HasPointCloud: true, HasCameraPoses: true},
	)

	result, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-done", ProjectID: "p-done"})
	if err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}
	if h.fake.Starts("p-done") != 1 {
		t.Fatalf("expected reconstruction started once, got %d", h.fake.Starts("p-done"))
	}
	if h.fake.StatusCalls("p-done") != 2 {
		t.Fatalf("expected a poll after starting (2 status calls), got %d", h.fake.StatusCalls("p-done"))
	}
	if result.Project.ID != "p-done" || h.fake.Fetches("cloud.ply") != 1 {
		t.Fatalf("expected one load of p-done, got %+v cloud=%d", result.Project, h.fake.Fetches("cloud.ply"))
	}
}

func TestEnsureDataReadyProgressTextPollsWithoutRestart(t *testing.T) {
	h := newHarness(t)
	h.fake.ScriptStatus("p-run",
		sfm.Status{Text: "running (40% complete)"},
		sfm.Status{Text: "processing, not done yet"},
		sfm.Status{Text: "完成", HasPointCloud: true, HasCameraPoses: true},
	)

	if _, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-run", ProjectID: "p-run"}); err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}
	if h.fake.Starts("p-run") != 0 {
		t.Fatalf("running project must not be restarted, got %d starts", h.fake.Starts("p-run"))
	}
	if h.fake.StatusCalls("p-run") != 3 {
		t.Fatalf("expected polling until artifacts appear (3 status calls), got %d", h.fake.StatusCalls("p-run"))
	}
	if h.fake.Fetches("cloud.ply") != 1 {
		t.Fatalf("expected exactly one load, got %d", h.fake.Fetches("cloud.ply"))
	}
}

func TestEnsureDataReadyWithoutInputIsConfigurationError(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-empty"})
	var cfgErr *lifecycle.ConfigurationError
	if !errors.As(err, &cfgErr) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(h.fake.Uploads()) != 0 {
		t.Fatal("no upload expected")
	}
}

func TestEnsureDataReadySuppliedProjectIsCachedAfterStatus(t *testing.T) {
	h := newHarness(t)
	result, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "tpl-3", ProjectID: "given"})
	if err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}
	if result.Project.ID != "given" || len(h.fake.Uploads()) != 0 || h.fake.Starts("given") != 0 {
		t.Fatalf("expected direct load of supplied project, got %+v", result.Project)
	}
	if cached, _ := h.cache.GetProjectID("tpl-3"); cached != "given" {
		t.Fatalf("expected confirmed project to be cached, got %q", cached)
	}
}

func TestEnsureDataReadyRemoteStatusErrorIsNotCached(t *testing.T) {
	fake := testsupport.NewFakeSFM(t)
	client, err := sfm.New(fake.Server.URL + "/missing-api")
	if err != nil {
		t.Fatalf("sfm.New returned error: %v", err)
	}
	cache := projectcache.New(nil, nil)
	manager, err := lifecycle.New(lifecycle.Options{Client: client, Cache: cache})
	if err != nil {
		t.Fatalf("lifecycle.New returned error: %v", err)
	}

	_, err = manager.EnsureDataReady(testContext(t), lifecycle.Request{SourceKey: "k", ProjectID: "p"})
	if !errors.Is(err, services.ErrRemote) || !services.Recoverable(err) {
		t.Fatalf("expected recoverable remote error, got %v", err)
	}
	if _, ok := cache.GetProjectID("k"); ok {
		t.Fatal("cache must not be written before status is confirmed")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	first, err := h.manager.Load(ctx, "p-9")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	second, err := h.manager.Load(ctx, "p-9")
	if err != nil {
		t.Fatalf("second Load returned error: %v", err)
	}
	if first != second {
		t.Fatal("expected the same result for a repeated load")
	}
	if h.fake.Fetches("cloud.ply") != 1 || h.fake.Fetches("poses.txt") != 1 {
		t.Fatalf("expected decode work once, got cloud=%d poses=%d", h.fake.Fetches("cloud.ply"), h.fake.Fetches("poses.txt"))
	}
}

func TestLoadEmptyCloudIsDecodeError(t *testing.T) {
	h := newHarness(t)
	h.fake.SetArtifacts("ply\nend_header\n", testsupport.DefaultPoses)
	_, err := h.manager.Load(testContext(t), "p-1")
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, ok := h.manager.Loaded(); ok {
		t.Fatal("failed load must not mark the project loaded")
	}
}

func TestInvalidateClearsCacheAndScene(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	if _, err := h.manager.EnsureDataReady(ctx, lifecycle.Request{SourceKey: "tpl", ProjectID: "p-5"}); err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}
	if err := h.manager.Invalidate("tpl"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	if _, ok := h.cache.GetProjectID("tpl"); ok {
		t.Fatal("expected cache entry removed")
	}
	if _, ok := h.manager.Loaded(); ok {
		t.Fatal("expected loaded scene dropped")
	}
	if _, err := h.manager.Load(ctx, "p-5"); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if h.fake.Fetches("cloud.ply") != 2 {
		t.Fatalf("expected reload after invalidate, got %d fetches", h.fake.Fetches("cloud.ply"))
	}
}

func TestLocalVideoPathIsUploaded(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, path, 2048)

	if _, err := h.manager.EnsureDataReady(testContext(t), lifecycle.Request{VideoURL: path}); err != nil {
		t.Fatalf("EnsureDataReady returned error: %v", err)
	}
	if uploads := h.fake.Uploads(); len(uploads) != 1 || uploads[0].Size != 2048 {
		t.Fatalf("expected local file upload, got %+v", uploads)
	}
	if _, ok := h.cache.GetProjectID(path); !ok {
		t.Fatal("expected video path to serve as source key")
	}
}

func TestStartSupersedesPreviousRun(t *testing.T) {
	var mu sync.Mutex
	var updates []lifecycle.Update
	h := newHarness(t, func(o *lifecycle.Options) {
		o.OnStatus = func(u lifecycle.Update) {
			mu.Lock()
			updates = append(updates, u)
			mu.Unlock()
		}
	})
	h.fake.ScriptStatus("slow", sfm.Status{Text: "执行中"})

	firstDone := make(chan struct{}, 1)
	h.manager.Start(context.Background(), lifecycle.Request{SourceKey: "a", ProjectID: "slow"}, func(*lifecycle.Result, error) {
		firstDone <- struct{}{}
	})
	deadline := time.Now().Add(5 * time.Second)
	for h.fake.StatusCalls("slow") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	type outcome struct {
		result *lifecycle.Result
		err    error
	}
	second := make(chan outcome, 1)
	h.manager.Start(context.Background(), lifecycle.Request{SourceKey: "b", ProjectID: "fast"}, func(r *lifecycle.Result, err error) {
		second <- outcome{r, err}
	})

	select {
	case got := <-second:
		if got.err != nil || got.result.Project.ID != "fast" {
			t.Fatalf("unexpected second run outcome: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second run did not finish")
	}

	select {
	case <-firstDone:
		t.Fatal("superseded run must not report completion")
	default:
	}
	calls := h.fake.StatusCalls("slow")
	time.Sleep(30 * time.Millisecond)
	if h.fake.StatusCalls("slow") != calls {
		t.Fatal("superseded poll loop kept running")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) == 0 || updates[len(updates)-1].Message != "ready" {
		t.Fatalf("expected final ready update, got %+v", updates)
	}
}

func TestCloseStopsPolling(t *testing.T) {
	h := newHarness(t)
	h.fake.ScriptStatus("slow", sfm.Status{Text: "执行中"})
	h.manager.Start(context.Background(), lifecycle.Request{SourceKey: "a", ProjectID: "slow"}, nil)

	deadline := time.Now().Add(5 * time.Second)
	for h.fake.StatusCalls("slow") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.manager.Close()
	calls := h.fake.StatusCalls("slow")
	time.Sleep(30 * time.Millisecond)
	if h.fake.StatusCalls("slow") != calls {
		t.Fatal("polling continued after Close")
	}
}
