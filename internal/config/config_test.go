package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"recomo/internal/config"
)

func clearRecomoEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"RECOMO_SFM_API_BASE", "VITE_SFM_API_BASE", "PORT", "STORAGE_BASE_PATH", "RECOMO_RELAY_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearRecomoEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "recomo")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Cache.Path != filepath.Join(wantData, "project_cache.json") {
		t.Fatalf("unexpected cache path: %q", cfg.Cache.Path)
	}
	if cfg.Reconstruction.BaseURL != config.Default().Reconstruction.BaseURL {
		t.Fatalf("unexpected base url: %q", cfg.Reconstruction.BaseURL)
	}
	if cfg.Reconstruction.MaxPoints != 100000 {
		t.Fatalf("expected 100000 max points, got %d", cfg.Reconstruction.MaxPoints)
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Fatalf("expected 2s poll interval, got %s", cfg.PollInterval())
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %s", cfg.RequestTimeout())
	}
	if cfg.TransferTimeout() != 10*time.Minute {
		t.Fatalf("expected 10m transfer timeout, got %s", cfg.TransferTimeout())
	}
	if cfg.Relay.Bind != ":3001" {
		t.Fatalf("unexpected relay bind: %q", cfg.Relay.Bind)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearRecomoEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "recomo.toml")

	type payload struct {
		Reconstruction struct {
			BaseURL      string `toml:"base_url"`
			PollInterval int    `toml:"poll_interval"`
		} `toml:"reconstruction"`
		Cache struct {
			Backend string `toml:"backend"`
		} `toml:"cache"`
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.Reconstruction.BaseURL = "https://sfm.example.com/api/"
	custom.Reconstruction.PollInterval = 5
	custom.Cache.Backend = "SQLite"
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Reconstruction.BaseURL != "https://sfm.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Reconstruction.BaseURL)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Fatalf("expected poll interval 5s, got %s", cfg.PollInterval())
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Fatalf("expected backend lowercased, got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.Path != filepath.Join(tempDir, "data", "project_cache.db") {
		t.Fatalf("unexpected sqlite cache path: %q", cfg.Cache.Path)
	}
}

func TestEnvOverridesReconstructionAndRelay(t *testing.T) {
	clearRecomoEnv(t)
	storage := t.TempDir()
	t.Setenv("VITE_SFM_API_BASE", "http://10.0.0.5:7000/api")
	t.Setenv("PORT", "4100")
	t.Setenv("STORAGE_BASE_PATH", storage)
	t.Setenv("RECOMO_RELAY_TOKEN", " s3cret ")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Reconstruction.BaseURL != "http://10.0.0.5:7000/api" {
		t.Errorf("expected base url from env, got %q", cfg.Reconstruction.BaseURL)
	}
	if cfg.Relay.Bind != ":4100" {
		t.Errorf("expected relay bind from PORT, got %q", cfg.Relay.Bind)
	}
	if cfg.Relay.StorageBasePath != storage {
		t.Errorf("expected storage from env, got %q", cfg.Relay.StorageBasePath)
	}
	if cfg.Relay.Token != "s3cret" {
		t.Errorf("expected trimmed relay token from env, got %q", cfg.Relay.Token)
	}

	t.Setenv("RECOMO_SFM_API_BASE", "https://primary.example.com/api")
	cfg, _, _, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Reconstruction.BaseURL != "https://primary.example.com/api" {
		t.Errorf("expected RECOMO_SFM_API_BASE to win, got %q", cfg.Reconstruction.BaseURL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[reconstruction]") {
		t.Fatalf("sample config missing reconstruction section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Reconstruction.MaxPoints != 100000 {
		t.Fatalf("expected sample max_points 100000, got %d", cfg.Reconstruction.MaxPoints)
	}
	if !strings.Contains(cfg.Paths.DataDir, "recomo") {
		t.Fatalf("expected data dir to contain recomo, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Reconstruction.BaseURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http base url")
	}

	cfg = config.Default()
	cfg.Cache.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported cache backend")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}

	cfg = config.Default()
	cfg.Playback.FrameRate = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for excessive frame rate")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestNegativeTimeoutsDisableDeadlines(t *testing.T) {
	clearRecomoEnv(t)
	configPath := filepath.Join(t.TempDir(), "recomo.toml")
	content := "[reconstruction]\nrequest_timeout = -1\ntransfer_timeout = -1\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled timeouts to validate, got %v", err)
	}
	if cfg.RequestTimeout() != 0 || cfg.TransferTimeout() != 0 {
		t.Fatalf("expected disabled timeouts, got request=%s transfer=%s", cfg.RequestTimeout(), cfg.TransferTimeout())
	}
}

func TestFrameIntervalFallsBackToDefaultRate(t *testing.T) {
	cfg := config.Default()
	cfg.Playback.FrameRate = 0
	if got := cfg.FrameInterval(); got != time.Second/60 {
		t.Fatalf("expected 60fps frame interval, got %s", got)
	}
}
