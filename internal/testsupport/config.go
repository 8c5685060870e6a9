package testsupport

import (
	"path/filepath"
	"testing"

	"recomo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Cache.Path = filepath.Join(base, "data", "project_cache.json")
	cfgVal.Cache.LockDir = filepath.Join(base, "locks")
	cfgVal.Relay.Bind = "127.0.0.1:0"
	cfgVal.Relay.StorageBasePath = filepath.Join(base, "relay")
	cfgVal.Reconstruction.PollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the reconstruction client at url.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconstruction.BaseURL = url
	}
}

// WithCacheBackend selects the project cache backend and a matching temp path.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
		switch backend {
		case "sqlite":
			b.cfg.Cache.Path = filepath.Join(b.baseDir, "data", "project_cache.db")
		case "memory":
			b.cfg.Cache.Path = ""
		}
	}
}

// BaseDir returns the temp directory backing the config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
