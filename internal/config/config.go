package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"recomo/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data and log directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Reconstruction contains configuration for the remote structure-from-motion service.
type Reconstruction struct {
	BaseURL           string `toml:"base_url"`
	Group             string `toml:"group"`
	ScriptType        string `toml:"script_type"`
	RequestTimeout    int    `toml:"request_timeout"`  // seconds; negative disables
	TransferTimeout   int    `toml:"transfer_timeout"` // seconds; negative disables
	PollInterval      int    `toml:"poll_interval"`   // seconds
	MaxPoints         int    `toml:"max_points"`
	PreviewPointCloud bool   `toml:"preview_pointcloud"`
}

// Cache contains configuration for the template key to project id cache.
type Cache struct {
	Backend string `toml:"backend"` // "json", "sqlite" or "memory"
	Path    string `toml:"path"`
	LockDir string `toml:"lock_dir"` // empty disables cross-process locking
}

// Relay contains configuration for the upload relay server.
type Relay struct {
	Bind            string `toml:"bind"`
	StorageBasePath string `toml:"storage_base_path"`
	MaxUploadMiB    int    `toml:"max_upload_mib"`
	Token           string `toml:"token"` // empty disables bearer auth
}

// Playback contains configuration for the headless scene viewer.
type Playback struct {
	FrameRate int `toml:"frame_rate"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Recomo.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Reconstruction: SfM service endpoint, polling and decode limits
//   - Cache: project id cache backend
//   - Relay: upload relay bind address and storage root
//   - Playback: viewer frame rate
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Reconstruction Reconstruction `toml:"reconstruction"`
	Cache          Cache          `toml:"cache"`
	Relay          Relay          `toml:"relay"`
	Playback       Playback       `toml:"playback"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/recomo/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("recomo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the CLI and relay write into.
// The relay storage root is created on a best-effort basis so read-only
// commands keep working when the storage mount is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Cache.LockDir != "" {
		if err := os.MkdirAll(c.Cache.LockDir, 0o755); err != nil {
			return fmt.Errorf("create lock directory %q: %w", c.Cache.LockDir, err)
		}
	}
	if strings.TrimSpace(c.Relay.StorageBasePath) != "" {
		_ = os.MkdirAll(c.Relay.StorageBasePath, 0o755)
	}
	return nil
}

// RequestTimeout returns the timeout for reconstruction status and control
// calls. Zero means no timeout.
func (c *Config) RequestTimeout() time.Duration {
	return secondsOrDisabled(c.Reconstruction.RequestTimeout)
}

// TransferTimeout returns the timeout for video uploads and artifact
// downloads. Zero means no timeout.
func (c *Config) TransferTimeout() time.Duration {
	return secondsOrDisabled(c.Reconstruction.TransferTimeout)
}

func secondsOrDisabled(seconds int) time.Duration {
	if seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// PollInterval returns the reconstruction status polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Reconstruction.PollInterval) * time.Second
}

// FrameInterval returns the viewer frame period derived from the frame rate.
func (c *Config) FrameInterval() time.Duration {
	rate := c.Playback.FrameRate
	if rate <= 0 {
		rate = defaultFrameRate
	}
	return time.Second / time.Duration(rate)
}

func expandPath(pathValue string) (string, error) {
	return fileutil.ExpandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
