package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReconstruction()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if err := c.normalizeRelay(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeReconstruction() {
	if value, ok := lookupFirstEnv("RECOMO_SFM_API_BASE", "VITE_SFM_API_BASE"); ok {
		c.Reconstruction.BaseURL = value
	}
	c.Reconstruction.BaseURL = strings.TrimRight(strings.TrimSpace(c.Reconstruction.BaseURL), "/")
	if c.Reconstruction.BaseURL == "" {
		c.Reconstruction.BaseURL = defaultBaseURL
	}
	c.Reconstruction.Group = strings.TrimSpace(c.Reconstruction.Group)
	if c.Reconstruction.Group == "" {
		c.Reconstruction.Group = defaultGroup
	}
	c.Reconstruction.ScriptType = strings.TrimSpace(c.Reconstruction.ScriptType)
	if c.Reconstruction.ScriptType == "" {
		c.Reconstruction.ScriptType = defaultScriptType
	}
	if c.Reconstruction.RequestTimeout == 0 {
		c.Reconstruction.RequestTimeout = defaultRequestTimeout
	}
	if c.Reconstruction.TransferTimeout == 0 {
		c.Reconstruction.TransferTimeout = defaultTransferTimeout
	}
	if c.Reconstruction.PollInterval == 0 {
		c.Reconstruction.PollInterval = defaultPollInterval
	}
	if c.Reconstruction.MaxPoints == 0 {
		c.Reconstruction.MaxPoints = defaultMaxPoints
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		switch c.Cache.Backend {
		case "sqlite":
			c.Cache.Path = filepath.Join(c.Paths.DataDir, defaultCacheDBFile)
		default:
			c.Cache.Path = filepath.Join(c.Paths.DataDir, defaultCacheFile)
		}
	}
	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	if strings.TrimSpace(c.Cache.LockDir) != "" {
		if c.Cache.LockDir, err = expandPath(c.Cache.LockDir); err != nil {
			return fmt.Errorf("cache.lock_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeRelay() error {
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		c.Relay.Bind = ":" + strings.TrimSpace(port)
	}
	c.Relay.Bind = strings.TrimSpace(c.Relay.Bind)
	if c.Relay.Bind == "" {
		c.Relay.Bind = ":" + defaultRelayPort
	}
	if value, ok := os.LookupEnv("STORAGE_BASE_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Relay.StorageBasePath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Relay.StorageBasePath) == "" {
		c.Relay.StorageBasePath = defaultRelayStorage
	}
	var err error
	if c.Relay.StorageBasePath, err = expandPath(c.Relay.StorageBasePath); err != nil {
		return fmt.Errorf("relay.storage_base_path: %w", err)
	}
	if value, ok := lookupFirstEnv("RECOMO_RELAY_TOKEN"); ok {
		c.Relay.Token = value
	}
	c.Relay.Token = strings.TrimSpace(c.Relay.Token)
	if c.Relay.MaxUploadMiB == 0 {
		c.Relay.MaxUploadMiB = defaultRelayMaxUploadMiB
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupFirstEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}
