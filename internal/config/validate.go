package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateReconstruction(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateRelay(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateReconstruction() error {
	parsed, err := url.Parse(c.Reconstruction.BaseURL)
	if err != nil {
		return fmt.Errorf("reconstruction.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("reconstruction.base_url must be an http(s) URL, got %q", c.Reconstruction.BaseURL)
	}
	if c.Reconstruction.PollInterval < 0 {
		return errors.New("reconstruction.poll_interval must be positive")
	}
	if c.Reconstruction.MaxPoints < 0 {
		return errors.New("reconstruction.max_points must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "json", "sqlite", "memory":
		return nil
	default:
		return fmt.Errorf("cache.backend: unsupported value %q (want json, sqlite or memory)", c.Cache.Backend)
	}
}

func (c *Config) validateRelay() error {
	if c.Relay.MaxUploadMiB < 0 {
		return errors.New("relay.max_upload_mib must be positive")
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if c.Playback.FrameRate < 0 || c.Playback.FrameRate > 240 {
		return errors.New("playback.frame_rate must be between 1 and 240")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
