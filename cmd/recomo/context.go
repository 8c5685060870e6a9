package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"recomo/internal/config"
	"recomo/internal/lifecycle"
	"recomo/internal/logging"
	"recomo/internal/projectcache"
	"recomo/internal/sfm"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

// openCache opens the configured project cache. The returned func closes it.
func (c *commandContext) openCache() (*projectcache.Cache, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := projectcache.Open(cfg, c.log())
	if err != nil {
		return nil, nil, fmt.Errorf("open project cache: %w", err)
	}
	closeFn := func() {
		if err := projectcache.Close(store); err != nil {
			c.log().Debug("close project cache", logging.Error(err))
		}
	}
	return projectcache.New(store, c.log()), closeFn, nil
}

func (c *commandContext) client() (*sfm.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return sfm.New(cfg.Reconstruction.BaseURL,
		sfm.WithTimeout(cfg.RequestTimeout()),
		sfm.WithTransferTimeout(cfg.TransferTimeout()),
		sfm.WithGroup(cfg.Reconstruction.Group),
		sfm.WithScriptType(cfg.Reconstruction.ScriptType),
	)
}

// lifecycleOptions wires the configured client, cache and lock directory.
// The returned func releases the cache.
func (c *commandContext) lifecycleOptions(onStatus func(lifecycle.Update)) (lifecycle.Options, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return lifecycle.Options{}, nil, err
	}
	client, err := c.client()
	if err != nil {
		return lifecycle.Options{}, nil, err
	}
	cache, closeCache, err := c.openCache()
	if err != nil {
		return lifecycle.Options{}, nil, err
	}
	return lifecycle.Options{
		Client:       client,
		Cache:        cache,
		Locker:       projectcache.NewKeyLocker(cfg.Cache.LockDir),
		PollInterval: cfg.PollInterval(),
		MaxPoints:    cfg.Reconstruction.MaxPoints,
		Preview:      cfg.Reconstruction.PreviewPointCloud,
		Logger:       c.log(),
		OnStatus:     onStatus,
	}, closeCache, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
