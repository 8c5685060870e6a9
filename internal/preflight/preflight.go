package preflight

import (
	"context"

	"recomo/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Cache.LockDir != "" {
		results = append(results, CheckDirectoryAccess("Lock directory", cfg.Cache.LockDir))
	}
	results = append(results, CheckDirectoryAccess("Relay storage", cfg.Relay.StorageBasePath))
	results = append(results, CheckReconstructionService(ctx, cfg.Reconstruction.BaseURL))
	return results
}
