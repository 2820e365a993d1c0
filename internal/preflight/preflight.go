package preflight

import (
	"context"
	"path/filepath"
	"time"

	"shotdetect/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := DirectoryChecks(cfg)

	if cfg.Live.Enabled {
		results = append(results, CheckListen("Live server", cfg.Live.Bind))
	}

	if cfg.Notifications.NtfyTopic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic, timeout))
	}

	return results
}

// DirectoryChecks verifies the output, log, and database directories.
func DirectoryChecks(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.DatabasePath != "" {
		results = append(results, CheckDirectoryAccess("Database directory", filepath.Dir(cfg.Paths.DatabasePath)))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
