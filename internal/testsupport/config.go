// Package testsupport builds configurations and stores rooted in per-test
// temporary directories.
package testsupport

import (
	"path/filepath"
	"testing"

	"shotdetect/internal/config"
)

// ConfigOption adjusts the configuration returned by NewConfig.
type ConfigOption func(*config.Config)

// NewConfig returns defaults with every path under t.TempDir(). The live
// server binds an ephemeral port and detection uses two workers.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		OutputDir:    filepath.Join(base, "output"),
		LogDir:       filepath.Join(base, "logs"),
		DatabasePath: filepath.Join(base, "shotdetect.db"),
	}
	cfg.Live.Bind = "127.0.0.1:0"
	cfg.Detection.Parallelism = 2

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithThreshold overrides the detection threshold.
func WithThreshold(threshold float64) ConfigOption {
	return func(cfg *config.Config) { cfg.Detection.Threshold = threshold }
}

// WithExports replaces the export toggles.
func WithExports(export config.Export) ConfigOption {
	return func(cfg *config.Config) { cfg.Export = export }
}

// BaseDir returns the temp directory backing a NewConfig result.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DatabasePath)
}
