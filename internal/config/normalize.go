package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Normalize expands paths, lower-cases enumerations, and fills environment
// fallbacks. Load calls it; callers that build a Config by hand should too.
func (c *Config) Normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImages()
	c.normalizeFFmpeg()
	c.normalizeLogging()
	c.Live.Bind = strings.TrimSpace(c.Live.Bind)
	if c.Live.Bind == "" {
		c.Live.Bind = defaultLiveBind
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeImages() {
	c.Images.Format = strings.ToLower(strings.TrimSpace(c.Images.Format))
	switch c.Images.Format {
	case "":
		c.Images.Format = defaultImageFormat
	case "jpg":
		c.Images.Format = "jpeg"
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	if c.FFmpeg.DecodeThreads == 0 {
		if value, ok := os.LookupEnv("NUM_THREADS"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
				c.FFmpeg.DecodeThreads = n
			}
		}
	}
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

// DetectionParallelism returns the configured band parallelism, or the
// logical CPU count when unset.
func (c *Config) DetectionParallelism() int {
	if c.Detection.Parallelism > 0 {
		return c.Detection.Parallelism
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return 1
}
