package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateIntegrations(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		return errors.New("paths.database_path must be set")
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.Threshold < 0 {
		return errors.New("detection.threshold must be >= 0")
	}
	if c.Detection.Parallelism < 0 {
		return errors.New("detection.parallelism must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"detection.audio_window_ms":          c.Detection.AudioWindowMs,
		"detection.progress_interval_frames": c.Detection.ProgressIntervalFrames,
	})
}

func (c *Config) validateAudio() error {
	if c.Audio.ScaleDivisor <= 0 {
		return errors.New("audio.scale_divisor must be positive")
	}
	return nil
}

func (c *Config) validateImages() error {
	switch c.Images.Format {
	case "png", "jpeg":
	default:
		return fmt.Errorf("images.format must be png or jpeg, got %q", c.Images.Format)
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return errors.New("images.jpeg_quality must be between 1 and 100")
	}
	if c.Images.Thumbnails && c.Images.ThumbnailWidth <= 0 {
		return errors.New("images.thumbnail_width must be positive when images.thumbnails is true")
	}
	return nil
}

func (c *Config) validateIntegrations() error {
	if c.FFmpeg.DecodeThreads < 0 {
		return errors.New("ffmpeg.decode_threads must be >= 0")
	}
	if c.Live.Enabled && c.Live.Bind == "" {
		return errors.New("live.bind must be set when live.enabled is true")
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
