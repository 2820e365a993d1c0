package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"shotdetect/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output, log, and database locations.
type Paths struct {
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
}

// Detection contains the knobs consumed by the shot segmenter.
type Detection struct {
	Threshold              float64 `toml:"threshold"`
	AudioWindowMs          int     `toml:"audio_window_ms"`
	CaptureBeginImage      bool    `toml:"capture_begin_image"`
	CaptureEndImage        bool    `toml:"capture_end_image"`
	ProgressIntervalFrames int     `toml:"progress_interval_frames"`
	// Parallelism bounds row bands per comparison. Zero uses the logical CPU count.
	Parallelism     int  `toml:"parallelism"`
	ChannelAverages bool `toml:"channel_averages"`
	ColorAverages   bool `toml:"color_averages"`
}

// Audio contains envelope extraction settings.
type Audio struct {
	Enabled      bool `toml:"enabled"`
	ScaleDivisor int  `toml:"scale_divisor"`
}

// Images contains still-image capture settings.
type Images struct {
	Format         string `toml:"format"`
	JPEGQuality    int    `toml:"jpeg_quality"`
	Thumbnails     bool   `toml:"thumbnails"`
	ThumbnailWidth int    `toml:"thumbnail_width"`
}

// Export selects which artifacts are written next to each analysis.
type Export struct {
	AudioXML  bool `toml:"audio_xml"`
	VideoXML  bool `toml:"video_xml"`
	ShotsJSON bool `toml:"shots_json"`
	ShotsYAML bool `toml:"shots_yaml"`
	RecordLog bool `toml:"record_log"`
}

// Live contains the websocket visualization server settings.
type Live struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// FFmpeg contains decoder binaries and threading.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	DecodeThreads int    `toml:"decode_threads"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shotdetect.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Detection     Detection     `toml:"detection"`
	Audio         Audio         `toml:"audio"`
	Images        Images        `toml:"images"`
	Export        Export        `toml:"export"`
	Live          Live          `toml:"live"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "normalize", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shotdetect.toml")
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

// EnsureDirectories creates the output and log directories and the parent of
// the database file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.LogDir}
	if c.Paths.DatabasePath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.DatabasePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Marshal renders the effective configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ErrSampleExists reports that CreateSample refused to replace a file.
var ErrSampleExists = errors.New("config file already exists")

// CreateSample writes the annotated sample configuration to path. An existing
// file is only replaced when overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrSampleExists, path)
	}
	if err != nil {
		return fmt.Errorf("open sample config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}
