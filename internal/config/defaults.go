package config

const (
	defaultConfigPath             = "~/.config/shotdetect/config.toml"
	defaultOutputDir              = "~/.local/share/shotdetect/output"
	defaultLogDir                 = "~/.local/share/shotdetect/logs"
	defaultDatabasePath           = "~/.local/share/shotdetect/shotdetect.db"
	defaultThreshold              = 60.0
	defaultAudioWindowMs          = 1000
	defaultProgressIntervalFrames = 100
	defaultScaleDivisor           = 100
	defaultImageFormat            = "png"
	defaultJPEGQuality            = 90
	defaultThumbnailWidth         = 160
	defaultLiveBind               = "127.0.0.1:7490"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Detection: Detection{
			Threshold:              defaultThreshold,
			AudioWindowMs:          defaultAudioWindowMs,
			ProgressIntervalFrames: defaultProgressIntervalFrames,
			ChannelAverages:        true,
		},
		Audio: Audio{
			Enabled:      true,
			ScaleDivisor: defaultScaleDivisor,
		},
		Images: Images{
			Format:         defaultImageFormat,
			JPEGQuality:    defaultJPEGQuality,
			ThumbnailWidth: defaultThumbnailWidth,
		},
		Export: Export{
			AudioXML:  true,
			ShotsJSON: true,
		},
		Live: Live{
			Bind: defaultLiveBind,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
