package analysis

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shotdetect/internal/config"
	"shotdetect/internal/live"
	"shotdetect/internal/logging"
	"shotdetect/internal/notifications"
	"shotdetect/internal/progress"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
	"shotdetect/internal/store"
)

// Report summarizes one analysis run.
type Report struct {
	RunID     string        `json:"run_id"`
	Input     string        `json:"input"`
	OutputDir string        `json:"output_dir"`
	Status    store.Status  `json:"status"`
	FPS       float64       `json:"fps"`
	Duration  time.Duration `json:"duration_ns"`
	Shots     []shot.Shot   `json:"shots"`
	Frames    int           `json:"frames"`

	ImageFailures int `json:"image_failures"`
	SinkFailures  int `json:"sink_failures"`
	AudioWindows  int `json:"audio_windows"`
	AudioErrors   int `json:"audio_errors"`
	// Interrupted is set when the caller cancelled the run; the shots up
	// to the last decoded frame are still complete.
	Interrupted bool          `json:"interrupted"`
	Artifacts   []string      `json:"artifacts"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Warnings totals the non-fatal problems seen during the run.
func (r Report) Warnings() int {
	return r.ImageFailures + r.SinkFailures + r.AudioErrors
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithStore persists runs and their shot lists.
func WithStore(st *store.Store) Option {
	return func(a *Analyzer) { a.store = st }
}

// WithNotifier overrides the notification service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(a *Analyzer) {
		if n != nil {
			a.notifier = n
		}
	}
}

// WithLive broadcasts records to a live visualization server.
func WithLive(srv *live.Server) Option {
	return func(a *Analyzer) { a.live = srv }
}

// WithProber replaces the ffprobe-backed prober.
func WithProber(p Prober) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.prober = p
		}
	}
}

// WithDecoder replaces the ffmpeg-backed decoder.
func WithDecoder(d Decoder) Option {
	return func(a *Analyzer) {
		if d != nil {
			a.decoder = d
		}
	}
}

// WithIDGenerator replaces the UUID run identifier source.
func WithIDGenerator(fn func() string) Option {
	return func(a *Analyzer) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// WithProgressClock replaces the process CPU clock used for throughput.
func WithProgressClock(clock progress.Clock) Option {
	return func(a *Analyzer) { a.clock = clock }
}

// Analyzer runs shot detection against input files using one configuration.
type Analyzer struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	notifier notifications.Service
	live     *live.Server
	prober   Prober
	decoder  Decoder
	newID    func() string
	now      func() time.Time
	clock    progress.Clock
}

// New validates cfg and builds an Analyzer.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Analyzer, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "analysis", "new analyzer", "config is nil", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "analysis", "new analyzer", "invalid config", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Analyzer{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "analysis"),
		notifier: notifications.NewService(cfg),
		prober:   ffprobeProber{binary: cfg.FFmpeg.FFprobeBinary},
		decoder:  ffmpegDecoder{},
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}
