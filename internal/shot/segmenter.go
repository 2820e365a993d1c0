package shot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"shotdetect/internal/logging"
	"shotdetect/internal/media/frame"
	"shotdetect/internal/progress"
	"shotdetect/internal/services"
)

// State is the segmenter lifecycle position.
type State int

const (
	// StateAwaitingBaseline means no frame has been seen yet.
	StateAwaitingBaseline State = iota
	// StateActive means comparisons are proceeding.
	StateActive
	// StateFinished means the stream ended or the run failed.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateAwaitingBaseline:
		return "awaiting_baseline"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Option customizes a Segmenter.
type Option func(*Segmenter)

// WithImageHook sets the hook invoked for begin and end stills.
func WithImageHook(hook ImageHook) Option {
	return func(s *Segmenter) { s.hook = hook }
}

// WithSink sets the per-frame record sink.
func WithSink(sink Sink) Option {
	return func(s *Segmenter) { s.sink = sink }
}

// WithObserver sets the shot and progress observer.
func WithObserver(observer Observer) Option {
	return func(s *Segmenter) { s.observer = observer }
}

// WithLogger sets the logger; a component attribute is added.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = logger }
}

// WithProgressOptions forwards options to the progress reporter.
func WithProgressOptions(opts ...progress.Option) Option {
	return func(s *Segmenter) { s.progressOpts = append(s.progressOpts, opts...) }
}

// Segmenter is the single writer of a shot list. It is not safe for
// concurrent use and runs at most once.
type Segmenter struct {
	id           string
	cfg          Config
	scorer       *frame.Scorer
	hook         ImageHook
	sink         Sink
	observer     Observer
	logger       *slog.Logger
	progressOpts []progress.Option

	state         State
	shots         []Shot
	prevScore     float64
	lastIndex     int
	cur, prev     *frame.Frame
	imageFailures int
	sinkFailures  int
}

// New builds a segmenter identified by id.
func New(id string, cfg Config, opts ...Option) (*Segmenter, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "video", "new segmenter", "id is required", nil)
	}
	if cfg.Threshold < 0 || math.IsNaN(cfg.Threshold) {
		return nil, services.Wrap(services.ErrValidation, "video", "new segmenter",
			fmt.Sprintf("threshold must be >= 0, got %v", cfg.Threshold), nil)
	}
	s := &Segmenter{
		id:     id,
		cfg:    cfg,
		scorer: frame.NewScorer(cfg.Parallelism),
		cur:    &frame.Frame{},
		prev:   &frame.Frame{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "segmenter")
	return s, nil
}

// ID returns the identifier supplied at construction.
func (s *Segmenter) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Segmenter) State() State {
	return s.state
}

// Run consumes src until io.EOF or failure. Frame indices must start at 1
// and increase by exactly one.
func (s *Segmenter) Run(ctx context.Context, src FrameSource) (Result, error) {
	if s.state != StateAwaitingBaseline || s.shots != nil {
		return s.result(false), fmt.Errorf("segmenter %s: already run", s.id)
	}
	logger := logging.WithContext(ctx, s.logger)
	reporter := progress.NewReporter(s.cfg.ProgressIntervalFrames, s.cfg.FPS, s.cfg.Duration, s.progressOpts...)

	// The bootstrap shot exists as soon as the stream is open.
	s.shots = append(s.shots, Shot{ID: 0, StartFrame: 0, StartMs: 0})

	for {
		err := src.Next(ctx, s.cur)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.fail(logger, classifySourceError(err))
		}
		if err := s.step(ctx, logger); err != nil {
			return s.fail(logger, err)
		}
		if ev, ok := reporter.Observe(s.lastIndex); ok && s.observer != nil {
			s.observer.OnProgress(ev)
		}
	}

	s.finishTail(ctx, logger)
	s.state = StateFinished
	if s.observer != nil && s.lastIndex > 0 {
		s.observer.OnProgress(reporter.Final(s.lastIndex))
	}
	logger.Info("segmentation complete",
		logging.String(logging.FieldEventType, "segmentation_complete"),
		logging.Int("frames", s.lastIndex),
		logging.Int("shots", len(s.shots)),
		logging.Int("image_failures", s.imageFailures),
		logging.Int("sink_failures", s.sinkFailures),
	)
	return s.result(true), nil
}

// step processes the frame just decoded into s.cur and swaps buffers.
func (s *Segmenter) step(ctx context.Context, logger *slog.Logger) error {
	cur := s.cur
	if cur.Index != s.lastIndex+1 {
		return services.Wrap(services.ErrFrameSequence, "video", "next frame",
			fmt.Sprintf("got index %d after %d", cur.Index, s.lastIndex), nil)
	}
	if err := cur.Validate(); err != nil {
		return services.Wrap(services.ErrDimension, "video", "validate frame",
			fmt.Sprintf("frame %d", cur.Index), err)
	}

	rec := ScoreRecord{Frame: cur.Index}
	switch s.state {
	case StateAwaitingBaseline:
		if s.cfg.ChannelAverages {
			score, err := s.scorer.Score(cur, cur, true)
			if err != nil {
				return services.Wrap(services.ErrDimension, "video", "score frame", fmt.Sprintf("frame %d", cur.Index), err)
			}
			rec.Averages = score.Averages
		}
		if s.cfg.CaptureBeginImage {
			s.shots[0].BeginImage = s.capture(ctx, logger, cur, 0, RoleBegin)
		}
		s.state = StateActive
	case StateActive:
		score, err := s.scorer.Score(cur, s.prev, s.cfg.ChannelAverages)
		if err != nil {
			return services.Wrap(services.ErrDimension, "video", "score frame", fmt.Sprintf("frame %d", cur.Index), err)
		}
		rec.Normalized = score.Normalized
		rec.Averages = score.Averages
		if s.isBoundary(score.Normalized) {
			s.boundary(ctx, logger, cur.Index)
		}
		s.prevScore = score.Normalized
	}

	if s.cfg.ColorAverages && cur.YUV != nil {
		if color, err := s.scorer.ColorAverages(cur); err == nil {
			rec.Color = &color
		}
	}
	if s.sink != nil {
		if err := s.sink.WriteScore(ctx, rec); err != nil {
			s.sinkFailures++
			logging.WarnWithContext(logger, "score record not delivered", "sink_write_failed",
				logging.Int(logging.FieldFrame, cur.Index),
				logging.Error(err),
				logging.String(logging.FieldImpact, "visualization output is missing this frame"),
				logging.String(logging.FieldErrorHint, "check the export destination"),
			)
		}
	}

	s.lastIndex = cur.Index
	s.cur, s.prev = s.prev, s.cur
	return nil
}

// isBoundary applies the dual gate: both the score and its change from the
// previous score must exceed the threshold.
func (s *Segmenter) isBoundary(score float64) bool {
	t := s.cfg.Threshold
	return math.Abs(score-s.prevScore) > t && score > t
}

// boundary finalizes the open shot at frame n and opens the next one. s.prev
// still holds frame n-1 and s.cur holds frame n.
func (s *Segmenter) boundary(ctx context.Context, logger *slog.Logger, n int) {
	open := &s.shots[len(s.shots)-1]
	s.finalize(open, n)
	if s.cfg.CaptureEndImage {
		open.EndImage = s.capture(ctx, logger, s.prev, open.ID, RoleEnd)
	}
	s.notifyShot(logger, *open)

	next := Shot{ID: open.ID + 1, StartFrame: n, StartMs: s.millis(n)}
	if s.cfg.CaptureBeginImage {
		next.BeginImage = s.capture(ctx, logger, s.cur, next.ID, RoleBegin)
	}
	s.shots = append(s.shots, next)
}

// finishTail finalizes the last open shot at the last decoded index. After
// the final swap s.prev holds the last frame.
func (s *Segmenter) finishTail(ctx context.Context, logger *slog.Logger) {
	open := &s.shots[len(s.shots)-1]
	s.finalize(open, s.lastIndex)
	if s.cfg.CaptureEndImage && s.lastIndex > 0 {
		open.EndImage = s.capture(ctx, logger, s.prev, open.ID, RoleEnd)
	}
	s.notifyShot(logger, *open)
}

func (s *Segmenter) finalize(sh *Shot, n int) {
	sh.DurationFrames = n - sh.StartFrame
	sh.DurationMs = s.millis(sh.DurationFrames)
}

func (s *Segmenter) notifyShot(logger *slog.Logger, sh Shot) {
	logger.Debug("shot finalized",
		logging.Int(logging.FieldShotID, sh.ID),
		logging.Int("start_frame", sh.StartFrame),
		logging.Int("duration_frames", sh.DurationFrames),
	)
	if s.observer != nil {
		s.observer.OnShot(sh)
	}
}

func (s *Segmenter) capture(ctx context.Context, logger *slog.Logger, f *frame.Frame, shotID int, role Role) string {
	if s.hook == nil {
		return ""
	}
	ref, err := s.hook.Save(ctx, f, shotID, role)
	if err != nil && ref != "" {
		logging.WarnWithContext(logger, "shot image saved without extras", "image_extras_failed",
			logging.Int(logging.FieldShotID, shotID),
			logging.String("role", role.String()),
			logging.String("image", ref),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the still is kept; derived files such as thumbnails are missing"),
			logging.String(logging.FieldErrorHint, "check free space and permissions in the output directory"),
		)
		return ref
	}
	if err != nil {
		s.imageFailures++
		logging.WarnWithContext(logger, "shot image not saved", "image_save_failed",
			logging.Int(logging.FieldShotID, shotID),
			logging.Int(logging.FieldFrame, f.Index),
			logging.String("role", role.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "shot is listed without this image"),
			logging.String(logging.FieldErrorHint, "check free space and permissions in the output directory"),
		)
		return ""
	}
	return ref
}

func (s *Segmenter) millis(frames int) int64 {
	if s.cfg.FPS <= 0 || math.IsInf(s.cfg.FPS, 0) || math.IsNaN(s.cfg.FPS) {
		return 0
	}
	return int64(float64(frames) * 1000 / s.cfg.FPS)
}

func (s *Segmenter) fail(logger *slog.Logger, err error) (Result, error) {
	s.state = StateFinished
	logging.ErrorWithContext(logger, "segmentation aborted", "segmentation_failed",
		logging.Int(logging.FieldFrame, s.lastIndex),
		logging.Int("finalized_shots", len(s.shots)-1),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "inspect the input file with ffprobe"),
	)
	return s.result(false), err
}

func (s *Segmenter) result(complete bool) Result {
	shots := s.shots
	if !complete && len(shots) > 0 {
		shots = shots[:len(shots)-1]
	}
	return Result{
		ID:            s.id,
		Shots:         append([]Shot(nil), shots...),
		Frames:        s.lastIndex,
		ImageFailures: s.imageFailures,
		SinkFailures:  s.sinkFailures,
	}
}

func classifySourceError(err error) error {
	for _, marker := range []error{services.ErrDimension, services.ErrFrameSequence, services.ErrFatalStream} {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(services.ErrFatalStream, "video", "next frame", "", err)
}
