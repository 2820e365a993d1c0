package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"shotdetect/internal/export"
	"shotdetect/internal/logging"
	"shotdetect/internal/media/envelope"
	"shotdetect/internal/media/ffmpeg"
	"shotdetect/internal/media/ffprobe"
	"shotdetect/internal/notifications"
	"shotdetect/internal/progress"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
	"shotdetect/internal/store"
	"shotdetect/internal/textutil"
)

// LockFileName guards a run directory against concurrent runs.
const LockFileName = ".lock"

// Progress is logged every 10% of the stream, or every 1000 frames when the
// duration is unknown.
const (
	progressLogPercent = 10
	progressLogFrames  = 1000
)

// maxEnvelopeChannels is the channel count requested from the decoder; the
// envelope only distinguishes left and right.
const maxEnvelopeChannels = 2

const defaultSampleRate = 48000

type mediaInfo struct {
	width      int
	height     int
	fps        float64
	duration   time.Duration
	audio      bool
	sampleRate int
	channels   int
}

func describeMedia(probe ffprobe.Result) (mediaInfo, error) {
	video, ok := probe.VideoStream()
	if !ok {
		return mediaInfo{}, services.Wrap(services.ErrValidation, "analysis", "probe", "input has no video stream", nil)
	}
	info := mediaInfo{
		width:    video.Width,
		height:   video.Height,
		fps:      probe.FrameRate(),
		duration: probe.Duration(),
	}
	if audio, ok := probe.AudioStream(); ok {
		info.audio = true
		info.sampleRate = probe.SampleRate()
		if info.sampleRate <= 0 {
			info.sampleRate = defaultSampleRate
		}
		info.channels = min(max(audio.Channels, 1), maxEnvelopeChannels)
	}
	return info, nil
}

// OutputDir returns the run directory used for input.
func (a *Analyzer) OutputDir(input string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		name = base
	}
	return filepath.Join(a.cfg.Paths.OutputDir, textutil.SanitizeFileName(name))
}

type audioStats struct {
	windows      int
	decodeErrors int
	sinkFailures int
}

// Run analyzes one input file. A non-nil error is returned alongside a
// Report holding the shots finalized before the failure.
func (a *Analyzer) Run(ctx context.Context, inputPath string) (Report, error) {
	started := a.now()
	report := Report{Input: inputPath, Status: store.StatusFailed}

	abs, err := filepath.Abs(strings.TrimSpace(inputPath))
	if err != nil {
		return report, services.Wrap(services.ErrValidation, "analysis", "resolve input", inputPath, err)
	}
	report.Input = abs
	if info, err := os.Stat(abs); err != nil {
		return report, services.Wrap(services.ErrValidation, "analysis", "open input", abs, err)
	} else if info.IsDir() {
		return report, services.Wrap(services.ErrValidation, "analysis", "open input", abs+" is a directory", nil)
	}

	probe, err := a.prober.Probe(ctx, abs)
	if err != nil {
		return report, err
	}
	media, err := describeMedia(probe)
	if err != nil {
		return report, err
	}
	report.FPS = media.fps
	report.Duration = media.duration

	outDir := a.OutputDir(abs)
	report.OutputDir = outDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return report, services.Wrap(services.ErrSink, "analysis", "create output directory", outDir, err)
	}
	lock := flock.New(filepath.Join(outDir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return report, services.Wrap(services.ErrSink, "analysis", "lock output directory", outDir, err)
	}
	if !locked {
		return report, services.Wrap(services.ErrValidation, "analysis", "lock output directory",
			fmt.Sprintf("another run is writing %s", outDir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	runID := a.newID()
	report.RunID = runID
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithStage(ctx, "analysis")
	logger := logging.WithContext(ctx, a.logger)
	// Persistence and notification must outlive a cancelled run.
	finalCtx := context.WithoutCancel(ctx)

	logger.Info("analysis started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("input", abs),
		logging.String("output_dir", outDir),
		logging.Float64("fps", media.fps),
		logging.Duration("duration", media.duration),
		logging.Int("width", media.width),
		logging.Int("height", media.height),
		logging.Bool("audio", media.audio),
	)

	if a.store != nil {
		if _, err := a.store.CreateRun(ctx, store.NewRun{
			ID:         runID,
			InputPath:  abs,
			OutputDir:  outDir,
			StartedAt:  started,
			FPS:        media.fps,
			DurationMs: media.duration.Milliseconds(),
			Threshold:  a.cfg.Detection.Threshold,
		}); err != nil {
			return report, services.Wrap(services.ErrSink, "analysis", "record run", "", err)
		}
	}
	if a.live != nil {
		a.live.BeginRun(runID, abs)
	}

	runErr := a.execute(ctx, logger, abs, outDir, media, &report)

	report.Status = store.Status(services.FailureStatus(runErr))
	report.Interrupted = runErr == nil && ctx.Err() != nil
	report.Elapsed = a.now().Sub(started)
	a.writeShotLists(logger, &report)
	a.persist(finalCtx, logger, &report, runErr)
	a.notify(finalCtx, logger, report, runErr)

	if runErr != nil {
		logging.ErrorWithContext(logger, "analysis failed", "run_failure",
			logging.String("status", string(report.Status)),
			logging.Int("shots", len(report.Shots)),
			logging.Int("frames", report.Frames),
			logging.Error(runErr),
		)
		return report, runErr
	}
	logger.Info("analysis completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("shots", len(report.Shots)),
		logging.Int("frames", report.Frames),
		logging.Int("audio_windows", report.AudioWindows),
		logging.Int("warnings", report.Warnings()),
		logging.Bool("interrupted", report.Interrupted),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// execute runs the video and audio pipelines and closes the artifacts.
func (a *Analyzer) execute(ctx context.Context, logger *slog.Logger, input, outDir string, media mediaInfo, report *Report) error {
	art, err := openArtifacts(a.cfg, outDir, media, a.live)
	if err != nil {
		return err
	}

	segOpts := []shot.Option{
		shot.WithSink(&art.fanout),
		shot.WithObserver(&runObserver{
			logger:  logger,
			sampler: logging.NewProgressSampler(progressLogPercent, progressLogFrames),
			live:    a.live,
		}),
		shot.WithLogger(a.logger),
	}
	if art.saver != nil {
		segOpts = append(segOpts, shot.WithImageHook(art.saver))
	}
	if a.clock != nil {
		segOpts = append(segOpts, shot.WithProgressOptions(progress.WithClock(a.clock)))
	}
	seg, err := shot.New(report.RunID, shot.Config{
		Threshold:              a.cfg.Detection.Threshold,
		FPS:                    media.fps,
		Duration:               media.duration,
		CaptureBeginImage:      a.cfg.Detection.CaptureBeginImage,
		CaptureEndImage:        a.cfg.Detection.CaptureEndImage,
		ProgressIntervalFrames: a.cfg.Detection.ProgressIntervalFrames,
		Parallelism:            a.cfg.DetectionParallelism(),
		ChannelAverages:        a.cfg.Detection.ChannelAverages,
		ColorAverages:          a.cfg.Detection.ColorAverages,
	}, segOpts...)
	if err != nil {
		art.abort()
		return err
	}

	base := ffmpeg.Options{
		Binary:  a.cfg.FFmpeg.FFmpegBinary,
		Input:   input,
		Threads: a.cfg.FFmpeg.DecodeThreads,
	}

	var (
		result shot.Result
		audio  audioStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var runErr error
		result, runErr = a.runVideo(services.WithStage(gctx, "video"), seg, base, media)
		return runErr
	})
	if media.audio && a.cfg.Audio.Enabled {
		g.Go(func() error {
			audio = a.runAudio(services.WithStage(gctx, "audio"), &art.fanout, base, media)
			return nil
		})
	}
	runErr := g.Wait()

	report.Shots = result.Shots
	report.Frames = result.Frames
	report.ImageFailures = result.ImageFailures
	report.SinkFailures = result.SinkFailures + audio.sinkFailures
	report.AudioWindows = audio.windows
	report.AudioErrors = audio.decodeErrors

	paths, finishErr := art.finish(runErr == nil)
	if finishErr != nil {
		report.SinkFailures++
		logging.WarnWithContext(logger, "export documents incomplete", "export_finish_failed",
			logging.Error(finishErr),
			logging.String(logging.FieldImpact, "some visualization files were not written"),
			logging.String(logging.FieldErrorHint, "check free space in the output directory"),
		)
	}
	report.Artifacts = append(report.Artifacts, paths...)
	return runErr
}

func (a *Analyzer) runVideo(ctx context.Context, seg *shot.Segmenter, base ffmpeg.Options, media mediaInfo) (shot.Result, error) {
	opts := base
	opts.Width = media.width
	opts.Height = media.height
	opts.WithYUV = a.cfg.Detection.ColorAverages
	src, err := a.decoder.OpenVideo(ctx, opts)
	if err != nil {
		return shot.Result{ID: seg.ID()}, err
	}
	defer src.Close()
	return seg.Run(ctx, src)
}

// runAudio feeds decoded packets through the envelope extractor. Every
// failure is logged and counted; none stops the video pipeline.
func (a *Analyzer) runAudio(ctx context.Context, sink export.EnvelopeSink, base ffmpeg.Options, media mediaInfo) audioStats {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(a.logger, "envelope"))
	var stats audioStats

	extractor, err := envelope.NewExtractor(envelope.Config{
		SampleRate:   media.sampleRate,
		Channels:     media.channels,
		WindowMs:     a.cfg.Detection.AudioWindowMs,
		ScaleDivisor: a.cfg.Audio.ScaleDivisor,
	})
	if err != nil {
		logging.WarnWithContext(logger, "audio envelope disabled", "audio_config_invalid",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no audio envelope for this run"),
		)
		return stats
	}

	opts := base
	opts.SampleRate = media.sampleRate
	opts.Channels = media.channels
	src, err := a.decoder.OpenAudio(ctx, opts)
	if err != nil {
		logging.WarnWithContext(logger, "audio decoder did not start", "audio_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no audio envelope for this run"),
			logging.String(logging.FieldErrorHint, "check the audio stream with ffprobe"),
		)
		return stats
	}
	defer src.Close()

	emit := func(s envelope.Sample) error {
		stats.windows++
		if err := sink.WriteEnvelope(ctx, s); err != nil {
			stats.sinkFailures++
			logger.Debug("envelope record not delivered", logging.Int("window", s.Window), logging.Error(err))
		}
		return nil
	}

	for {
		packet, _, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logging.WarnWithContext(logger, "audio decoding stopped early", "audio_stream_failed",
				logging.Error(err),
				logging.Int("windows", stats.windows),
				logging.String(logging.FieldImpact, "audio envelope is truncated"),
				logging.String(logging.FieldErrorHint, "check the audio stream with ffprobe"),
			)
			break
		}
		if err := extractor.Decode(packet, emit); err != nil {
			if envelope.IsDecodeError(err) {
				stats.decodeErrors++
				logger.Debug("audio packet skipped", logging.Error(err))
				continue
			}
			logging.WarnWithContext(logger, "audio envelope aborted", "audio_envelope_failed", logging.Error(err))
			break
		}
	}
	if stats.decodeErrors > 0 {
		logging.WarnWithContext(logger, "audio packets skipped", "audio_decode_errors",
			logging.Int("packets", stats.decodeErrors),
			logging.String(logging.FieldImpact, "audio envelope has gaps"),
		)
	}
	return stats
}

func (a *Analyzer) writeShotLists(logger *slog.Logger, report *Report) {
	if !a.cfg.Export.ShotsJSON && !a.cfg.Export.ShotsYAML {
		return
	}
	list := export.ShotList{
		RunID:     report.RunID,
		Input:     report.Input,
		Status:    string(report.Status),
		FPS:       report.FPS,
		Threshold: a.cfg.Detection.Threshold,
		Frames:    report.Frames,
		Shots:     report.Shots,
	}
	type writer struct {
		enabled bool
		name    string
		write   func(string, export.ShotList) error
	}
	for _, w := range []writer{
		{a.cfg.Export.ShotsJSON, export.ShotsJSONFileName, export.WriteShotsJSON},
		{a.cfg.Export.ShotsYAML, export.ShotsYAMLFileName, export.WriteShotsYAML},
	} {
		if !w.enabled {
			continue
		}
		path := filepath.Join(report.OutputDir, w.name)
		if err := w.write(path, list); err != nil {
			report.SinkFailures++
			logging.WarnWithContext(logger, "shot list not written", "shot_list_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "shot list only available from the run database"),
			)
			continue
		}
		report.Artifacts = append(report.Artifacts, path)
	}
}

func (a *Analyzer) persist(ctx context.Context, logger *slog.Logger, report *Report, runErr error) {
	if a.store == nil {
		return
	}
	out := store.Outcome{
		Status:        report.Status,
		FinishedAt:    a.now(),
		Frames:        report.Frames,
		ImageFailures: report.ImageFailures,
		SinkFailures:  report.SinkFailures,
		AudioWindows:  report.AudioWindows,
		AudioErrors:   report.AudioErrors,
		Shots:         report.Shots,
	}
	if runErr != nil {
		out.Error = runErr.Error()
	} else if report.Interrupted {
		out.Error = "interrupted before end of stream"
	}
	if err := a.store.FinishRun(ctx, report.RunID, out); err != nil {
		logging.WarnWithContext(logger, "run result not persisted", "store_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run is missing from shotdetect runs"),
			logging.String(logging.FieldErrorHint, "check paths.database_path"),
		)
	}
}

func (a *Analyzer) notify(ctx context.Context, logger *slog.Logger, report Report, runErr error) {
	summary := notifications.RunSummary{
		RunID:    report.RunID,
		Input:    report.Input,
		Shots:    len(report.Shots),
		Frames:   report.Frames,
		Elapsed:  report.Elapsed,
		Warnings: report.Warnings(),
	}
	var err error
	if runErr != nil {
		err = a.notifier.NotifyRunFailed(ctx, summary, runErr)
	} else {
		err = a.notifier.NotifyRunCompleted(ctx, summary)
	}
	if err != nil {
		logging.WarnWithContext(logger, "notification not sent", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run outcome was not pushed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// NotifyBatch reports a multi-file run summary.
func (a *Analyzer) NotifyBatch(ctx context.Context, processed, failed int, elapsed time.Duration) error {
	return a.notifier.NotifyBatchCompleted(ctx, processed, failed, elapsed)
}
