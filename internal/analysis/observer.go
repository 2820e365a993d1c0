package analysis

import (
	"log/slog"

	"shotdetect/internal/live"
	"shotdetect/internal/logging"
	"shotdetect/internal/progress"
	"shotdetect/internal/shot"
)

// runObserver logs segmenter events and forwards them to the live server.
type runObserver struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	live    *live.Server
}

func (o *runObserver) OnShot(s shot.Shot) {
	if o.live != nil {
		o.live.OnShot(s)
	}
}

func (o *runObserver) OnProgress(ev progress.Event) {
	if o.sampler.ShouldLog(ev.Percent, ev.Frame, "video") {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "progress"),
			logging.Int(logging.FieldFrame, ev.Frame),
			logging.Float64("processing_fps", ev.ProcessingFPS),
		}
		if ev.Known() {
			attrs = append(attrs,
				logging.Float64("percent", ev.Percent),
				logging.Float64("position_seconds", ev.PositionSeconds),
			)
		}
		o.logger.Info("detection progress", logging.Args(attrs...)...)
	}
	if o.live != nil {
		o.live.OnProgress(ev)
	}
}
