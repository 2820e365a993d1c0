package progress

import (
	"math"
	"time"
)

// DefaultInterval is the number of frames between progress events.
const DefaultInterval = 100

// UnknownPercent marks a position that cannot be computed.
const UnknownPercent = -1.0

// Event is one periodic progress observation.
type Event struct {
	Frame           int           `json:"frame"`
	PositionSeconds float64       `json:"position_seconds"`
	DurationSeconds float64       `json:"duration_seconds"`
	Percent         float64       `json:"percent"`
	ProcessingFPS   float64       `json:"processing_fps"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Known reports whether Percent carries a real value.
func (e Event) Known() bool {
	return e.Percent >= 0
}

// Option customizes a Reporter.
type Option func(*Reporter)

// WithClock replaces the process CPU clock.
func WithClock(clock Clock) Option {
	return func(r *Reporter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// Reporter emits an Event every interval frames.
type Reporter struct {
	interval int
	fps      float64
	duration time.Duration
	clock    Clock

	start     time.Duration
	last      time.Duration
	lastFrame int
}

// NewReporter builds a reporter for a stream with the given frame rate and
// total duration. An interval below one uses DefaultInterval.
func NewReporter(interval int, fps float64, duration time.Duration, opts ...Option) *Reporter {
	if interval < 1 {
		interval = DefaultInterval
	}
	r := &Reporter{
		interval: interval,
		fps:      fps,
		duration: duration,
		clock:    ProcessCPUTime,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.clock()
	r.last = r.start
	return r
}

// Interval returns the frame interval between events.
func (r *Reporter) Interval() int {
	return r.interval
}

// Observe records that frameIndex has been processed and returns an event
// when the index lands on the reporting interval.
func (r *Reporter) Observe(frameIndex int) (Event, bool) {
	if r == nil || frameIndex <= 0 || frameIndex%r.interval != 0 {
		return Event{}, false
	}
	return r.emit(frameIndex), true
}

// Final returns an event for the last processed frame regardless of the
// interval. Use it once at end of stream.
func (r *Reporter) Final(frameIndex int) Event {
	if r == nil {
		return Event{Frame: frameIndex, Percent: UnknownPercent}
	}
	return r.emit(frameIndex)
}

func (r *Reporter) emit(frameIndex int) Event {
	now := r.clock()
	delta := now - r.last
	frames := frameIndex - r.lastFrame
	r.last = now
	r.lastFrame = frameIndex

	ev := Event{
		Frame:           frameIndex,
		DurationSeconds: r.duration.Seconds(),
		Percent:         UnknownPercent,
		Elapsed:         now - r.start,
	}
	if delta > 0 && frames > 0 {
		ev.ProcessingFPS = float64(frames) / delta.Seconds()
	}
	if r.fps > 0 && !math.IsInf(r.fps, 0) && !math.IsNaN(r.fps) {
		ev.PositionSeconds = float64(frameIndex) / r.fps
		if ev.DurationSeconds > 0 {
			ev.Percent = math.Min(ev.PositionSeconds/ev.DurationSeconds*100, 100)
		}
	}
	return ev
}
