package shot

import (
	"context"
	"time"

	"shotdetect/internal/media/frame"
	"shotdetect/internal/progress"
)

// Shot is a contiguous span of frames between two boundaries.
type Shot struct {
	ID             int    `json:"id" yaml:"id"`
	StartFrame     int    `json:"start_frame" yaml:"start_frame"`
	StartMs        int64  `json:"start_ms" yaml:"start_ms"`
	DurationFrames int    `json:"duration_frames" yaml:"duration_frames"`
	DurationMs     int64  `json:"duration_ms" yaml:"duration_ms"`
	BeginImage     string `json:"begin_image,omitempty" yaml:"begin_image,omitempty"`
	EndImage       string `json:"end_image,omitempty" yaml:"end_image,omitempty"`
}

// Role distinguishes the first and last frame of a shot for image capture.
type Role int

const (
	RoleBegin Role = iota
	RoleEnd
)

func (r Role) String() string {
	switch r {
	case RoleBegin:
		return "begin"
	case RoleEnd:
		return "end"
	default:
		return "unknown"
	}
}

// FrameSource yields decoded frames in stream order. Next fills dst, which
// is owned by the caller and reused on later calls, and returns io.EOF at
// end of stream. Implementations must not retain dst after returning.
type FrameSource interface {
	Next(ctx context.Context, dst *frame.Frame) error
}

// ImageHook saves a still for a shot boundary and returns a reference to it.
// A non-empty reference returned together with an error means the still was
// written but a secondary file (such as its thumbnail) was not.
type ImageHook interface {
	Save(ctx context.Context, f *frame.Frame, shotID int, role Role) (string, error)
}

// ScoreRecord is the per-frame signal delivered to a Sink.
type ScoreRecord struct {
	Frame      int                    `json:"frame" cbor:"1,keyasint"`
	Normalized float64                `json:"score" cbor:"2,keyasint"`
	Averages   *frame.ChannelAverages `json:"averages,omitempty" cbor:"3,keyasint,omitempty"`
	Color      *frame.ChannelAverages `json:"color,omitempty" cbor:"4,keyasint,omitempty"`
}

// Sink receives one record per decoded frame in index order.
type Sink interface {
	WriteScore(ctx context.Context, rec ScoreRecord) error
}

// Observer is notified when a shot is finalized and on periodic progress.
type Observer interface {
	OnShot(s Shot)
	OnProgress(ev progress.Event)
}

// Config holds the per-run detection parameters.
type Config struct {
	Threshold float64
	// FPS converts frame positions to milliseconds. Zero leaves times at 0.
	FPS      float64
	Duration time.Duration

	CaptureBeginImage      bool
	CaptureEndImage        bool
	ProgressIntervalFrames int
	Parallelism            int
	ChannelAverages        bool
	ColorAverages          bool
}

// Result is the outcome of a run. On failure Shots holds only finalized shots.
type Result struct {
	ID            string
	Shots         []Shot
	Frames        int
	ImageFailures int
	SinkFailures  int
}

// TotalDurationFrames sums the frame durations of all shots.
func (r Result) TotalDurationFrames() int {
	total := 0
	for _, s := range r.Shots {
		total += s.DurationFrames
	}
	return total
}
