package store

import (
	"time"

	"shotdetect/internal/shot"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusRejected marks runs aborted because the stream itself was
	// malformed (dimension or frame order violations).
	StatusRejected Status = "rejected"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRejected
}

// Run is one analysis of one input file.
type Run struct {
	ID            string     `json:"id"`
	InputPath     string     `json:"input_path"`
	OutputDir     string     `json:"output_dir"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Status        Status     `json:"status"`
	Error         string     `json:"error,omitempty"`
	FPS           float64    `json:"fps"`
	DurationMs    int64      `json:"duration_ms"`
	Frames        int        `json:"frames"`
	Threshold     float64    `json:"threshold"`
	ShotCount     int        `json:"shot_count"`
	ImageFailures int        `json:"image_failures"`
	SinkFailures  int        `json:"sink_failures"`
	AudioWindows  int        `json:"audio_windows"`
	AudioErrors   int        `json:"audio_errors"`
}

// NewRun describes a run at creation time.
type NewRun struct {
	ID         string
	InputPath  string
	OutputDir  string
	StartedAt  time.Time
	FPS        float64
	DurationMs int64
	Threshold  float64
}

// Outcome is the final state written by FinishRun.
type Outcome struct {
	Status        Status
	Error         string
	FinishedAt    time.Time
	Frames        int
	ImageFailures int
	SinkFailures  int
	AudioWindows  int
	AudioErrors   int
	Shots         []shot.Shot
}
