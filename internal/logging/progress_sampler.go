package logging

import "strings"

// ProgressSampler thins progress events to one log line per percentage
// bucket, or per frame bucket when the stream duration is unknown. A stage
// change always logs and restarts the buckets.
type ProgressSampler struct {
	percentStep float64
	frameStep   int
	stage       string
	bucket      int
}

// NewProgressSampler builds a sampler with the given percentage step
// (default 10) and frame step for streams of unknown length (default 1000).
func NewProgressSampler(percentStep float64, frameStep int) *ProgressSampler {
	if percentStep <= 0 {
		percentStep = 10
	}
	if frameStep <= 0 {
		frameStep = 1000
	}
	return &ProgressSampler{percentStep: percentStep, frameStep: frameStep, bucket: -1}
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means the position is unknown and the frame count is bucketed
// instead.
func (s *ProgressSampler) ShouldLog(percent float64, frame int, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage = stage
		s.bucket = -1
		emit = true
	}
	var bucket int
	if percent >= 0 {
		bucket = int(min(percent, 100) / s.percentStep)
	} else {
		bucket = max(frame, 0) / s.frameStep
	}
	if bucket > s.bucket {
		s.bucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state before a new run.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.stage = ""
	s.bucket = -1
}
