package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFatalStream marks an upstream frame/audio source that failed to
	// initialize or ended abnormally. Processing aborts.
	ErrFatalStream = errors.New("fatal stream error")
	// ErrDimension marks frames whose dimensions are unset or mismatched.
	ErrDimension = errors.New("frame dimension error")
	// ErrFrameSequence marks a frame index that is not exactly one past the
	// previous index (reordered, repeated, or dropped frames).
	ErrFrameSequence = errors.New("frame sequence error")
	// ErrAudioDecode marks a malformed audio packet. Only that packet is lost.
	ErrAudioDecode = errors.New("audio decode error")
	// ErrSink marks an image or export write failure. Never aborts detection.
	ErrSink = errors.New("sink error")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrFatalStream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must abort the run. Audio decode and sink
// failures are reported but never fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAudioDecode) || errors.Is(err, ErrSink) {
		return false
	}
	return true
}

// FailureStatus maps a run error to the status persisted alongside the run.
func FailureStatus(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrDimension), errors.Is(err, ErrFrameSequence):
		return "rejected"
	default:
		return "failed"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
