// Package ffprobe runs ffprobe with JSON output and decodes the streams and
// container format. Accessors on Result answer the questions the detector
// asks up front: frame rate as a float from "num/den", audio sample rate,
// duration, and whether video and audio streams exist at all.
package ffprobe
