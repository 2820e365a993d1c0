package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"shotdetect/internal/services"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		detail := ""
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", detail, err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "probe", "parse ffprobe output", "", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	return r.firstOfType("video")
}

// AudioStream returns the first audio stream.
func (r Result) AudioStream() (Stream, bool) {
	return r.firstOfType("audio")
}

func (r Result) firstOfType(codecType string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countOfType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countOfType("audio")
}

func (r Result) countOfType(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// FrameRate returns the first video stream's r_frame_rate, falling back to
// avg_frame_rate. Zero means unknown.
func (r Result) FrameRate() float64 {
	video, ok := r.VideoStream()
	if !ok {
		return 0
	}
	if fps := parseRational(video.RFrameRate); fps > 0 {
		return fps
	}
	return parseRational(video.AvgFrameRate)
}

// SampleRate returns the first audio stream's sample rate in Hz.
func (r Result) SampleRate() int {
	audio, ok := r.AudioStream()
	if !ok {
		return 0
	}
	rate := parseFloat(audio.SampleRate)
	if math.IsNaN(rate) || rate <= 0 {
		return 0
	}
	return int(rate)
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// Duration returns the container duration, falling back to the video stream
// duration. Zero means unknown.
func (r Result) Duration() time.Duration {
	seconds := r.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		if video, ok := r.VideoStream(); ok {
			seconds = parseFloat(video.Duration)
		}
	}
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// parseRational parses "num/den" or a plain decimal. Invalid input and a
// zero denominator yield 0.
func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	num, den, found := strings.Cut(value, "/")
	if !found {
		v := parseFloat(value)
		if math.IsNaN(v) || v < 0 {
			return 0
		}
		return v
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || d == 0 {
		return 0
	}
	if fps := n / d; fps > 0 {
		return fps
	}
	return 0
}

