package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"testing"
	"time"

	"shotdetect/internal/services"
)

const sampleProbe = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720,
     "pix_fmt": "yuv420p", "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "duration": "12.0"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "clip.mp4", "nb_streams": 2, "duration": "12.012", "size": "1000", "bit_rate": "32000"}
}`

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", RFrameRate: "25/1"},
			{CodecType: "audio", SampleRate: "44100", Channels: 2},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.FrameRate() != 25 {
		t.Fatalf("unexpected frame rate: %v", result.FrameRate())
	}
	if result.SampleRate() != 44100 {
		t.Fatalf("unexpected sample rate: %d", result.SampleRate())
	}
	if result.Duration() != 123450*time.Millisecond {
		t.Fatalf("unexpected duration: %v", result.Duration())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", RFrameRate: "0/0", AvgFrameRate: "bad", Duration: "7.5"}},
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.Duration() != 7500*time.Millisecond {
		t.Fatalf("expected stream duration fallback, got %v", result.Duration())
	}
	if result.FrameRate() != 0 {
		t.Fatalf("expected unknown frame rate, got %v", result.FrameRate())
	}
	if result.SampleRate() != 0 {
		t.Fatalf("expected no sample rate without audio, got %d", result.SampleRate())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"24", 24},
		{"1/0", 0},
		{"-5/1", 0},
		{"x/1", 0},
		{"", 0},
	}
	for _, tc := range tests {
		if got := parseRational(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("parseRational(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestInspectParsesOutput(t *testing.T) {
	var capturedName string
	var capturedArgs []string
	setHelperCommand(t, "success", &capturedName, &capturedArgs)

	result, err := Inspect(context.Background(), "/opt/ffprobe", "/media/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if capturedName != "/opt/ffprobe" {
		t.Fatalf("binary = %q", capturedName)
	}
	if capturedArgs[len(capturedArgs)-1] != "/media/clip.mp4" || capturedArgs[len(capturedArgs)-2] != "--" {
		t.Fatalf("path not passed after --: %v", capturedArgs)
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1280 || video.Height != 720 {
		t.Fatalf("unexpected video stream: %+v", video)
	}
	if math.Abs(result.FrameRate()-29.97002997) > 1e-6 {
		t.Fatalf("unexpected frame rate: %v", result.FrameRate())
	}
	if result.SampleRate() != 48000 {
		t.Fatalf("unexpected sample rate: %d", result.SampleRate())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw json to be retained")
	}
}

func TestInspectFailureIsExternalToolError(t *testing.T) {
	setHelperCommand(t, "failure", nil, nil)
	_, err := Inspect(context.Background(), "", "/media/missing.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestInspectRequiresPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func setHelperCommand(t *testing.T, mode string, name *string, args *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, bin string, a ...string) *exec.Cmd {
		if name != nil {
			*name = bin
		}
		if args != nil {
			*args = append([]string(nil), a...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFPROBE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFPROBE_HELPER_MODE") {
	case "success":
		fmt.Print(sampleProbe)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "missing.mp4: No such file or directory")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
