package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"shotdetect/internal/analysis"
	"shotdetect/internal/config"
	"shotdetect/internal/media/ffmpeg"
	"shotdetect/internal/media/ffprobe"
	"shotdetect/internal/media/frame"
	"shotdetect/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// run executes the CLI with --config pointing at the env's file.
func (e *cliTestEnv) run(t *testing.T, opts []analysis.Option, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, opts, append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(t *testing.T, opts []analysis.Option, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand(opts...)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

type staticProber struct{}

func (staticProber) Probe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{
			Index:      0,
			CodecType:  "video",
			Width:      8,
			Height:     6,
			RFrameRate: "25/1",
		}},
		Format: ffprobe.Format{Duration: "4.000000"},
	}, nil
}

// cutVideo yields black frames before cut and white frames from cut on.
type cutVideo struct {
	total int
	cut   int
	next  int
}

func (v *cutVideo) Next(ctx context.Context, dst *frame.Frame) error {
	if ctx.Err() != nil || v.next >= v.total {
		return io.EOF
	}
	v.next++
	dst.Resize(8, 6, false)
	value := byte(0)
	if v.next >= v.cut {
		value = 255
	}
	for i := range dst.RGB {
		dst.RGB[i] = value
	}
	dst.Index = v.next
	return nil
}

func (v *cutVideo) Close() error { return nil }

type cutDecoder struct {
	total int
	cut   int
}

func (d cutDecoder) OpenVideo(context.Context, ffmpeg.Options) (analysis.VideoSource, error) {
	return &cutVideo{total: d.total, cut: d.cut}, nil
}

func (d cutDecoder) OpenAudio(context.Context, ffmpeg.Options) (analysis.AudioSource, error) {
	return nil, errors.New("no audio stream")
}

func fakeMedia(total, cut int, runID string) []analysis.Option {
	return []analysis.Option{
		analysis.WithProber(staticProber{}),
		analysis.WithDecoder(cutDecoder{total: total, cut: cut}),
		analysis.WithIDGenerator(func() string { return runID }),
	}
}
