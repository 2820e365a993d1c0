package analysis

import (
	"context"

	"shotdetect/internal/media/ffmpeg"
	"shotdetect/internal/media/ffprobe"
	"shotdetect/internal/shot"
)

// Prober inspects an input file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// VideoSource is a closable frame source.
type VideoSource interface {
	shot.FrameSource
	Close() error
}

// AudioSource yields packets of interleaved little-endian s16 samples.
type AudioSource interface {
	Next(ctx context.Context) ([]byte, int, error)
	Close() error
}

// Decoder opens the video and audio sources for an input.
type Decoder interface {
	OpenVideo(ctx context.Context, opts ffmpeg.Options) (VideoSource, error)
	OpenAudio(ctx context.Context, opts ffmpeg.Options) (AudioSource, error)
}

type ffprobeProber struct {
	binary string
}

func (p ffprobeProber) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.binary, path)
}

type ffmpegDecoder struct{}

func (ffmpegDecoder) OpenVideo(ctx context.Context, opts ffmpeg.Options) (VideoSource, error) {
	return ffmpeg.NewFrameSource(ctx, opts)
}

func (ffmpegDecoder) OpenAudio(ctx context.Context, opts ffmpeg.Options) (AudioSource, error) {
	return ffmpeg.NewAudioSource(ctx, opts)
}
