package ffmpeg

import (
	"context"
	"errors"
	"io"
	"strconv"

	"shotdetect/internal/services"
)

// DefaultPacketFrames is the audio packet size in sample frames.
const DefaultPacketFrames = 4096

// AudioSource yields packets of interleaved s16le PCM.
type AudioSource struct {
	proc     *process
	pcm      io.ReadCloser
	channels int
	buf      []byte
	done     bool
}

// NewAudioSource starts ffmpeg for the first audio stream of opts.Input,
// resampled to opts.SampleRate with opts.Channels channels.
func NewAudioSource(ctx context.Context, opts Options) (*AudioSource, error) {
	if opts.SampleRate <= 0 || opts.Channels <= 0 {
		return nil, services.Wrap(services.ErrValidation, "audio", "start decoder",
			"sample rate and channel count must be positive", nil)
	}
	if opts.Input == "" {
		return nil, services.Wrap(services.ErrValidation, "audio", "start decoder", "input path is empty", nil)
	}
	packetFrames := opts.PacketFrames
	if packetFrames <= 0 {
		packetFrames = DefaultPacketFrames
	}

	args := opts.inputArgs()
	args = append(args,
		"-map", "0:a:0", "-vn",
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(opts.Channels),
		"-ar", strconv.Itoa(opts.SampleRate),
		"pipe:1",
	)

	procCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(procCtx, opts.binary(), args...) //nolint:gosec
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	pcm, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, services.Wrap(services.ErrFatalStream, "audio", "start decoder", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, services.Wrap(services.ErrFatalStream, "audio", "start decoder", opts.binary(), err)
	}

	return &AudioSource{
		proc:     &process{cmd: cmd, cancel: cancel, stderr: stderr, stage: "audio"},
		pcm:      pcm,
		channels: opts.Channels,
		buf:      make([]byte, packetFrames*opts.Channels*2),
	}, nil
}

// Next returns the next packet and the channel count. The packet is reused
// by the following call. The final packet may end with a partial sample
// frame; io.EOF follows it.
func (s *AudioSource) Next(ctx context.Context) ([]byte, int, error) {
	if s.done || ctx.Err() != nil {
		return nil, s.channels, io.EOF
	}
	n, err := io.ReadFull(s.pcm, s.buf)
	switch {
	case err == nil:
		return s.buf, s.channels, nil
	case ctx.Err() != nil:
		s.done = true
		return nil, s.channels, io.EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		if exitErr := s.proc.exitError(ctx); exitErr != nil {
			return nil, s.channels, exitErr
		}
		if n > 0 {
			return s.buf[:n], s.channels, nil
		}
		return nil, s.channels, io.EOF
	default:
		return nil, s.channels, services.Wrap(services.ErrFatalStream, "audio", "read packet", "", err)
	}
}

// Close stops ffmpeg if it is still running.
func (s *AudioSource) Close() error {
	return s.proc.close()
}
