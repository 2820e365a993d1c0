package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"shotdetect/internal/media/frame"
	"shotdetect/internal/services"
)

// yuvQueueDepth bounds how far the yuv reader may run ahead of the rgb reader.
const yuvQueueDepth = 4

// FrameSource yields decoded frames with indices assigned from 1.
type FrameSource struct {
	proc   *process
	rgb    io.ReadCloser
	width  int
	height int
	yuv    bool

	yuvFrames chan []byte
	yuvFree   chan []byte
	yuvErr    error
	stop      chan struct{}

	next      int
	closeOnce sync.Once
}

// NewFrameSource starts ffmpeg for the first video stream of opts.Input.
// Width and Height must match the decoded stream.
func NewFrameSource(ctx context.Context, opts Options) (*FrameSource, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, &frame.DimensionError{Width: opts.Width, Height: opts.Height, Reason: "probe reported no video size"}
	}
	if opts.Input == "" {
		return nil, services.Wrap(services.ErrValidation, "video", "start decoder", "input path is empty", nil)
	}

	args := opts.inputArgs()
	args = append(args, "-map", "0:v:0", "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1")
	if opts.WithYUV {
		args = append(args, "-map", "0:v:0", "-f", "rawvideo", "-pix_fmt", "yuv444p", "pipe:3")
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(procCtx, opts.binary(), args...) //nolint:gosec
	stderr := &tailBuffer{}
	cmd.Stderr = stderr

	rgb, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, services.Wrap(services.ErrFatalStream, "video", "start decoder", "stdout pipe", err)
	}

	var yuvRead, yuvWrite *os.File
	if opts.WithYUV {
		yuvRead, yuvWrite, err = os.Pipe()
		if err != nil {
			cancel()
			return nil, services.Wrap(services.ErrFatalStream, "video", "start decoder", "yuv pipe", err)
		}
		cmd.ExtraFiles = []*os.File{yuvWrite}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if yuvRead != nil {
			yuvRead.Close()
			yuvWrite.Close()
		}
		return nil, services.Wrap(services.ErrFatalStream, "video", "start decoder", opts.binary(), err)
	}

	s := &FrameSource{
		proc:   &process{cmd: cmd, cancel: cancel, stderr: stderr, stage: "video"},
		rgb:    rgb,
		width:  opts.Width,
		height: opts.Height,
		yuv:    opts.WithYUV,
		stop:   make(chan struct{}),
	}
	if opts.WithYUV {
		yuvWrite.Close()
		s.yuvFrames = make(chan []byte, yuvQueueDepth)
		s.yuvFree = make(chan []byte, yuvQueueDepth+1)
		go s.readYUV(yuvRead)
	}
	return s, nil
}

func (s *FrameSource) readYUV(r *os.File) {
	defer r.Close()
	defer close(s.yuvFrames)
	size := s.width * s.height * frame.Channels
	for {
		var buf []byte
		select {
		case buf = <-s.yuvFree:
		default:
			buf = make([]byte, size)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) {
				s.yuvErr = err
			}
			return
		}
		select {
		case s.yuvFrames <- buf:
		case <-s.stop:
			return
		}
	}
}

// Next decodes the next frame into dst. It returns io.EOF at end of stream
// or once ctx is cancelled.
func (s *FrameSource) Next(ctx context.Context, dst *frame.Frame) error {
	if ctx.Err() != nil {
		return io.EOF
	}
	dst.Resize(s.width, s.height, s.yuv)

	n, err := io.ReadFull(s.rgb, dst.RGB)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if exitErr := s.proc.exitError(ctx); exitErr != nil {
			return exitErr
		}
		return io.EOF
	case ctx.Err() != nil:
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		if exitErr := s.proc.exitError(ctx); exitErr != nil {
			return exitErr
		}
		return services.Wrap(services.ErrFatalStream, "video", "read frame",
			fmt.Sprintf("frame %d truncated after %d of %d bytes", s.next+1, n, len(dst.RGB)), nil)
	default:
		return services.Wrap(services.ErrFatalStream, "video", "read frame", "", err)
	}

	if s.yuv {
		select {
		case buf, ok := <-s.yuvFrames:
			if !ok {
				if ctx.Err() != nil {
					return io.EOF
				}
				return services.Wrap(services.ErrFatalStream, "video", "read yuv frame",
					fmt.Sprintf("yuv stream ended before frame %d", s.next+1), s.yuvErr)
			}
			copy(dst.YUV, buf)
			select {
			case s.yuvFree <- buf:
			default:
			}
		case <-ctx.Done():
			return io.EOF
		}
	}

	s.next++
	dst.Index = s.next
	return nil
}

// Frames returns the number of frames delivered so far.
func (s *FrameSource) Frames() int {
	return s.next
}

// Close stops ffmpeg if it is still running and releases the pipes.
func (s *FrameSource) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return s.proc.close()
}
