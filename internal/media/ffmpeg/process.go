package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"shotdetect/internal/services"
)

var commandContext = exec.CommandContext

const maxStderrBytes = 8 << 10

// Options configures an ffmpeg decode.
type Options struct {
	Binary string
	Input  string
	// Threads is passed as -threads before the input when positive.
	Threads int

	Width   int
	Height  int
	WithYUV bool

	SampleRate int
	Channels   int
	// PacketFrames is the number of sample frames per audio packet.
	PacketFrames int
}

func (o Options) binary() string {
	if b := strings.TrimSpace(o.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

func (o Options) inputArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if o.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(o.Threads))
	}
	return append(args, "-i", o.Input)
}

// tailBuffer keeps the last maxStderrBytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - maxStderrBytes; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}

// process owns one running ffmpeg command.
type process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *tailBuffer
	stage  string

	waitOnce sync.Once
	waitErr  error
}

func (p *process) wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// exitError maps the ffmpeg exit status after stdout ended. A nil result
// means the decode completed normally.
func (p *process) exitError(ctx context.Context) error {
	err := p.wait()
	if err == nil || ctx.Err() != nil {
		return nil
	}
	return services.Wrap(services.ErrFatalStream, p.stage, "ffmpeg exited", p.stderr.String(), err)
}

// close stops the process and reaps it. A kill caused by close itself is not
// reported.
func (p *process) close() error {
	p.cancel()
	err := p.wait()
	var exitErr *exec.ExitError
	if err != nil && errors.As(err, &exitErr) && !exitErr.Exited() {
		return nil
	}
	return err
}
