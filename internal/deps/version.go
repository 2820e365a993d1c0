package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

var commandContext = exec.CommandContext

// Version runs "<command> -version" and returns the first line of output.
// ffmpeg and ffprobe both print an "ffmpeg version N-..." style banner.
func Version(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", fmt.Errorf("command not configured")
	}
	runCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := commandContext(runCtx, command, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", command, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%s -version: empty output", command)
}

// AnnotateVersions records the reported version of every available binary.
// A binary that resolves but fails to run is marked unavailable.
func AnnotateVersions(ctx context.Context, statuses []Status) []Status {
	for i := range statuses {
		st := &statuses[i]
		if !st.Available {
			continue
		}
		version, err := Version(ctx, st.Path)
		if err != nil {
			st.Available = false
			st.Detail = err.Error()
			continue
		}
		st.Version = version
	}
	return statuses
}
