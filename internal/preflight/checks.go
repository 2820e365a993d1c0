package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"shotdetect/internal/config"
	"shotdetect/internal/deps"
)

const defaultNtfyTimeout = 5 * time.Second

// CheckNtfy verifies that the ntfy server behind the configured topic URL
// answers its health endpoint.
func CheckNtfy(ctx context.Context, topic string, timeout time.Duration) Result {
	const name = "ntfy"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{Name: name, Detail: "missing topic url"}
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic url %q", topic)}
	}
	if timeout <= 0 {
		timeout = defaultNtfyTimeout
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	health := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/v1/health"}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, health.String(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	var payload struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (decode: %v)", err)}
	}
	if !payload.Healthy {
		return Result{Name: name, Detail: "server reports unhealthy"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", parsed.Host)}
}

// CheckListen verifies that the live server bind address is free.
func CheckListen(name, bind string) Result {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return Result{Name: name, Detail: "bind address not configured"}
	}
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	_ = ln.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bind)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config and
// annotates each available one with its reported version.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpeg.FFmpegBinary,
			Description: "Required for frame and audio decoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFmpeg.FFprobeBinary,
			Description: "Required for media inspection",
		},
	}
	return deps.AnnotateVersions(ctx, deps.CheckBinaries(requirements))
}

func summarizeHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (server unreachable)"
	}
	return fmt.Sprintf("health check failed (%v)", err)
}
