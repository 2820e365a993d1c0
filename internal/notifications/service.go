package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"shotdetect/internal/config"
)

const userAgent = "shotdetect/0.1.0"

// RunSummary describes a finished analysis run.
type RunSummary struct {
	RunID    string
	Input    string
	Shots    int
	Frames   int
	Elapsed  time.Duration
	Warnings int
}

// Service defines the notification surface exposed to the analysis layer.
type Service interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
	NotifyRunFailed(ctx context.Context, summary RunSummary, err error) error
	NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	message := fmt.Sprintf("🎬 %s: %d shots in %d frames (%s)",
		displayName(summary.Input), summary.Shots, summary.Frames, formatDuration(summary.Elapsed))
	if summary.Warnings > 0 {
		message = fmt.Sprintf("%s\n%d warnings", message, summary.Warnings)
	}
	data := payload{
		title:   "Shotdetect - Run Complete",
		message: message,
		tags:    []string{"shotdetect", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, summary RunSummary, runErr error) error {
	var builder strings.Builder
	builder.WriteString("❌ ")
	builder.WriteString(displayName(summary.Input))
	builder.WriteString(": ")
	if runErr != nil {
		builder.WriteString(strings.TrimSpace(runErr.Error()))
	} else {
		builder.WriteString("unknown error")
	}
	if summary.Shots > 0 {
		fmt.Fprintf(&builder, "\n%d shots kept before failure", summary.Shots)
	}
	data := payload{
		title:    "Shotdetect - Run Failed",
		message:  builder.String(),
		tags:     []string{"shotdetect", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	durationText := formatDuration(duration)

	var message string
	var title string
	if failed == 0 {
		title = "Shotdetect - Batch Complete"
		message = fmt.Sprintf("Analysis complete: %d files processed in %s", processed, durationText)
	} else {
		title = "Shotdetect - Batch Complete (with errors)"
		message = fmt.Sprintf("Analysis complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"shotdetect", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Shotdetect - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"shotdetect", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayName(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return "unknown input"
	}
	return filepath.Base(input)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunSummary) error                { return nil }
func (noopService) NotifyRunFailed(context.Context, RunSummary, error) error            { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
