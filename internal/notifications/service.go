package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelflow/internal/config"
)

const userAgent = "Reelflow/0.1.0"

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID, mode string) error
	NotifyReviewPending(ctx context.Context, runID, checkpoint string) error
	NotifyRunCompleted(ctx context.Context, runID, videoPath string) error
	NotifyRunFailed(ctx context.Context, runID, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID, mode string) error {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		mode = "general"
	}
	data := payload{
		title:   "Reelflow - Run Started",
		message: fmt.Sprintf("Started %s run %s", mode, runID),
		tags:    []string{"reelflow", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewPending(ctx context.Context, runID, checkpoint string) error {
	checkpoint = strings.TrimSpace(checkpoint)
	data := payload{
		title:    "Reelflow - Review Needed",
		message:  fmt.Sprintf("Run %s is waiting at %s\nResume with `reelflow run confirm %s`", runID, checkpoint, runID),
		tags:     []string{"reelflow", "review", "pending"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, runID, videoPath string) error {
	videoPath = strings.TrimSpace(videoPath)
	message := fmt.Sprintf("Run %s finished", runID)
	if videoPath != "" {
		message = fmt.Sprintf("%s\nVideo: %s", message, videoPath)
	}
	data := payload{
		title:    "Reelflow - Run Complete",
		message:  message,
		tags:     []string{"reelflow", "run", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, runID, reason string) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Run %s failed", runID)
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString(": ")
		builder.WriteString(reason)
	}
	data := payload{
		title:    "Reelflow - Run Failed",
		message:  builder.String(),
		tags:     []string{"reelflow", "run", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Reelflow - Test",
		message:  "Notification system test",
		tags:     []string{"reelflow", "test"},
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

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, string) error    { return nil }
func (noopService) NotifyReviewPending(context.Context, string, string) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, string) error  { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string) error     { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
