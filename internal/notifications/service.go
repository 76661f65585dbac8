package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"exampipe/internal/config"
	"exampipe/internal/textutil"
)

const userAgent = "exampipe/0.1.0"

// RunSummary is the information included in a run notification.
type RunSummary struct {
	RunID     string
	Questions int
	Document  string
	Reason    string
	Cost      string
	Elapsed   time.Duration
}

// Service defines the notification surface used by the coordinator and CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, run RunSummary) error
	NotifyRunAborted(ctx context.Context, run RunSummary) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
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

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, run RunSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %d %s typeset in %s", run.Questions, textutil.Plural(run.Questions, "question", "questions"), formatDuration(run.Elapsed))
	if run.Cost != "" {
		fmt.Fprintf(&b, " (%s)", run.Cost)
	}
	if doc := strings.TrimSpace(run.Document); doc != "" {
		fmt.Fprintf(&b, "\nDocument: %s", doc)
	}
	return n.send(ctx, payload{
		title:   "exampipe - Run Complete",
		message: b.String(),
		tags:    []string{"exampipe", "run", "completed"},
	})
}

func (n *ntfyService) NotifyRunAborted(ctx context.Context, run RunSummary) error {
	reason := strings.TrimSpace(run.Reason)
	if reason == "" {
		reason = "unknown"
	}
	message := fmt.Sprintf("❌ Run %s aborted after %s: %s", shortRunID(run.RunID), formatDuration(run.Elapsed), reason)
	return n.send(ctx, payload{
		title:    "exampipe - Run Aborted",
		message:  message,
		tags:     []string{"exampipe", "run", "aborted"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "exampipe - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"exampipe", "test"},
		priority: "low",
	})
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

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunSummary) error { return nil }
func (noopService) NotifyRunAborted(context.Context, RunSummary) error   { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
