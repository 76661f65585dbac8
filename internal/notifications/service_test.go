package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"exampipe/internal/config"
	"exampipe/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic unavailable"))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected noop service without a topic")
	}
	if err := svc.NotifyRunAborted(context.Background(), notifications.RunSummary{Reason: "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsRunEvents(t *testing.T) {
	server, captured := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if !notifications.Enabled(svc) {
		t.Fatal("expected ntfy service")
	}

	ctx := context.Background()
	if err := svc.NotifyRunCompleted(ctx, notifications.RunSummary{
		RunID:     "0123456789abcdef",
		Questions: 12,
		Document:  "output/4_final_document.tex",
		Cost:      "$0.4210",
		Elapsed:   95*time.Second + 400*time.Millisecond,
	}); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	if err := svc.NotifyRunAborted(ctx, notifications.RunSummary{
		RunID:   "0123456789abcdef",
		Reason:  "no questions passed validation",
		Elapsed: 3 * time.Second,
	}); err != nil {
		t.Fatalf("NotifyRunAborted: %v", err)
	}

	if len(*captured) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*captured))
	}
	done := (*captured)[0]
	if done.title != "exampipe - Run Complete" || done.tags != "exampipe,run,completed" || done.priority != "" {
		t.Fatalf("unexpected completion headers %+v", done)
	}
	want := "✅ 12 questions typeset in 1m35s ($0.4210)\nDocument: output/4_final_document.tex"
	if done.body != want {
		t.Fatalf("unexpected completion body %q", done.body)
	}
	aborted := (*captured)[1]
	if aborted.priority != "high" || !strings.Contains(aborted.body, "Run 01234567 aborted after 3s: no questions passed validation") {
		t.Fatalf("unexpected abort notification %+v", aborted)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusBadGateway)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 502: topic unavailable") {
		t.Fatalf("expected http error, got %v", err)
	}
}
