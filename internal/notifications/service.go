package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seqwatch/internal/config"
)

const userAgent = "seqwatch/0.1"

// Event identifies an alert type.
type Event string

const (
	EventIncompleteDirectory Event = "incomplete_directory"
	EventDuplicateRun        Event = "duplicate_run"
	EventPollFailed          Event = "poll_failed"
	EventTest                Event = "test"
)

// Payload carries the values an alert message is built from.
type Payload map[string]any

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.Join(v, ", ")
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Service publishes alerts.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventIncompleteDirectory: cfg.Notifications.IncompleteDirectory,
			EventDuplicateRun:        cfg.Notifications.DuplicateRun,
			EventPollFailed:          cfg.Notifications.PollFailures,
			EventTest:                true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventIncompleteDirectory:
		state := payload.text("state")
		if state == "" {
			state = "incomplete"
		}
		body := fmt.Sprintf("⚠️ %s is %s", payload.text("path"), state)
		if reason := payload.text("message"); reason != "" {
			body += ": " + reason
		}
		return message{
			title: "seqwatch - Incomplete Directory",
			body:  body,
			tags:  []string{"seqwatch", "directory", state},
		}, true
	case EventDuplicateRun:
		return message{
			title:    "seqwatch - Duplicate Run",
			body:     fmt.Sprintf("🧬 Run %s found at %s\nAlready registered at %s", payload.text("run_id"), payload.text("duplicate_path"), payload.text("path")),
			tags:     []string{"seqwatch", "run", "duplicate"},
			priority: "high",
		}, true
	case EventPollFailed:
		reason := payload.text("error")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "seqwatch - Poll Failed",
			body:     "❌ Poll failed: " + reason,
			tags:     []string{"seqwatch", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "seqwatch - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"seqwatch", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
