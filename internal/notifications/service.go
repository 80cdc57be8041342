package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hopper/internal/config"
)

const userAgent = "Hopper/0.1.0"

// Event identifies a notification-worthy moment in a run.
type Event string

const (
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventItemCompleted  Event = "item_completed"
	EventItemFailed     Event = "item_failed"
	EventItemDeferred   Event = "item_deferred"
	EventTest           Event = "test"
)

// Payload carries the formatting inputs for an event.
type Payload map[string]string

func (p Payload) get(key string) string {
	return strings.TrimSpace(p[key])
}

// Service publishes workflow events to the notification backend.
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		queue:     cfg.Notifications.Queue,
		items:     cfg.Notifications.Items,
		errors:    cfg.Notifications.Errors,
		deferrals: cfg.Notifications.Deferrals,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	queue     bool
	items     bool
	errors    bool
	deferrals bool
}

// Publish formats and sends the event. Events whose toggle is off, and
// events the service does not know, are suppressed without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if payload == nil {
		payload = Payload{}
	}
	switch event {
	case EventQueueStarted:
		if !n.queue {
			return nil
		}
		return n.send(ctx, message{
			title: "Hopper - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %s items", orUnknown(payload.get("count"))),
			tags:  []string{"hopper", "queue", "started"},
		})
	case EventQueueCompleted:
		if !n.queue {
			return nil
		}
		return n.send(ctx, n.queueCompleted(payload))
	case EventItemCompleted:
		if !n.items {
			return nil
		}
		body := fmt.Sprintf("Artifacts ready: %s", orUnknown(payload.get("title")))
		if count := payload.get("artifacts"); count != "" {
			body = fmt.Sprintf("%s (%s files)", body, count)
		}
		return n.send(ctx, message{
			title: "Hopper - Item Complete",
			body:  body,
			tags:  []string{"hopper", "item", "completed"},
		})
	case EventItemFailed:
		if !n.errors {
			return nil
		}
		body := fmt.Sprintf("Failed: %s", orUnknown(payload.get("title")))
		if phase := payload.get("phase"); phase != "" {
			body = fmt.Sprintf("%s at %s", body, phase)
		}
		if reason := payload.get("reason"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return n.send(ctx, message{
			title:    "Hopper - Item Failed",
			body:     body,
			tags:     []string{"hopper", "error", "alert"},
			priority: "high",
		})
	case EventItemDeferred:
		if !n.deferrals {
			return nil
		}
		body := fmt.Sprintf("Deferred: %s", orUnknown(payload.get("title")))
		if reason := payload.get("reason"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		if wait := payload.get("wait"); wait != "" {
			body = fmt.Sprintf("%s\nNext attempt in ~%s", body, wait)
		}
		return n.send(ctx, message{
			title: "Hopper - Submission Deferred",
			body:  body,
			tags:  []string{"hopper", "rate-limit", "deferred"},
		})
	case EventTest:
		return n.send(ctx, message{
			title:    "Hopper - Test",
			body:     "Notification system test",
			tags:     []string{"hopper", "test"},
			priority: "low",
		})
	default:
		return nil
	}
}

func (n *ntfyService) queueCompleted(payload Payload) message {
	completed := orZero(payload.get("completed"))
	failed := orZero(payload.get("failed"))
	deferred := orZero(payload.get("deferred"))
	duration := payload.get("duration")
	if duration == "" {
		duration = "0s"
	}

	title := "Hopper - Queue Complete"
	if failed != "0" {
		title = "Hopper - Queue Complete (with errors)"
	}
	body := fmt.Sprintf("Queue pass complete: %s completed, %s failed, %s deferred in %s", completed, failed, deferred, duration)
	return message{
		title: title,
		body:  body,
		tags:  []string{"hopper", "queue", "completed"},
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

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func orZero(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
