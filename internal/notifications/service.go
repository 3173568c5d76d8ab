package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tempodel/internal/config"
	"tempodel/internal/logging"
	"tempodel/internal/reconcile"
)

const userAgent = "Tempodel-Go/0.1.0"

// maxListedPaths caps how many paths a failure notification spells out.
const maxListedPaths = 5

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, schedulePath string, entries int) error
	NotifyDaemonStopped(ctx context.Context, reason string) error
	NotifyDeletionFailures(ctx context.Context, failures []reconcile.Outcome) error
	NotifyTickError(ctx context.Context, err error) error
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

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
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

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, schedulePath string, entries int) error {
	return n.send(ctx, payload{
		title:    "Tempodel - Checker Started",
		message:  fmt.Sprintf("Watching %s (%d scheduled)", strings.TrimSpace(schedulePath), entries),
		tags:     []string{"tempodel", "daemon", "started"},
		priority: "low",
	})
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "shutdown requested"
	}
	return n.send(ctx, payload{
		title:    "Tempodel - Checker Stopped",
		message:  "Checker stopped: " + reason,
		tags:     []string{"tempodel", "daemon", "stopped"},
		priority: "low",
	})
}

func (n *ntfyService) NotifyDeletionFailures(ctx context.Context, failures []reconcile.Outcome) error {
	if len(failures) == 0 {
		return nil
	}
	var builder strings.Builder
	if len(failures) == 1 {
		builder.WriteString("Could not delete 1 target:")
	} else {
		fmt.Fprintf(&builder, "Could not delete %d targets:", len(failures))
	}
	for i, f := range failures {
		if i == maxListedPaths {
			fmt.Fprintf(&builder, "\n... and %d more", len(failures)-maxListedPaths)
			break
		}
		builder.WriteString("\n- ")
		builder.WriteString(f.Path)
		switch {
		case f.Err != nil:
			builder.WriteString(": ")
			builder.WriteString(strings.TrimSpace(f.Err.Error()))
		case f.Incomplete():
			fmt.Fprintf(&builder, ": %d children could not be removed", len(f.ChildFailures))
		}
	}
	return n.send(ctx, payload{
		title:    "Tempodel - Deletion Failed",
		message:  builder.String(),
		tags:     []string{"tempodel", "delete", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyTickError(ctx context.Context, err error) error {
	message := "Reconciliation pass crashed: unknown"
	if err != nil {
		message = "Reconciliation pass crashed: " + strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "Tempodel - Error",
		message:  message,
		tags:     []string{"tempodel", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Tempodel - Test",
		message:  "Notification system test",
		tags:     []string{"tempodel", "test"},
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

type noopService struct{}

func (noopService) NotifyDaemonStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyDaemonStopped(context.Context, string) error { return nil }
func (noopService) NotifyDeletionFailures(context.Context, []reconcile.Outcome) error { return nil }
func (noopService) NotifyTickError(context.Context, error) error { return nil }
func (noopService) TestNotification(context.Context) error { return nil }

// FailureReporter forwards failed and incomplete outcomes of each pass to a
// Service. Send errors are logged.
type FailureReporter struct {
	service Service
	logger  *slog.Logger
}

// NewFailureReporter returns nil when failure notifications are disabled.
func NewFailureReporter(cfg *config.Config, service Service, logger *slog.Logger) *FailureReporter {
	if service == nil || cfg == nil || !cfg.Notifications.Failures {
		return nil
	}
	return &FailureReporter{service: service, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Report implements reconcile.Reporter.
func (r *FailureReporter) Report(ctx context.Context, pass reconcile.Pass) {
	if r == nil {
		return
	}
	var failures []reconcile.Outcome
	for _, o := range pass.Result.Outcomes {
		if o.Action == reconcile.ActionFailed || o.Incomplete() {
			failures = append(failures, o)
		}
	}
	if len(failures) == 0 {
		return
	}
	if err := r.service.NotifyDeletionFailures(ctx, failures); err != nil {
		logging.WarnWithContext(r.logger, "failure notification not delivered", "notification_failed",
			logging.Error(err),
			logging.Int("failures", len(failures)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
			logging.String(logging.FieldImpact, "deletion failures only visible in logs and history"),
		)
	}
}
