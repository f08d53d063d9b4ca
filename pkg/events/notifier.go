package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/derivia/orchepy/pkg/config"
	"github.com/derivia/orchepy/pkg/models"
)

const notifierMaxAttempts = 3

// Publisher is the slice of the event bus the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, key string, event CaseEvent) error
}

// Notifier delivers global case lifecycle events: best-effort POSTs to the
// workflow's webhook endpoint, mirrored onto the event bus when one is
// configured. Delivery failures are logged and never fail the caller.
type Notifier struct {
	client *http.Client
	cfg    *config.Config
	bus    Publisher
	logger *slog.Logger
}

// NewNotifier creates a notifier. bus may be nil when no event bus is
// configured.
func NewNotifier(cfg *config.Config, bus Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
		bus:    bus,
		logger: logger.With("module", "event_notifier"),
	}
}

// CaseCreated announces a freshly created case.
func (n *Notifier) CaseCreated(ctx context.Context, workflow *models.Workflow, kase *models.Case) {
	n.deliver(ctx, workflow, NewCaseEvent(CaseCreatedEvent, kase, nil), n.cfg.WebhookOnCaseCreate)
}

// CaseMoved announces a committed phase change.
func (n *Notifier) CaseMoved(ctx context.Context, workflow *models.Workflow, kase *models.Case, fromPhase string) {
	n.deliver(ctx, workflow, NewCaseEvent(CaseMovedEvent, kase, &fromPhase), n.cfg.WebhookOnCaseMove)
}

// SLABreached announces a case exceeding its phase SLA. Bus-only; workflow
// webhook endpoints receive move/create events exclusively.
func (n *Notifier) SLABreached(ctx context.Context, kase *models.Case) {
	event := NewCaseEvent(CaseSLABreachedEvent, kase, nil)
	event.Data.FromPhase = nil
	n.publish(ctx, event)
}

func (n *Notifier) deliver(ctx context.Context, workflow *models.Workflow, event CaseEvent, webhookEnabled bool) {
	n.publish(ctx, event)

	if !webhookEnabled || workflow.WebhookURL == "" {
		return
	}

	if err := n.post(ctx, workflow.WebhookURL, event); err != nil {
		n.logger.ErrorContext(ctx, "Failed to deliver case event webhook",
			"event_type", event.EventType, "case_id", event.Data.CaseID, "error", err)
	}
}

func (n *Notifier) publish(ctx context.Context, event CaseEvent) {
	if n.bus == nil {
		return
	}

	if err := n.bus.Publish(ctx, event.Data.CaseID, event); err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish case event",
			"event_type", event.EventType, "case_id", event.Data.CaseID, "error", err)
	}
}

// post delivers with up to three attempts and exponential backoff.
func (n *Notifier) post(ctx context.Context, url string, event CaseEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal case event: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= notifierMaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<(attempt-2)) * time.Second

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = n.postOnce(ctx, url, payload)
		if lastErr == nil {
			return nil
		}

		n.logger.WarnContext(ctx, "Case event webhook attempt failed",
			"url", url, "attempt", attempt, "error", lastErr)
	}

	return lastErr
}

func (n *Notifier) postOnce(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
