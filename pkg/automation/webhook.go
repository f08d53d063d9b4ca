package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/tidwall/sjson"
)

const DefaultWebhookTimeout = 30 * time.Second

// Dispatcher performs the HTTP side effects of webhook actions: payload
// selection, retry with fixed delay, and response capture for chaining.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher with the given per-attempt timeout.
func NewDispatcher(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}

	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		logger: logger.With("module", "webhook_dispatcher"),
	}
}

// Dispatch executes one webhook action and returns the parsed response body.
// The returned error is terminal: retries have already been exhausted.
func (d *Dispatcher) Dispatch(ctx context.Context, action models.Action, ectx *Context) (any, error) {
	payload, err := d.buildPayload(action, ectx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	attempts := 1
	if action.Retry.Enabled && action.Retry.MaxAttempts > 1 {
		attempts = action.Retry.MaxAttempts
	}

	method := strings.ToUpper(action.Method)
	if method == "" {
		method = http.MethodPost
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			d.logger.InfoContext(ctx, "Retrying webhook",
				"action", action.DisplayName(), "attempt", attempt, "max_attempts", attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(action.Retry.DelayMS) * time.Millisecond):
			}
		}

		response, retryable, err := d.attempt(ctx, method, action, body)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !retryable {
			break
		}
	}

	return nil, lastErr
}

// attempt performs a single HTTP exchange. Transport errors and 5xx statuses
// are retryable, everything else terminal.
func (d *Dispatcher) attempt(ctx context.Context, method string, action models.Action, body []byte) (any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, action.URL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range action.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, false, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var parsed any
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return string(responseBody), false, nil
	}

	return parsed, false, nil
}

// buildPayload selects the request body: an explicit body wins, then a
// fields-restricted object, then the default case envelope. A chained
// response is attached under previous_response when available.
func (d *Dispatcher) buildPayload(action models.Action, ectx *Context) (any, error) {
	var payload any

	switch {
	case action.Body != nil:
		payload = action.Body
	case len(action.Fields) > 0:
		restricted := []byte(`{}`)

		for _, field := range action.Fields {
			var err error

			restricted, err = sjson.SetBytes(restricted, field, ectx.Document.Get(field))
			if err != nil {
				return nil, fmt.Errorf("failed to select field %q: %w", field, err)
			}
		}

		var object map[string]any
		if err := json.Unmarshal(restricted, &object); err != nil {
			return nil, fmt.Errorf("failed to build field selection: %w", err)
		}

		payload = object
	default:
		payload = d.defaultEnvelope(ectx)
	}

	if action.UseResponseFrom == "" {
		return payload, nil
	}

	previous, ok := ectx.Responses[action.UseResponseFrom]
	if !ok {
		d.logger.Warn("No captured response for use_response_from",
			"action", action.DisplayName(), "use_response_from", action.UseResponseFrom)

		return payload, nil
	}

	object, ok := payload.(map[string]any)
	if !ok {
		d.logger.Warn("Webhook body is not an object, skipping previous_response",
			"action", action.DisplayName())

		return payload, nil
	}

	object["previous_response"] = previous

	return object, nil
}

func (d *Dispatcher) defaultEnvelope(ectx *Context) map[string]any {
	var fromPhase any
	if ectx.FromPhase != "" {
		fromPhase = ectx.FromPhase
	}

	return map[string]any{
		"case_id":        ectx.Case.ID,
		"workflow_id":    ectx.Case.WorkflowID,
		"current_phase":  ectx.Case.CurrentPhase,
		"previous_phase": ectx.Case.PreviousPhase,
		"data":           ectx.Document.Get("data"),
		"metadata":       ectx.Document.Get("metadata"),
		"trigger":        ectx.Trigger,
		"from_phase":     fromPhase,
		"to_phase":       ectx.ToPhase,
	}
}
