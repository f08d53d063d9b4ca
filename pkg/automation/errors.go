package automation

import (
	"errors"
	"fmt"
)

var (
	// ErrBadPath is returned when a write walks through a non-object segment
	// or targets a path outside the writable roots.
	ErrBadPath = errors.New("bad field path")

	// ErrWebhookFailed marks a webhook that exhausted its retries under
	// on_error=stop.
	ErrWebhookFailed = errors.New("webhook failed")
)

// WebhookError carries the failing action's name for the HTTP boundary.
type WebhookError struct {
	ActionName string
	ActionID   string
	Err        error
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook %q failed: %v", e.ActionName, e.Err)
}

func (e *WebhookError) Unwrap() error {
	return e.Err
}

func (e *WebhookError) Is(target error) bool {
	return target == ErrWebhookFailed
}
