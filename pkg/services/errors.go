// Package services provides the thin validation layer between the HTTP
// surface and the store/engine.
package services

import (
	"errors"

	"github.com/derivia/orchepy/pkg/automation"
	"github.com/derivia/orchepy/pkg/engine"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrPhasesEmpty         = errors.New("phases list cannot be empty")
	ErrPhasesDuplicate     = errors.New("phases must be unique")
	ErrInitialPhaseUnknown = errors.New("initial phase must be in phases list")
	ErrSLAPhaseUnknown     = errors.New("sla_config references a phase not in phases list")
	ErrInvalidListOptions  = errors.New("invalid list options")
)

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPhasesEmpty) ||
		errors.Is(err, ErrPhasesDuplicate) ||
		errors.Is(err, ErrInitialPhaseUnknown) ||
		errors.Is(err, ErrSLAPhaseUnknown) ||
		errors.Is(err, ErrInvalidListOptions) ||
		errors.Is(err, models.ErrInvalidAutomation) ||
		errors.Is(err, engine.ErrUnknownPhase)
}

// IsConflictError checks if an error is a business conflict that should
// return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, engine.ErrWorkflowInactive) ||
		persistence.IsCaseRaced(err)
}

// IsNotFoundError checks for missing workflows or cases (HTTP 404).
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) || persistence.IsCaseNotFound(err)
}

// IsAutomationLoop checks for an exceeded chain depth (HTTP 422).
func IsAutomationLoop(err error) bool {
	return errors.Is(err, engine.ErrAutomationLoop)
}

// IsWebhookFailed checks for a terminal webhook failure under on_error=stop
// (HTTP 502).
func IsWebhookFailed(err error) bool {
	return errors.Is(err, automation.ErrWebhookFailed)
}
