package engine

import "errors"

var (
	ErrWorkflowInactive = errors.New("workflow is not active")
	ErrUnknownPhase     = errors.New("phase not in workflow")

	// ErrAutomationLoop is returned when automation-initiated transitions
	// exceed the chain depth budget. Transitions up to the failure stay
	// committed.
	ErrAutomationLoop = errors.New("automation chain depth exceeded")
)
