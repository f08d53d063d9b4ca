// Package models defines the core domain models for phase-based case orchestration.
package models

import "time"

// PhaseSLA is the per-phase service level target. Purely informational; the
// SLA reporter consumes it, the transition engine never does.
type PhaseSLA struct {
	Hours int `json:"hours"`
}

// Workflow is the immutable blueprint a case moves through: an ordered list of
// phase names plus an optional automation program bound to phase transitions.
type Workflow struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"                   validate:"required,min=3"`
	Description  string              `json:"description,omitempty"`
	Phases       []string            `json:"phases"                 validate:"required,min=1"`
	InitialPhase string              `json:"initial_phase"          validate:"required"`
	WebhookURL   string              `json:"webhook_url,omitempty"  validate:"omitempty,url"`
	Automations  *AutomationProgram  `json:"automations,omitempty"`
	SLAConfig    map[string]PhaseSLA `json:"sla_config,omitempty"`
	Active       bool                `json:"active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// HasPhase reports whether the named phase belongs to the workflow. Phase
// order is cosmetic; membership is what matters.
func (w *Workflow) HasPhase(phase string) bool {
	for _, p := range w.Phases {
		if p == phase {
			return true
		}
	}

	return false
}

// BindingsFor returns the automation bindings matching a trigger and phase, in
// declaration order.
func (w *Workflow) BindingsFor(trigger AutomationTrigger, phase string) []Binding {
	if w.Automations == nil {
		return nil
	}

	return w.Automations.BindingsFor(trigger, phase)
}

// ActionsFor flattens the matching bindings into a single ordered action list.
func (w *Workflow) ActionsFor(trigger AutomationTrigger, phase string) []Action {
	var actions []Action
	for _, binding := range w.BindingsFor(trigger, phase) {
		actions = append(actions, binding.Actions...)
	}

	return actions
}
