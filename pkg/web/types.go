// Package web provides the HTTP surface for workflow and case management.
package web

import "github.com/derivia/orchepy/pkg/models"

// CreateWorkflowRequest is the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name         string                       `json:"name"                   validate:"required,min=3"`
	Description  string                       `json:"description,omitempty"`
	Phases       []string                     `json:"phases"                 validate:"required,min=1,dive,required"`
	InitialPhase string                       `json:"initial_phase"          validate:"required"`
	WebhookURL   string                       `json:"webhook_url,omitempty"  validate:"omitempty,url"`
	Automations  *models.AutomationProgram    `json:"automations,omitempty"`
	SLAConfig    map[string]models.PhaseSLA   `json:"sla_config,omitempty"`
	Active       *bool                        `json:"active,omitempty"`
}

// UpdateWorkflowRequest supports partial updates; omitted fields keep their
// stored value.
type UpdateWorkflowRequest struct {
	Name         *string                    `json:"name,omitempty"          validate:"omitempty,min=3"`
	Description  *string                    `json:"description,omitempty"`
	Phases       []string                   `json:"phases,omitempty"        validate:"omitempty,min=1,dive,required"`
	InitialPhase *string                    `json:"initial_phase,omitempty"`
	WebhookURL   *string                    `json:"webhook_url,omitempty"   validate:"omitempty,url"`
	Automations  *models.AutomationProgram  `json:"automations,omitempty"`
	SLAConfig    map[string]models.PhaseSLA `json:"sla_config,omitempty"`
	Active       *bool                      `json:"active,omitempty"`
}

// CreateCaseRequest is the request body for creating a case. initial_phase
// overrides the workflow default when given.
type CreateCaseRequest struct {
	WorkflowID   string         `json:"workflow_id"             validate:"required"`
	Data         map[string]any `json:"data,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	InitialPhase string         `json:"initial_phase,omitempty"`
}

// MoveCaseRequest is the request body for moving a case between phases.
type MoveCaseRequest struct {
	ToPhase     string `json:"to_phase"               validate:"required"`
	Reason      string `json:"reason,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// PatchCaseDataRequest is the request body for shallow-merging case data.
type PatchCaseDataRequest struct {
	Data map[string]any `json:"data" validate:"required"`
}
