package services

import (
	"context"
	"fmt"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
)

// Workflow implements workflow CRUD with domain validation.
type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{persistence: persistence}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and persists a new workflow.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := validateWorkflow(workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Create(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update validates and persists changes to an existing workflow.
func (w *Workflow) Update(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := validateWorkflow(workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Update(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return w.persistence.WorkflowRepository().List(ctx)
}

// Delete removes a workflow; its cases and their history go with it.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.persistence.WorkflowRepository().Delete(ctx, id)
}

// validateWorkflow enforces the structural invariants: non-empty unique
// phases, a member initial phase, and phase references inside automations and
// sla_config resolving to real phases. Automation trees are checked here so
// invalid programs reject the write instead of failing at transition time.
func validateWorkflow(workflow *models.Workflow) error {
	if len(workflow.Phases) == 0 {
		return ErrPhasesEmpty
	}

	seen := make(map[string]bool, len(workflow.Phases))
	for _, phase := range workflow.Phases {
		if seen[phase] {
			return fmt.Errorf("%w: %q", ErrPhasesDuplicate, phase)
		}

		seen[phase] = true
	}

	if !seen[workflow.InitialPhase] {
		return fmt.Errorf("%w: %q", ErrInitialPhaseUnknown, workflow.InitialPhase)
	}

	for phase := range workflow.SLAConfig {
		if !seen[phase] {
			return fmt.Errorf("%w: %q", ErrSLAPhaseUnknown, phase)
		}
	}

	if workflow.Automations != nil {
		if err := validateAutomationSchema(workflow.Automations); err != nil {
			return err
		}

		if err := workflow.Automations.Validate(workflow.Phases); err != nil {
			return err
		}
	}

	return nil
}
