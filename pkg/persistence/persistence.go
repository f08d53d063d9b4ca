// Package persistence provides the data storage abstraction for workflows,
// cases, and case history.
package persistence

import (
	"context"

	"github.com/derivia/orchepy/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	CaseRepository() CaseRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	Update(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)

	// Delete removes the workflow and cascades to its cases and history.
	Delete(ctx context.Context, id string) error
}

// ListCasesOptions filters and pages case listings.
type ListCasesOptions struct {
	WorkflowID   string
	Status       *models.CaseStatus
	CurrentPhase string
	Limit        int
	Offset       int
}

type CaseRepository interface {
	// Create writes the case row and its initial history entry atomically.
	Create(ctx context.Context, kase *models.Case, entry *models.CaseHistory) error

	GetByID(ctx context.Context, id string) (*models.Case, error)
	List(ctx context.Context, opts ListCasesOptions) ([]*models.Case, error)

	// UpdateData persists the case's data, metadata, status, and completed_at.
	UpdateData(ctx context.Context, kase *models.Case) error

	// UpdatePhase moves the case into entry.ToPhase and appends the history
	// entry in one transaction, advancing phase_entered_at.
	UpdatePhase(ctx context.Context, caseID string, entry *models.CaseHistory) error

	// History returns all transitions of a case, oldest first.
	History(ctx context.Context, caseID string) ([]*models.CaseHistory, error)

	// AcquireLock serializes all transitions and data patches for one case.
	// The returned release func must be called exactly once.
	AcquireLock(ctx context.Context, caseID string) (func(), error)
}
