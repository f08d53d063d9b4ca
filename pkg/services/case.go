package services

import (
	"context"
	"fmt"

	"github.com/derivia/orchepy/pkg/engine"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
)

const (
	defaultCaseListLimit = 50
	maxCaseListLimit     = 200
)

// Case implements case operations, delegating every phase change to the
// transition controller.
type Case struct {
	persistence persistence.Persistence
	controller  *engine.Controller
}

// NewCase creates a new case service.
func NewCase(persistence persistence.Persistence, controller *engine.Controller) *Case {
	return &Case{persistence: persistence, controller: controller}
}

// CreateCaseRequest carries the parameters for case creation. InitialPhase
// overrides the workflow default when set.
type CreateCaseRequest struct {
	WorkflowID   string
	Data         map[string]any
	Metadata     map[string]any
	InitialPhase string
}

func (s *Case) Create(ctx context.Context, req CreateCaseRequest) (*models.Case, error) {
	return s.controller.CreateCase(ctx, req.WorkflowID, req.InitialPhase, req.Data, req.Metadata)
}

func (s *Case) Move(ctx context.Context, caseID string, req engine.MoveRequest) (*models.Case, error) {
	return s.controller.MoveCase(ctx, caseID, req)
}

func (s *Case) FetchByID(ctx context.Context, id string) (*models.Case, error) {
	return s.persistence.CaseRepository().GetByID(ctx, id)
}

func (s *Case) List(ctx context.Context, opts persistence.ListCasesOptions) ([]*models.Case, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidListOptions)
	}

	if opts.Limit == 0 {
		opts.Limit = defaultCaseListLimit
	}

	if opts.Limit > maxCaseListLimit {
		opts.Limit = maxCaseListLimit
	}

	if opts.Status != nil && !models.ValidCaseStatus(*opts.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidListOptions, *opts.Status)
	}

	return s.persistence.CaseRepository().List(ctx, opts)
}

func (s *Case) History(ctx context.Context, caseID string) ([]*models.CaseHistory, error) {
	// Surface a 404 for unknown cases instead of an empty history.
	if _, err := s.persistence.CaseRepository().GetByID(ctx, caseID); err != nil {
		return nil, err
	}

	return s.persistence.CaseRepository().History(ctx, caseID)
}

// PatchData shallow-merges the given object into the case data document
// under the case lock. No schema is enforced on case data.
func (s *Case) PatchData(ctx context.Context, caseID string, patch map[string]any) (*models.Case, error) {
	release, err := s.persistence.CaseRepository().AcquireLock(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer release()

	kase, err := s.persistence.CaseRepository().GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	kase.MergeData(patch)

	if err := s.persistence.CaseRepository().UpdateData(ctx, kase); err != nil {
		return nil, err
	}

	return kase, nil
}
