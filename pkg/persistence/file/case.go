package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
)

// CaseRepository handles case and case-history file operations.
type CaseRepository struct {
	root  string
	mu    sync.RWMutex
	locks sync.Map // case id -> *sync.Mutex
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(root string) *CaseRepository {
	return &CaseRepository{root: root}
}

func (cr *CaseRepository) casePath(id string) string {
	return filepath.Join(cr.root, "cases", id+".json")
}

func (cr *CaseRepository) historyPath(caseID string) string {
	return filepath.Join(cr.root, "case_history", caseID+".json")
}

func (cr *CaseRepository) Create(_ context.Context, kase *models.Case, entry *models.CaseHistory) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if err := writeJSON(cr.casePath(kase.ID), kase); err != nil {
		return err
	}

	return cr.appendHistoryLocked(entry)
}

func (cr *CaseRepository) GetByID(_ context.Context, id string) (*models.Case, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	return cr.getLocked(id)
}

func (cr *CaseRepository) getLocked(id string) (*models.Case, error) {
	var kase models.Case

	err := readJSON(cr.casePath(id), &kase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrCaseNotFound
		}

		return nil, fmt.Errorf("failed to read case %s: %w", id, err)
	}

	return &kase, nil
}

func (cr *CaseRepository) List(_ context.Context, opts persistence.ListCasesOptions) ([]*models.Case, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	root := os.DirFS(filepath.Join(cr.root, "cases"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list case files: %w", err)
	}

	all := make([]*models.Case, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		kase, err := cr.getLocked(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		all = append(all, kase)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	filtered := make([]*models.Case, 0, len(all))

	for _, kase := range all {
		if opts.WorkflowID != "" && kase.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && kase.Status != *opts.Status {
			continue
		}

		if opts.CurrentPhase != "" && kase.CurrentPhase != opts.CurrentPhase {
			continue
		}

		filtered = append(filtered, kase)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(filtered) {
			return []*models.Case{}, nil
		}

		filtered = filtered[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}

	return filtered, nil
}

func (cr *CaseRepository) UpdateData(_ context.Context, kase *models.Case) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if _, err := os.Stat(cr.casePath(kase.ID)); os.IsNotExist(err) {
		return persistence.ErrCaseNotFound
	}

	return writeJSON(cr.casePath(kase.ID), kase)
}

func (cr *CaseRepository) UpdatePhase(_ context.Context, caseID string, entry *models.CaseHistory) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	kase, err := cr.getLocked(caseID)
	if err != nil {
		return err
	}

	kase.CurrentPhase = entry.ToPhase
	kase.PreviousPhase = entry.FromPhase
	kase.PhaseEnteredAt = entry.TransitionedAt
	kase.UpdatedAt = entry.TransitionedAt

	if err := writeJSON(cr.casePath(caseID), kase); err != nil {
		return err
	}

	return cr.appendHistoryLocked(entry)
}

func (cr *CaseRepository) History(_ context.Context, caseID string) ([]*models.CaseHistory, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	history := make([]*models.CaseHistory, 0)

	err := readJSON(cr.historyPath(caseID), &history)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read history for case %s: %w", caseID, err)
	}

	return history, nil
}

// AcquireLock serializes work on one case with an in-process mutex.
func (cr *CaseRepository) AcquireLock(_ context.Context, caseID string) (func(), error) {
	lock, _ := cr.locks.LoadOrStore(caseID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock, nil
}

func (cr *CaseRepository) appendHistoryLocked(entry *models.CaseHistory) error {
	history := make([]*models.CaseHistory, 0)

	err := readJSON(cr.historyPath(entry.CaseID), &history)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read history for case %s: %w", entry.CaseID, err)
	}

	history = append(history, entry)

	return writeJSON(cr.historyPath(entry.CaseID), history)
}
