package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root     string
	mu       sync.RWMutex
	caseRepo *CaseRepository
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.root, "workflows", id+".json")
}

func (wr *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	return writeJSON(wr.path(workflow.ID), workflow)
}

func (wr *WorkflowRepository) Update(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if _, err := os.Stat(wr.path(workflow.ID)); os.IsNotExist(err) {
		return persistence.ErrWorkflowNotFound
	}

	workflow.UpdatedAt = time.Now().UTC()

	return writeJSON(wr.path(workflow.ID), workflow)
}

func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	return wr.getLocked(id)
}

func (wr *WorkflowRepository) getLocked(id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := readJSON(wr.path(id), &workflow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	root := os.DirFS(filepath.Join(wr.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflow, err := wr.getLocked(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// Delete removes the workflow file and cascades to its cases and history.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if _, err := os.Stat(wr.path(id)); os.IsNotExist(err) {
		return persistence.ErrWorkflowNotFound
	}

	cases, err := wr.caseRepo.List(ctx, persistence.ListCasesOptions{WorkflowID: id})
	if err != nil {
		return fmt.Errorf("failed to list cases for cascade delete: %w", err)
	}

	for _, kase := range cases {
		_ = os.Remove(filepath.Join(wr.root, "cases", kase.ID+".json"))
		_ = os.Remove(filepath.Join(wr.root, "case_history", kase.ID+".json"))
	}

	if err := os.Remove(wr.path(id)); err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func readJSON(path string, target any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, target)
}

func writeJSON(path string, source any) error {
	raw, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
