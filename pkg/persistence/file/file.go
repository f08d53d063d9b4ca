// Package file provides a file-based persistence implementation, used for
// local development and unit tests. Entities are stored as JSON documents
// under the root directory; per-case serialization uses in-process locks.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/derivia/orchepy/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	caseRepo     *CaseRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped, matching the DATABASE_URL convention.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, dir := range []string{"workflows", "cases", "case_history"} {
		_ = os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755)
	}

	caseRepo := NewCaseRepository(cleanRoot)
	workflowRepo := NewWorkflowRepository(cleanRoot)
	workflowRepo.caseRepo = caseRepo

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: workflowRepo,
		caseRepo:     caseRepo,
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return fmt.Errorf("persistence root missing: %w", err)
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) CaseRepository() persistence.CaseRepository {
	return fp.caseRepo
}
