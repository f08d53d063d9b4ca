// Package postgresql provides the PostgreSQL persistence implementation for
// workflows, cases, and case history.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/derivia/orchepy/pkg/persistence"
	"github.com/derivia/orchepy/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	caseRepo     *CaseRepository
}

// NewPersistence connects, runs migrations, and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database, logger),
		caseRepo:     NewCaseRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) CaseRepository() persistence.CaseRepository {
	return p.caseRepo
}
