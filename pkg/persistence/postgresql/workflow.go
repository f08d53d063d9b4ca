package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , name
  , description
  , phases
  , initial_phase
  , webhook_url
  , automations
  , sla_config
  , active
  , created_at
  , updated_at
`

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
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

	phasesJSON, automationsJSON, slaJSON, err := marshalWorkflowJSON(workflow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orchepy_workflows
			(id, name, description, phases, initial_phase, webhook_url, automations, sla_config, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		nullString(workflow.Description),
		phasesJSON,
		workflow.InitialPhase,
		nullString(workflow.WebhookURL),
		automationsJSON,
		slaJSON,
		workflow.Active,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()

	phasesJSON, automationsJSON, slaJSON, err := marshalWorkflowJSON(workflow)
	if err != nil {
		return err
	}

	query := `
		UPDATE orchepy_workflows
		SET name = $1, description = $2, phases = $3, initial_phase = $4, webhook_url = $5,
			automations = $6, sla_config = $7, active = $8, updated_at = $9
		WHERE id = $10
	`

	result, err := r.db.ExecContext(ctx, query,
		workflow.Name,
		nullString(workflow.Description),
		phasesJSON,
		workflow.InitialPhase,
		nullString(workflow.WebhookURL),
		automationsJSON,
		slaJSON,
		workflow.Active,
		workflow.UpdatedAt,
		workflow.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM orchepy_workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM orchepy_workflows ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM orchepy_workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow        models.Workflow
		description     sql.NullString
		webhookURL      sql.NullString
		phasesJSON      []byte
		automationsJSON []byte
		slaJSON         []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&description,
		&phasesJSON,
		&workflow.InitialPhase,
		&webhookURL,
		&automationsJSON,
		&slaJSON,
		&workflow.Active,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Description = description.String
	workflow.WebhookURL = webhookURL.String

	if err := json.Unmarshal(phasesJSON, &workflow.Phases); err != nil {
		return nil, fmt.Errorf("failed to unmarshal phases: %w", err)
	}

	if len(automationsJSON) > 0 {
		if err := json.Unmarshal(automationsJSON, &workflow.Automations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal automations: %w", err)
		}
	}

	if len(slaJSON) > 0 {
		if err := json.Unmarshal(slaJSON, &workflow.SLAConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sla_config: %w", err)
		}
	}

	return &workflow, nil
}

func marshalWorkflowJSON(workflow *models.Workflow) (phases, automations, sla []byte, err error) {
	phases, err = json.Marshal(workflow.Phases)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal phases: %w", err)
	}

	if workflow.Automations != nil {
		automations, err = json.Marshal(workflow.Automations)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal automations: %w", err)
		}
	}

	if workflow.SLAConfig != nil {
		sla, err = json.Marshal(workflow.SLAConfig)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal sla_config: %w", err)
		}
	}

	return phases, automations, sla, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
