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
)

// CaseRepository handles case and case-history database operations.
type CaseRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(db *sql.DB, logger *slog.Logger) *CaseRepository {
	return &CaseRepository{db: db, logger: logger}
}

const caseColumns = `
	id
  , workflow_id
  , current_phase
  , previous_phase
  , data
  , status
  , metadata
  , created_at
  , updated_at
  , completed_at
  , phase_entered_at
`

func (r *CaseRepository) Create(ctx context.Context, kase *models.Case, entry *models.CaseHistory) error {
	dataJSON, metadataJSON, err := marshalCaseJSON(kase)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orchepy_cases
			(id, workflow_id, current_phase, previous_phase, data, status, metadata, created_at, updated_at, completed_at, phase_entered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		kase.ID,
		kase.WorkflowID,
		kase.CurrentPhase,
		kase.PreviousPhase,
		dataJSON,
		kase.Status,
		metadataJSON,
		kase.CreatedAt,
		kase.UpdatedAt,
		kase.CompletedAt,
		kase.PhaseEnteredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}

	err = insertHistory(ctx, tx, entry)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit case creation: %w", err)
	}

	return nil
}

func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM orchepy_cases WHERE id = $1`

	kase, err := scanCase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCaseNotFound
		}

		return nil, fmt.Errorf("failed to scan case: %w", err)
	}

	return kase, nil
}

func (r *CaseRepository) List(ctx context.Context, opts persistence.ListCasesOptions) ([]*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM orchepy_cases WHERE 1=1`
	args := make([]any, 0, 5)

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.CurrentPhase != "" {
		args = append(args, opts.CurrentPhase)
		query += fmt.Sprintf(" AND current_phase = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	cases := make([]*models.Case, 0)

	for rows.Next() {
		kase, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}

		cases = append(cases, kase)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}

	return cases, nil
}

func (r *CaseRepository) UpdateData(ctx context.Context, kase *models.Case) error {
	dataJSON, metadataJSON, err := marshalCaseJSON(kase)
	if err != nil {
		return err
	}

	kase.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE orchepy_cases
		SET data = $1, metadata = $2, status = $3, completed_at = $4, updated_at = $5
		WHERE id = $6
	`,
		dataJSON,
		metadataJSON,
		kase.Status,
		kase.CompletedAt,
		kase.UpdatedAt,
		kase.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case data: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrCaseNotFound
	}

	return nil
}

// UpdatePhase moves the case and appends the history row in one transaction,
// so a committed transition always has exactly one audit record.
func (r *CaseRepository) UpdatePhase(ctx context.Context, caseID string, entry *models.CaseHistory) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE orchepy_cases
		SET current_phase = $1, previous_phase = $2, phase_entered_at = $3, updated_at = $3
		WHERE id = $4
	`,
		entry.ToPhase,
		entry.FromPhase,
		entry.TransitionedAt,
		caseID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case phase: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		err = persistence.ErrCaseNotFound

		return err
	}

	err = insertHistory(ctx, tx, entry)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit phase change: %w", err)
	}

	return nil
}

func (r *CaseRepository) History(ctx context.Context, caseID string) ([]*models.CaseHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, case_id, from_phase, to_phase, reason, triggered_by, transitioned_at
		FROM orchepy_case_history
		WHERE case_id = $1
		ORDER BY transitioned_at, id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query case history: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	history := make([]*models.CaseHistory, 0)

	for rows.Next() {
		var (
			entry       models.CaseHistory
			reason      sql.NullString
			triggeredBy sql.NullString
		)

		err := rows.Scan(&entry.ID, &entry.CaseID, &entry.FromPhase, &entry.ToPhase, &reason, &triggeredBy, &entry.TransitionedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entry.Reason = reason.String
		entry.TriggeredBy = triggeredBy.String
		history = append(history, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case history: %w", err)
	}

	return history, nil
}

// AcquireLock serializes work on one case with a session-scoped advisory
// lock held on a dedicated connection.
func (r *CaseRepository) AcquireLock(ctx context.Context, caseID string) (func(), error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection for case lock: %w", err)
	}

	_, err = conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtextextended($1, 0))", caseID)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("failed to acquire case lock: %w", err)
	}

	release := func() {
		_, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtextextended($1, 0))", caseID)
		if err != nil {
			r.logger.Error("failed to release case lock", "case_id", caseID, "error", err)
		}

		_ = conn.Close()
	}

	return release, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry *models.CaseHistory) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orchepy_case_history (id, case_id, from_phase, to_phase, reason, triggered_by, transitioned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		entry.ID,
		entry.CaseID,
		entry.FromPhase,
		entry.ToPhase,
		nullString(entry.Reason),
		nullString(entry.TriggeredBy),
		entry.TransitionedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		kase         models.Case
		dataJSON     []byte
		metadataJSON []byte
	)

	err := row.Scan(
		&kase.ID,
		&kase.WorkflowID,
		&kase.CurrentPhase,
		&kase.PreviousPhase,
		&dataJSON,
		&kase.Status,
		&metadataJSON,
		&kase.CreatedAt,
		&kase.UpdatedAt,
		&kase.CompletedAt,
		&kase.PhaseEnteredAt,
	)
	if err != nil {
		return nil, err
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &kase.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal case data: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &kase.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal case metadata: %w", err)
		}
	}

	return &kase, nil
}

func marshalCaseJSON(kase *models.Case) (data, metadata []byte, err error) {
	data, err = json.Marshal(kase.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal case data: %w", err)
	}

	if kase.Metadata != nil {
		metadata, err = json.Marshal(kase.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal case metadata: %w", err)
		}
	}

	return data, metadata, nil
}
