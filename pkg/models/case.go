package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus represents the lifecycle state of a case.
type CaseStatus string

const (
	CaseStatusActive    CaseStatus = "active"
	CaseStatusCompleted CaseStatus = "completed"
	CaseStatusFailed    CaseStatus = "failed"
	CaseStatusPaused    CaseStatus = "paused"
)

// ValidCaseStatus reports whether s is one of the known case statuses.
func ValidCaseStatus(s CaseStatus) bool {
	switch s {
	case CaseStatusActive, CaseStatusCompleted, CaseStatusFailed, CaseStatusPaused:
		return true
	default:
		return false
	}
}

// Case is a long-lived workflow instance carrying arbitrary structured data
// while it transits phases.
type Case struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	CurrentPhase   string         `json:"current_phase"`
	PreviousPhase  *string        `json:"previous_phase,omitempty"`
	Data           map[string]any `json:"data"`
	Status         CaseStatus     `json:"status"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	PhaseEnteredAt time.Time      `json:"phase_entered_at"`
}

// CaseHistory is an append-only audit record, one row per phase change
// including the initial placement at creation (from_phase nil).
type CaseHistory struct {
	ID             string    `json:"id"`
	CaseID         string    `json:"case_id"`
	FromPhase      *string   `json:"from_phase,omitempty"`
	ToPhase        string    `json:"to_phase"`
	Reason         string    `json:"reason,omitempty"`
	TriggeredBy    string    `json:"triggered_by,omitempty"`
	TransitionedAt time.Time `json:"transitioned_at"`
}

// NewCase builds an active case placed at the given initial phase.
func NewCase(workflowID, initialPhase string, data, metadata map[string]any) (*Case, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	if data == nil {
		data = map[string]any{}
	}

	now := time.Now().UTC()

	return &Case{
		ID:             id.String(),
		WorkflowID:     workflowID,
		CurrentPhase:   initialPhase,
		Data:           data,
		Status:         CaseStatusActive,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
		PhaseEnteredAt: now,
	}, nil
}

// NewCaseHistory builds an audit record for a transition into toPhase.
func NewCaseHistory(caseID string, fromPhase *string, toPhase, reason, triggeredBy string) (*CaseHistory, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	return &CaseHistory{
		ID:             id.String(),
		CaseID:         caseID,
		FromPhase:      fromPhase,
		ToPhase:        toPhase,
		Reason:         reason,
		TriggeredBy:    triggeredBy,
		TransitionedAt: time.Now().UTC(),
	}, nil
}

// MoveToPhase mutates the in-memory snapshot; persistence of the change is
// the store's job.
func (c *Case) MoveToPhase(phase string) {
	previous := c.CurrentPhase
	c.PreviousPhase = &previous
	c.CurrentPhase = phase
	now := time.Now().UTC()
	c.UpdatedAt = now
	c.PhaseEnteredAt = now
}

// MergeData shallow-merges the given object into the case data document.
func (c *Case) MergeData(patch map[string]any) {
	if c.Data == nil {
		c.Data = map[string]any{}
	}

	for key, value := range patch {
		c.Data[key] = value
	}

	c.UpdatedAt = time.Now().UTC()
}

// SetStatus updates the case status, maintaining completed_at for terminal
// statuses.
func (c *Case) SetStatus(status CaseStatus) {
	c.Status = status
	now := time.Now().UTC()
	c.UpdatedAt = now

	switch status {
	case CaseStatusCompleted, CaseStatusFailed:
		c.CompletedAt = &now
	case CaseStatusActive, CaseStatusPaused:
		c.CompletedAt = nil
	}
}
