// Package events defines the case lifecycle event envelopes published to
// workflow webhook endpoints and the event bus.
package events

import (
	"github.com/derivia/orchepy/pkg/models"
)

type EventType string

// Topic is the event bus topic carrying case lifecycle events.
const Topic = "orchepy.cases"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CaseCreatedEvent     EventType = "case.created"
	CaseMovedEvent       EventType = "case.moved"
	CaseSLABreachedEvent EventType = "case.sla_breached"
)

// CaseEvent is the outbound envelope for global case lifecycle events.
type CaseEvent struct {
	EventType EventType     `json:"event_type"`
	Data      CaseEventData `json:"data"`
}

type CaseEventData struct {
	CaseID     string         `json:"case_id"`
	WorkflowID string         `json:"workflow_id"`
	ToPhase    string         `json:"to_phase"`
	FromPhase  *string        `json:"from_phase"`
	CaseData   map[string]any `json:"case_data"`
}

// GetType returns the envelope's event type.
func (e CaseEvent) GetType() EventType {
	return e.EventType
}

// NewCaseEvent builds the envelope for a case placed into or moved to its
// current phase. fromPhase is nil for creation.
func NewCaseEvent(eventType EventType, kase *models.Case, fromPhase *string) CaseEvent {
	return CaseEvent{
		EventType: eventType,
		Data: CaseEventData{
			CaseID:     kase.ID,
			WorkflowID: kase.WorkflowID,
			ToPhase:    kase.CurrentPhase,
			FromPhase:  fromPhase,
			CaseData:   kase.Data,
		},
	}
}
