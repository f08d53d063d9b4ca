package automation

import (
	"github.com/derivia/orchepy/pkg/models"
)

// Context is the transient evaluation state for one trigger's action list.
type Context struct {
	Case     *models.Case
	Workflow *models.Workflow
	Document *Document

	// Responses maps webhook action ids to their last response body for
	// use_response_from chaining.
	Responses map[string]any

	Trigger   models.AutomationTrigger
	FromPhase string
	ToPhase   string
}

// NewContext snapshots the case into a document and prepares an empty
// response map.
func NewContext(kase *models.Case, workflow *models.Workflow, trigger models.AutomationTrigger, fromPhase, toPhase string) (*Context, error) {
	doc, err := NewDocument(kase)
	if err != nil {
		return nil, err
	}

	return &Context{
		Case:      kase,
		Workflow:  workflow,
		Document:  doc,
		Responses: make(map[string]any),
		Trigger:   trigger,
		FromPhase: fromPhase,
		ToPhase:   toPhase,
	}, nil
}
