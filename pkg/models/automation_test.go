package models_test

import (
	"encoding/json"
	"testing"

	"github.com/derivia/orchepy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomationProgram_Decode(t *testing.T) {
	t.Parallel()

	raw := `{
		"automations": [
			{
				"trigger": "on_enter",
				"phase": "OCR",
				"actions": [
					{
						"type": "webhook",
						"id": "ocr_result",
						"name": "Process OCR",
						"url": "https://ocr.example.com/process",
						"method": "POST",
						"headers": {"Authorization": "Bearer xxx"},
						"fields": ["case_id", "data"],
						"retry": {"enabled": true, "max_attempts": 3, "delay_ms": 1000}
					},
					{"type": "delay", "name": "Wait", "duration_ms": 5000}
				]
			},
			{
				"trigger": "on_exit",
				"phase": "OCR",
				"actions": [{"type": "set_field", "field": "data.ocr_done", "value": true}]
			}
		]
	}`

	var program models.AutomationProgram
	require.NoError(t, json.Unmarshal([]byte(raw), &program))

	require.Len(t, program.Automations, 2)

	onEnter := program.BindingsFor(models.TriggerOnEnter, "OCR")
	require.Len(t, onEnter, 1)
	require.Len(t, onEnter[0].Actions, 2)

	webhook := onEnter[0].Actions[0]
	assert.Equal(t, models.ActionWebhook, webhook.Type)
	assert.Equal(t, "ocr_result", webhook.ID)
	assert.Equal(t, models.OnErrorStop, webhook.OnError)
	assert.True(t, webhook.Retry.Enabled)
	assert.Equal(t, 3, webhook.Retry.MaxAttempts)

	delay := onEnter[0].Actions[1]
	assert.Equal(t, models.ActionDelay, delay.Type)
	assert.Equal(t, int64(5000), delay.DurationMS)

	onExit := program.BindingsFor(models.TriggerOnExit, "OCR")
	require.Len(t, onExit, 1)
	assert.Equal(t, models.ActionSetField, onExit[0].Actions[0].Type)

	assert.Empty(t, program.BindingsFor(models.TriggerOnEnter, "Validation"))
}

func TestAction_RetryDefaults(t *testing.T) {
	t.Parallel()

	var action models.Action
	require.NoError(t, json.Unmarshal([]byte(`{"type": "webhook", "url": "http://example.com", "retry": {"enabled": true}}`), &action))

	assert.Equal(t, 3, action.Retry.MaxAttempts)
	assert.Equal(t, int64(1000), action.Retry.DelayMS)
}

func TestAction_ConditionalDecode(t *testing.T) {
	t.Parallel()

	t.Run("simple condition", func(t *testing.T) {
		t.Parallel()

		raw := `{
			"type": "conditional",
			"field": "data.amount",
			"op": ">",
			"value": 1000,
			"then": [{"type": "move_to_phase", "phase": "Approved"}],
			"else": [{"type": "move_to_phase", "phase": "Rejected"}]
		}`

		var action models.Action
		require.NoError(t, json.Unmarshal([]byte(raw), &action))

		cond := action.Cond()
		assert.False(t, cond.Compound())
		assert.Equal(t, ">", cond.ComparisonOp())
		require.Len(t, action.Then, 1)
		require.Len(t, action.Else, 1)
		assert.Equal(t, "Approved", action.Then[0].Phase)
	})

	t.Run("legacy operator key", func(t *testing.T) {
		t.Parallel()

		raw := `{
			"type": "conditional",
			"field": "status",
			"operator": "==",
			"value": "active",
			"then": []
		}`

		var action models.Action
		require.NoError(t, json.Unmarshal([]byte(raw), &action))

		assert.Equal(t, "==", action.Cond().ComparisonOp())
	})

	t.Run("compound condition", func(t *testing.T) {
		t.Parallel()

		raw := `{
			"type": "conditional",
			"operator": "AND",
			"conditions": [
				{"field": "data.amount", "op": ">", "value": 10000},
				{"field": "status", "op": "==", "value": "active"}
			],
			"then": []
		}`

		var action models.Action
		require.NoError(t, json.Unmarshal([]byte(raw), &action))

		cond := action.Cond()
		assert.True(t, cond.Compound())
		assert.Equal(t, models.LogicalAnd, cond.Operator)
		assert.Len(t, cond.Conditions, 2)
	})
}

func TestAutomationProgram_Validate(t *testing.T) {
	t.Parallel()

	phases := []string{"Pending", "Review", "Approved", "Rejected"}

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid program",
			raw: `{"automations": [{"trigger": "on_enter", "phase": "Review", "actions": [
				{"type": "conditional", "field": "data.amount", "op": ">", "value": 1000,
				 "then": [{"type": "move_to_phase", "phase": "Approved"}],
				 "else": [{"type": "move_to_phase", "phase": "Rejected"}]}
			]}]}`,
		},
		{
			name:    "unknown trigger",
			raw:     `{"automations": [{"trigger": "on_timer", "phase": "Review", "actions": []}]}`,
			wantErr: true,
		},
		{
			name:    "phase not in workflow",
			raw:     `{"automations": [{"trigger": "on_enter", "phase": "Archived", "actions": []}]}`,
			wantErr: true,
		},
		{
			name:    "unknown action type",
			raw:     `{"automations": [{"trigger": "on_enter", "phase": "Review", "actions": [{"type": "emit_metric"}]}]}`,
			wantErr: true,
		},
		{
			name:    "webhook without url",
			raw:     `{"automations": [{"trigger": "on_enter", "phase": "Review", "actions": [{"type": "webhook"}]}]}`,
			wantErr: true,
		},
		{
			name:    "move to unknown phase",
			raw:     `{"automations": [{"trigger": "on_enter", "phase": "Review", "actions": [{"type": "move_to_phase", "phase": "Archived"}]}]}`,
			wantErr: true,
		},
		{
			name: "move to unknown phase in nested branch",
			raw: `{"automations": [{"trigger": "on_enter", "phase": "Review", "actions": [
				{"type": "conditional", "field": "x", "op": "==", "value": 1,
				 "then": [{"type": "move_to_phase", "phase": "Archived"}]}
			]}]}`,
			wantErr: true,
		},
		{
			name:    "unknown comparison operator",
			raw:     `{"automations": [{"trigger": "on_enter", "phase": "Review", "actions": [{"type": "conditional", "field": "x", "op": "~=", "value": 1, "then": []}]}]}`,
			wantErr: true,
		},
		{
			name:    "negative delay",
			raw:     `{"automations": [{"trigger": "on_enter", "phase": "Review", "actions": [{"type": "delay", "duration_ms": -1}]}]}`,
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var program models.AutomationProgram
			require.NoError(t, json.Unmarshal([]byte(testCase.raw), &program))

			err := program.Validate(phases)
			if testCase.wantErr {
				require.ErrorIs(t, err, models.ErrInvalidAutomation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWorkflow_ActionsFor(t *testing.T) {
	t.Parallel()

	workflow := &models.Workflow{
		Phases: []string{"A", "B"},
		Automations: &models.AutomationProgram{
			Automations: []models.Binding{
				{Trigger: models.TriggerOnEnter, Phase: "B", Actions: []models.Action{
					{Type: models.ActionDelay, DurationMS: 1},
				}},
				{Trigger: models.TriggerOnEnter, Phase: "B", Actions: []models.Action{
					{Type: models.ActionSetField, Field: "data.x", Value: 1.0},
				}},
			},
		},
	}

	actions := workflow.ActionsFor(models.TriggerOnEnter, "B")
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionDelay, actions[0].Type)
	assert.Equal(t, models.ActionSetField, actions[1].Type)

	assert.Empty(t, workflow.ActionsFor(models.TriggerOnExit, "B"))
	assert.True(t, workflow.HasPhase("A"))
	assert.False(t, workflow.HasPhase("C"))
}
