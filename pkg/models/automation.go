package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AutomationTrigger scopes a binding to one side of a phase transition.
type AutomationTrigger string

const (
	TriggerOnEnter AutomationTrigger = "on_enter"
	TriggerOnExit  AutomationTrigger = "on_exit"
)

// OnError selects what happens to the rest of an action list after a webhook
// exhausts its retries.
type OnError string

const (
	OnErrorStop     OnError = "stop"
	OnErrorContinue OnError = "continue"
)

// ActionType discriminates the action union.
type ActionType string

const (
	ActionWebhook     ActionType = "webhook"
	ActionDelay       ActionType = "delay"
	ActionConditional ActionType = "conditional"
	ActionMoveToPhase ActionType = "move_to_phase"
	ActionSetField    ActionType = "set_field"
)

const (
	defaultRetryMaxAttempts = 3
	defaultRetryDelayMS     = 1000
)

// RetryConfig defines retry behavior for webhook actions.
type RetryConfig struct {
	Enabled     bool  `json:"enabled"`
	MaxAttempts int   `json:"max_attempts"`
	DelayMS     int64 `json:"delay_ms"`
}

func (r *RetryConfig) UnmarshalJSON(data []byte) error {
	type alias RetryConfig

	raw := alias{MaxAttempts: defaultRetryMaxAttempts, DelayMS: defaultRetryDelayMS}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = RetryConfig(raw)

	return nil
}

// LogicalOperator combines subconditions in a compound condition.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Condition is either a simple comparison (field/op/value) or a compound of
// simple conditions joined by AND/OR. The wire shape is untagged: the
// presence of a conditions list marks the compound form.
type Condition struct {
	Field string `json:"field,omitempty"`
	Op    string `json:"op,omitempty"`
	Value any    `json:"value"`

	Operator   LogicalOperator `json:"operator,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
}

// Compound reports whether the condition is a compound AND/OR node.
func (c Condition) Compound() bool {
	return len(c.Conditions) > 0
}

// ComparisonOp returns the comparison operator of a simple condition,
// accepting the legacy shape that used "operator" in place of "op".
func (c Condition) ComparisonOp() string {
	if c.Op != "" {
		return c.Op
	}

	return string(c.Operator)
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true, "contains": true,
}

// Action is the tagged variant making up automation programs, discriminated
// by Type. Only the fields relevant to the variant are set; the condition of
// a conditional action lives inline (field/op/value or operator/conditions),
// matching the wire format.
type Action struct {
	Type ActionType `json:"type"`
	ID   string     `json:"id,omitempty"`
	Name string     `json:"name,omitempty"`

	// webhook
	URL             string            `json:"url,omitempty"`
	Method          string            `json:"method,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Fields          []string          `json:"fields,omitempty"`
	Body            any               `json:"body,omitempty"`
	UseResponseFrom string            `json:"use_response_from,omitempty"`
	Retry           RetryConfig       `json:"retry,omitempty"`
	OnError         OnError           `json:"on_error,omitempty"`

	// delay
	DurationMS int64 `json:"duration_ms,omitempty"`

	// conditional
	Field      string          `json:"field,omitempty"`
	Op         string          `json:"op,omitempty"`
	Operator   LogicalOperator `json:"operator,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
	Then       []Action        `json:"then,omitempty"`
	Else       []Action        `json:"else,omitempty"`

	// set_field shares Field; conditional and set_field share Value. Kept
	// un-omitted so falsy values survive a marshal round trip.
	Value any `json:"value"`

	// move_to_phase
	Phase string `json:"phase,omitempty"`
}

func (a *Action) UnmarshalJSON(data []byte) error {
	type alias Action

	raw := alias{OnError: OnErrorStop}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Action(raw)

	return nil
}

// Cond assembles the condition of a conditional action from its inline
// fields.
func (a Action) Cond() Condition {
	return Condition{
		Field:      a.Field,
		Op:         a.Op,
		Value:      a.Value,
		Operator:   a.Operator,
		Conditions: a.Conditions,
	}
}

// DisplayName is the label used in logs and webhook failure reports.
func (a Action) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}

	if a.ID != "" {
		return a.ID
	}

	return string(a.Type)
}

// Binding attaches an ordered action list to a (trigger, phase) pair.
type Binding struct {
	Trigger AutomationTrigger `json:"trigger"`
	Phase   string            `json:"phase"`
	Actions []Action          `json:"actions"`
}

// AutomationProgram is the declarative automation tree stored on a workflow.
// It is decoded into typed form when the workflow is loaded, so invalid trees
// reject the workflow write instead of failing at transition time.
type AutomationProgram struct {
	Automations []Binding `json:"automations"`
}

// BindingsFor returns the bindings matching a trigger and phase.
func (p *AutomationProgram) BindingsFor(trigger AutomationTrigger, phase string) []Binding {
	var matched []Binding

	for _, binding := range p.Automations {
		if binding.Trigger == trigger && binding.Phase == phase {
			matched = append(matched, binding)
		}
	}

	return matched
}

// ErrInvalidAutomation marks structural errors in an automation program.
var ErrInvalidAutomation = errors.New("invalid automation program")

// Validate checks the whole program against the workflow's phase list.
func (p *AutomationProgram) Validate(phases []string) error {
	member := make(map[string]bool, len(phases))
	for _, phase := range phases {
		member[phase] = true
	}

	for i, binding := range p.Automations {
		if binding.Trigger != TriggerOnEnter && binding.Trigger != TriggerOnExit {
			return fmt.Errorf("%w: automation %d: unknown trigger %q", ErrInvalidAutomation, i, binding.Trigger)
		}

		if !member[binding.Phase] {
			return fmt.Errorf("%w: automation %d: phase %q not in workflow", ErrInvalidAutomation, i, binding.Phase)
		}

		if err := validateActions(binding.Actions, member); err != nil {
			return fmt.Errorf("%w: automation %d: %v", ErrInvalidAutomation, i, err)
		}
	}

	return nil
}

func validateActions(actions []Action, phases map[string]bool) error {
	for i, action := range actions {
		if err := validateAction(action, phases); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.DisplayName(), err)
		}
	}

	return nil
}

func validateAction(action Action, phases map[string]bool) error {
	switch action.Type {
	case ActionWebhook:
		if action.URL == "" {
			return errors.New("webhook requires a url")
		}

		if action.OnError != OnErrorStop && action.OnError != OnErrorContinue {
			return fmt.Errorf("unknown on_error %q", action.OnError)
		}

		if action.Retry.Enabled && action.Retry.MaxAttempts < 1 {
			return errors.New("retry max_attempts must be at least 1")
		}

	case ActionDelay:
		if action.DurationMS < 0 {
			return errors.New("delay duration_ms must not be negative")
		}

	case ActionConditional:
		if err := validateCondition(action.Cond()); err != nil {
			return err
		}

		if err := validateActions(action.Then, phases); err != nil {
			return fmt.Errorf("then branch: %w", err)
		}

		if err := validateActions(action.Else, phases); err != nil {
			return fmt.Errorf("else branch: %w", err)
		}

	case ActionMoveToPhase:
		if !phases[action.Phase] {
			return fmt.Errorf("phase %q not in workflow", action.Phase)
		}

	case ActionSetField:
		if action.Field == "" {
			return errors.New("set_field requires a field")
		}

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}

	return nil
}

func validateCondition(cond Condition) error {
	if cond.Compound() {
		if cond.Operator != LogicalAnd && cond.Operator != LogicalOr {
			return fmt.Errorf("unknown logical operator %q", cond.Operator)
		}

		for i, sub := range cond.Conditions {
			if sub.Compound() {
				return errors.New("nested compound conditions are not supported")
			}

			if !comparisonOps[sub.ComparisonOp()] {
				return fmt.Errorf("condition %d: unknown operator %q", i, sub.ComparisonOp())
			}
		}

		return nil
	}

	if !comparisonOps[cond.ComparisonOp()] {
		return fmt.Errorf("unknown operator %q", cond.ComparisonOp())
	}

	return nil
}
