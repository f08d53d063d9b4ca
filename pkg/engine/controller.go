// Package engine implements the phase-transition pipeline: it validates and
// applies case phase changes, runs the bound automation programs, and owns
// the per-case lock lifecycle and the deferred-transition chain bound.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/derivia/orchepy/pkg/automation"
	"github.com/derivia/orchepy/pkg/events"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/otelhelper"
	"github.com/derivia/orchepy/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxChainDepth bounds the number of phase changes one external request may
// cause, counting the requested transition and every automation-initiated
// redirection after it.
const MaxChainDepth = 16

// MoveRequest carries the caller-supplied parameters of a phase change.
type MoveRequest struct {
	ToPhase     string
	Reason      string
	TriggeredBy string
}

// Controller drives case transitions. move_to_phase actions inside automation
// programs come back from the interpreter as deferred continuations, applied
// here so the lock is held and the chain budget enforced in one place.
type Controller struct {
	persistence persistence.Persistence
	interpreter *automation.Interpreter
	notifier    *events.Notifier
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewController(
	persistence persistence.Persistence,
	interpreter *automation.Interpreter,
	notifier *events.Notifier,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		persistence: persistence,
		interpreter: interpreter,
		notifier:    notifier,
		logger:      logger.With("module", "transition_controller"),
		tracer:      otel.Tracer("github.com/derivia/orchepy/pkg/engine"),
	}
}

// CreateCase inserts a case at the workflow's initial phase (or the requested
// override), writes the creation history entry, announces case.created, and
// runs the initial on_enter bindings under the chaining rules.
func (c *Controller) CreateCase(ctx context.Context, workflowID, initialPhase string, data, metadata map[string]any) (*models.Case, error) {
	ctx, span := c.tracer.Start(ctx, "engine.create_case",
		trace.WithAttributes(attribute.String(otelhelper.WorkflowIDKey, workflowID)))
	defer span.End()

	workflow, err := c.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !workflow.Active {
		return nil, ErrWorkflowInactive
	}

	phase := initialPhase
	if phase == "" {
		phase = workflow.InitialPhase
	}

	if !workflow.HasPhase(phase) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}

	kase, err := models.NewCase(workflowID, phase, data, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to build case: %w", err)
	}

	entry, err := models.NewCaseHistory(kase.ID, nil, phase, "case created", "system")
	if err != nil {
		return nil, fmt.Errorf("failed to build history entry: %w", err)
	}

	if err := c.persistence.CaseRepository().Create(ctx, kase, entry); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	release, err := c.persistence.CaseRepository().AcquireLock(ctx, kase.ID)
	if err != nil {
		otelhelper.SetError(span, err)

		return kase, err
	}
	defer release()

	span.SetAttributes(attribute.String(otelhelper.CaseIDKey, kase.ID))
	c.logger.InfoContext(ctx, "Created case", "case_id", kase.ID, "phase", phase)

	c.notifier.CaseCreated(ctx, workflow, kase)

	next, err := c.runTrigger(ctx, workflow, kase, models.TriggerOnEnter, "", phase)
	if err != nil {
		otelhelper.SetError(span, err)

		return kase, err
	}

	if next == "" {
		return kase, nil
	}

	// The creation itself consumed the first slot of the chain budget.
	if err := c.chain(ctx, workflow, kase, phase, next, 1); err != nil {
		otelhelper.SetError(span, err)

		return kase, err
	}

	return kase, nil
}

// MoveCase validates and applies an externally requested phase change,
// serialized against all other work on the case.
func (c *Controller) MoveCase(ctx context.Context, caseID string, req MoveRequest) (*models.Case, error) {
	ctx, span := c.tracer.Start(ctx, "engine.move_case", trace.WithAttributes(
		attribute.String(otelhelper.CaseIDKey, caseID),
		attribute.String(otelhelper.PhaseKey, req.ToPhase),
	))
	defer span.End()

	release, err := c.persistence.CaseRepository().AcquireLock(ctx, caseID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}
	defer release()

	kase, err := c.persistence.CaseRepository().GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	workflow, err := c.persistence.WorkflowRepository().GetByID(ctx, kase.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.Active {
		return nil, ErrWorkflowInactive
	}

	if !workflow.HasPhase(req.ToPhase) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, req.ToPhase)
	}

	if kase.CurrentPhase == req.ToPhase {
		c.logger.DebugContext(ctx, "Case already in target phase", "case_id", caseID, "phase", req.ToPhase)

		return kase, nil
	}

	err = c.transition(ctx, workflow, kase, kase.CurrentPhase, req.ToPhase, req.Reason, req.TriggeredBy, 0)
	if err != nil {
		otelhelper.SetError(span, err)

		return kase, err
	}

	return kase, nil
}

// chain continues automation-initiated transitions, starting at the given
// depth in the budget.
func (c *Controller) chain(ctx context.Context, workflow *models.Workflow, kase *models.Case, from, to string, depth int) error {
	return c.transition(ctx, workflow, kase, from, to, "on_enter automation", "system", depth)
}

// transition applies from→to and follows deferred moves until the chain
// settles or the budget runs out. Each iteration: on_exit(from), commit +
// history + case.moved, on_enter(to).
func (c *Controller) transition(ctx context.Context, workflow *models.Workflow, kase *models.Case, from, to, reason, triggeredBy string, depth int) error {
	for {
		if depth >= MaxChainDepth {
			c.logger.WarnContext(ctx, "Automation chain depth exceeded",
				"case_id", kase.ID, "phase", kase.CurrentPhase)

			return ErrAutomationLoop
		}

		redirect, err := c.runTrigger(ctx, workflow, kase, models.TriggerOnExit, from, to)
		if err != nil {
			return err
		}

		if redirect != "" && redirect != to {
			depth++
			if depth >= MaxChainDepth {
				return ErrAutomationLoop
			}

			c.logger.InfoContext(ctx, "on_exit automation redirected transition",
				"case_id", kase.ID, "from", from, "to", to, "redirect", redirect)
			to = redirect
		}

		entry, err := models.NewCaseHistory(kase.ID, &from, to, reason, triggeredBy)
		if err != nil {
			return fmt.Errorf("failed to build history entry: %w", err)
		}

		if err := c.persistence.CaseRepository().UpdatePhase(ctx, kase.ID, entry); err != nil {
			return err
		}

		fromCopy := from
		kase.CurrentPhase = to
		kase.PreviousPhase = &fromCopy
		kase.PhaseEnteredAt = entry.TransitionedAt
		kase.UpdatedAt = entry.TransitionedAt

		c.logger.InfoContext(ctx, "Moved case", "case_id", kase.ID, "from", from, "to", to)

		c.notifier.CaseMoved(ctx, workflow, kase, from)

		next, err := c.runTrigger(ctx, workflow, kase, models.TriggerOnEnter, from, to)
		if err != nil {
			return err
		}

		if next == "" {
			return nil
		}

		from, to = to, next
		reason, triggeredBy = "on_enter automation", "system"
		depth++
	}
}

// runTrigger executes the action lists bound to (trigger, phase). Data writes
// are flushed once per trigger, before any deferred transition is applied by
// the caller. The returned string is the deferred target phase, empty when
// the list settled.
func (c *Controller) runTrigger(ctx context.Context, workflow *models.Workflow, kase *models.Case, trigger models.AutomationTrigger, from, to string) (string, error) {
	phase := to
	if trigger == models.TriggerOnExit {
		phase = from
	}

	actions := workflow.ActionsFor(trigger, phase)
	if len(actions) == 0 {
		return "", nil
	}

	ctx, span := c.tracer.Start(ctx, "engine.run_trigger", trace.WithAttributes(
		attribute.String(otelhelper.CaseIDKey, kase.ID),
		attribute.String(otelhelper.TriggerKey, string(trigger)),
		attribute.String(otelhelper.PhaseKey, phase),
	))
	defer span.End()

	ectx, err := automation.NewContext(kase, workflow, trigger, from, to)
	if err != nil {
		return "", err
	}

	outcome, err := c.interpreter.Execute(ctx, actions, ectx)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	if ectx.Document.Dirty() {
		if err := ectx.Document.Apply(); err != nil {
			return "", err
		}

		if err := c.persistence.CaseRepository().UpdateData(ctx, kase); err != nil {
			return "", err
		}
	}

	if !outcome.Deferred {
		return "", nil
	}

	if !workflow.HasPhase(outcome.Phase) {
		c.logger.WarnContext(ctx, "Automation deferred move to unknown phase, ignoring",
			"case_id", kase.ID, "phase", outcome.Phase)

		return "", nil
	}

	return outcome.Phase, nil
}
