package automation

import (
	"context"
	"log/slog"
	"time"

	"github.com/derivia/orchepy/pkg/models"
)

// Outcome is what an action list hands back to the transition controller: a
// possible deferred phase move, applied by the controller after the list's
// data writes are flushed.
type Outcome struct {
	Deferred bool
	Phase    string
}

// Interpreter executes an ordered action list over a mutable evaluation
// context, recursing into conditional branches.
type Interpreter struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewInterpreter(dispatcher *Dispatcher, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		dispatcher: dispatcher,
		logger:     logger.With("module", "automation_interpreter"),
	}
}

// Execute runs actions in order. A move_to_phase stops the list and is
// reported through the Outcome rather than applied here, so the controller
// owns the lock lifecycle and the chain bound. A webhook failure under
// on_error=stop aborts the list with a WebhookError.
func (i *Interpreter) Execute(ctx context.Context, actions []models.Action, ectx *Context) (Outcome, error) {
	for _, action := range actions {
		i.logger.DebugContext(ctx, "Executing action",
			"action", action.DisplayName(), "type", action.Type,
			"case_id", ectx.Case.ID, "trigger", ectx.Trigger)

		switch action.Type {
		case models.ActionWebhook:
			response, err := i.dispatcher.Dispatch(ctx, action, ectx)
			if err != nil {
				if action.OnError == models.OnErrorContinue {
					i.logger.WarnContext(ctx, "Webhook failed but continuing",
						"action", action.DisplayName(), "error", err)

					continue
				}

				return Outcome{}, &WebhookError{
					ActionName: action.DisplayName(),
					ActionID:   action.ID,
					Err:        err,
				}
			}

			if action.ID != "" {
				ectx.Responses[action.ID] = response
			}

		case models.ActionDelay:
			select {
			case <-ctx.Done():
				return Outcome{}, ctx.Err()
			case <-time.After(time.Duration(action.DurationMS) * time.Millisecond):
			}

		case models.ActionConditional:
			branch := action.Else
			if EvaluateCondition(action.Cond(), ectx.Document) {
				branch = action.Then
			}

			outcome, err := i.Execute(ctx, branch, ectx)
			if err != nil {
				return Outcome{}, err
			}

			if outcome.Deferred {
				return outcome, nil
			}

		case models.ActionSetField:
			if err := ectx.Document.Set(action.Field, action.Value); err != nil {
				i.logger.WarnContext(ctx, "set_field skipped",
					"action", action.DisplayName(), "field", action.Field, "error", err)
			}

		case models.ActionMoveToPhase:
			return Outcome{Deferred: true, Phase: action.Phase}, nil
		}
	}

	return Outcome{}, nil
}
