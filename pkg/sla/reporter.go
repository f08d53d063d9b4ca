// Package sla implements the external SLA reporter: a scheduled scan flagging
// active cases that have sat in a phase longer than the workflow's target.
// Purely observational; it never mutates cases.
package sla

import (
	"context"
	"log/slog"
	"time"

	"github.com/derivia/orchepy/pkg/events"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// Breach describes one case exceeding its phase SLA.
type Breach struct {
	Case     *models.Case
	Workflow *models.Workflow
	SLA      models.PhaseSLA
	Overdue  time.Duration
}

// Reporter periodically scans all active cases against their workflows'
// sla_config.
type Reporter struct {
	persistence persistence.Persistence
	notifier    *events.Notifier
	logger      *slog.Logger
	schedule    string
}

// NewReporter creates a reporter firing on the given cron schedule. notifier
// may be nil; breaches are then only logged.
func NewReporter(persistence persistence.Persistence, notifier *events.Notifier, logger *slog.Logger, schedule string) *Reporter {
	return &Reporter{
		persistence: persistence,
		notifier:    notifier,
		logger:      logger.With("module", "sla_reporter"),
		schedule:    schedule,
	}
}

// Run blocks until the context is cancelled, scanning on the schedule.
func (r *Reporter) Run(ctx context.Context) error {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(r.schedule, func() {
		breaches, err := r.Scan(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "SLA scan failed", "error", err)

			return
		}

		r.report(ctx, breaches)
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	<-ctx.Done()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	return nil
}

// Scan returns every active case currently past its phase SLA.
func (r *Reporter) Scan(ctx context.Context) ([]Breach, error) {
	workflows, err := r.persistence.WorkflowRepository().List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	active := models.CaseStatusActive

	var breaches []Breach

	for _, workflow := range workflows {
		if len(workflow.SLAConfig) == 0 {
			continue
		}

		cases, err := r.persistence.CaseRepository().List(ctx, persistence.ListCasesOptions{
			WorkflowID: workflow.ID,
			Status:     &active,
		})
		if err != nil {
			return nil, err
		}

		for _, kase := range cases {
			sla, ok := workflow.SLAConfig[kase.CurrentPhase]
			if !ok || sla.Hours <= 0 {
				continue
			}

			deadline := kase.PhaseEnteredAt.Add(time.Duration(sla.Hours) * time.Hour)
			if now.After(deadline) {
				breaches = append(breaches, Breach{
					Case:     kase,
					Workflow: workflow,
					SLA:      sla,
					Overdue:  now.Sub(deadline),
				})
			}
		}
	}

	return breaches, nil
}

func (r *Reporter) report(ctx context.Context, breaches []Breach) {
	for _, breach := range breaches {
		r.logger.WarnContext(ctx, "Case exceeded phase SLA",
			"case_id", breach.Case.ID,
			"workflow_id", breach.Workflow.ID,
			"phase", breach.Case.CurrentPhase,
			"sla_hours", breach.SLA.Hours,
			"overdue", breach.Overdue.String(),
		)

		if r.notifier != nil {
			r.notifier.SLABreached(ctx, breach.Case)
		}
	}
}
