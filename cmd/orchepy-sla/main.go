// Package main provides the Orchepy SLA reporter: a scheduled scan for cases
// exceeding their phase SLA targets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/derivia/orchepy/pkg/cmd"
	"github.com/derivia/orchepy/pkg/config"
	"github.com/derivia/orchepy/pkg/events"
	"github.com/derivia/orchepy/pkg/log"
	"github.com/derivia/orchepy/pkg/sla"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("sla")

	command := &cli.Command{
		Name:  "orchepy-sla",
		Usage: "Report cases exceeding their phase SLA",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for SLA scans",
				Value:   "*/15 * * * *",
				Sources: cli.EnvVars("SLA_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider for case.sla_breached events (kafka, gochannel); empty disables",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Orchepy SLA reporter")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			var notifier *events.Notifier
			if eventBus != nil {
				notifier = events.NewNotifier(config.New(), eventBus, logger)

				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			reporter := sla.NewReporter(persistence, notifier, logger, command.String("schedule"))

			return reporter.Run(runCtx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("orchepy-sla failed", "error", err)
		os.Exit(1)
	}
}
