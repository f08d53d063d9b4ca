package main

import (
	"context"
	"os"

	"github.com/derivia/orchepy/pkg/cmd"
	"github.com/derivia/orchepy/pkg/config"
	"github.com/derivia/orchepy/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 3296

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "orchepy-api",
		Usage:                 "Phase-based workflow orchestration API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Host to bind the API server on",
				Value:   "0.0.0.0",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider for case lifecycle events (kafka, gochannel); empty disables",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.BoolFlag{
				Name:    "webhook-on-case-create",
				Usage:   "Send the global case.created webhook",
				Value:   true,
				Sources: cli.EnvVars("WEBHOOK_ON_CASE_CREATE"),
			},
			&cli.BoolFlag{
				Name:    "webhook-on-case-move",
				Usage:   "Send the global case.moved webhook",
				Value:   true,
				Sources: cli.EnvVars("WEBHOOK_ON_CASE_MOVE"),
			},
			&cli.BoolFlag{
				Name:    "whitelist-enabled",
				Usage:   "Restrict API access to whitelisted IPs",
				Sources: cli.EnvVars("WHITELIST_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "whitelist-ips",
				Usage:   "Comma-separated list of allowed IPs",
				Sources: cli.EnvVars("WHITELIST_IPS"),
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

			logger.InfoContext(ctx, "Initializing Orchepy API")

			cfg := config.New()
			cfg.Host = command.String("host")
			cfg.Port = int(command.Int("port"))
			cfg.WebhookOnCaseCreate = command.Bool("webhook-on-case-create")
			cfg.WebhookOnCaseMove = command.Bool("webhook-on-case-move")
			cfg.WhitelistEnabled = command.Bool("whitelist-enabled")
			cfg.WhitelistIPs = config.ParseWhitelist(command.String("whitelist-ips"))

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

			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			api := NewAPI(logger, persistence, eventBus, cfg)

			return api.Start()
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("orchepy-api failed", "error", err)
		os.Exit(1)
	}
}
