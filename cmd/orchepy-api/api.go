// Package main provides the Orchepy API server implementation.
package main

import (
	"log/slog"
	"net"
	"strconv"

	"github.com/derivia/orchepy/pkg/automation"
	"github.com/derivia/orchepy/pkg/config"
	"github.com/derivia/orchepy/pkg/engine"
	"github.com/derivia/orchepy/pkg/eventbus"
	"github.com/derivia/orchepy/pkg/events"
	"github.com/derivia/orchepy/pkg/persistence"
	"github.com/derivia/orchepy/pkg/services"
	"github.com/derivia/orchepy/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	cfg         *config.Config
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	cfg *config.Config,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		cfg:         cfg,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	dispatcher := automation.NewDispatcher(a.cfg.WebhookTimeout, a.logger)
	interpreter := automation.NewInterpreter(dispatcher, a.logger)
	notifier := events.NewNotifier(a.cfg, a.eventBus, a.logger)
	controller := engine.NewController(a.persistence, interpreter, notifier, a.logger)

	workflowService := services.NewWorkflow(a.persistence)
	caseService := services.NewCase(a.persistence, controller)

	handlers := web.NewAPIHandlers(workflowService, caseService, a.validate)

	app := fiber.New()
	app.Use(web.NewWhitelistMiddleware(a.cfg, a.logger))
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/health", handlers.HealthCheck)

	app.Get("/", handlers.KanbanBoard)

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	cases := app.Group("/cases")
	cases.Post("/", handlers.CreateCase)
	cases.Get("/", handlers.GetCases)
	cases.Get("/:id", handlers.GetCase)
	cases.Put("/:id/move", handlers.MoveCase)
	cases.Patch("/:id/data", handlers.PatchCaseData)
	cases.Get("/:id/history", handlers.GetCaseHistory)

	return app
}

func (a *API) Start() error {
	app := a.App()

	return app.Listen(net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port)))
}
