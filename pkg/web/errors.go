package web

import (
	"errors"

	"github.com/derivia/orchepy/pkg/automation"
	"github.com/derivia/orchepy/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps typed service and engine errors onto the HTTP
// status contract.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsNotFoundError(err):
		return notFound(c, err.Error())

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsAutomationLoop(err):
		problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
			WithInstance(c.Path()).
			WithType("automation_loop").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case services.IsWebhookFailed(err):
		problem := problems.NewStatusProblem(fiber.StatusBadGateway).
			WithInstance(c.Path()).
			WithType("webhook_failed").
			WithDetail(err.Error())

		var webhookErr *automation.WebhookError
		if errors.As(err, &webhookErr) {
			problem = problem.WithDetail(webhookErr.Error())
		}

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}
