package web

import (
	"strconv"
	"time"

	"github.com/derivia/orchepy/pkg/engine"
	"github.com/derivia/orchepy/pkg/models"
	"github.com/derivia/orchepy/pkg/persistence"
	"github.com/derivia/orchepy/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	caseService     *services.Case
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	caseService *services.Case,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		caseService:     caseService,
		validator:       validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := fiber.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = fiber.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	workflow := &models.Workflow{
		Name:         req.Name,
		Description:  req.Description,
		Phases:       req.Phases,
		InitialPhase: req.InitialPhase,
		WebhookURL:   req.WebhookURL,
		Automations:  req.Automations,
		SLAConfig:    req.SLAConfig,
		Active:       active,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Phases != nil {
		existing.Phases = req.Phases
	}

	if req.InitialPhase != nil {
		existing.InitialPhase = *req.InitialPhase
	}

	if req.WebhookURL != nil {
		existing.WebhookURL = *req.WebhookURL
	}

	if req.Automations != nil {
		existing.Automations = req.Automations
	}

	if req.SLAConfig != nil {
		existing.SLAConfig = req.SLAConfig
	}

	if req.Active != nil {
		existing.Active = *req.Active
	}

	updated, err := h.workflowService.Update(c.Context(), existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateCase(c fiber.Ctx) error {
	var req CreateCaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	kase, err := h.caseService.Create(c.Context(), services.CreateCaseRequest{
		WorkflowID:   req.WorkflowID,
		Data:         req.Data,
		Metadata:     req.Metadata,
		InitialPhase: req.InitialPhase,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(kase)
}

func (h *APIHandlers) GetCases(c fiber.Ctx) error {
	opts, err := h.parseListCasesOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	cases, err := h.caseService.List(c.Context(), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cases)
}

// parseListCasesOptions parses and validates query parameters for listing cases.
func (h *APIHandlers) parseListCasesOptions(c fiber.Ctx) (*persistence.ListCasesOptions, error) {
	opts := &persistence.ListCasesOptions{
		WorkflowID:   c.Query("workflow_id"),
		CurrentPhase: c.Query("current_phase"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.CaseStatus(statusStr)
		opts.Status = &status
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	return opts, nil
}

func (h *APIHandlers) GetCase(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Case ID is required")
	}

	kase, err := h.caseService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(kase)
}

func (h *APIHandlers) MoveCase(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Case ID is required")
	}

	var req MoveCaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	kase, err := h.caseService.Move(c.Context(), id, engine.MoveRequest{
		ToPhase:     req.ToPhase,
		Reason:      req.Reason,
		TriggeredBy: req.TriggeredBy,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(kase)
}

func (h *APIHandlers) PatchCaseData(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Case ID is required")
	}

	var req PatchCaseDataRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	kase, err := h.caseService.PatchData(c.Context(), id, req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(kase)
}

func (h *APIHandlers) GetCaseHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Case ID is required")
	}

	history, err := h.caseService.History(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(history)
}

// KanbanBoard serves the static board page.
func (h *APIHandlers) KanbanBoard(c fiber.Ctx) error {
	return c.Type("html", "utf-8").SendString(kanbanPage)
}
