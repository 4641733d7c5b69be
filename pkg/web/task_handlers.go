package web

import (
	"context"

	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	var query engine.TaskQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	return c.JSON(h.engine.QueryTasks(c.Context(), query))
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.engine.Task(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) ClaimTask(c fiber.Ctx) error {
	var req ClaimTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	task, err := h.engine.Claim(c.Context(), c.Params("id"), &req.UserID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) UnclaimTask(c fiber.Ctx) error {
	task, err := h.engine.Claim(c.Context(), c.Params("id"), nil)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) SetTaskAssignee(c fiber.Ctx) error {
	var req SetAssigneeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	task, err := h.engine.SetAssignee(c.Context(), c.Params("id"), req.UserID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	instance, err := h.engine.Complete(c.Context(), c.Params("id"), req.Variables)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetIdentityLinks(c fiber.Ctx) error {
	links, err := h.engine.IdentityLinks(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(links)
}

func (h *APIHandlers) AddCandidate(c fiber.Ctx) error {
	var req CandidateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	return h.changeCandidate(c, req, h.engine.AddCandidateUser, h.engine.AddCandidateGroup)
}

func (h *APIHandlers) DeleteCandidate(c fiber.Ctx) error {
	var req CandidateRequest
	if err := c.Bind().Query(&req); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	return h.changeCandidate(c, req, h.engine.DeleteCandidateUser, h.engine.DeleteCandidateGroup)
}

type candidateChange func(ctx context.Context, taskID, id string) (*models.Task, error)

func (h *APIHandlers) changeCandidate(c fiber.Ctx, req CandidateRequest, forUser, forGroup candidateChange) error {
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	taskID := c.Params("id")

	var (
		task *models.Task
		err  error
	)

	if req.UserID != "" {
		if task, err = forUser(c.Context(), taskID, req.UserID); err != nil {
			return handleEngineError(c, err)
		}
	}

	if req.GroupID != "" {
		if task, err = forGroup(c.Context(), taskID, req.GroupID); err != nil {
			return handleEngineError(c, err)
		}
	}

	return c.JSON(task)
}

func (h *APIHandlers) GetVariables(c fiber.Ctx) error {
	var query VariablesQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	scopeID := c.Params("scopeId")

	var (
		vars map[string]any
		err  error
	)

	if query.Local {
		vars, err = h.engine.LocalVariables(scopeID)
	} else {
		vars, err = h.engine.Variables(scopeID)
	}

	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(VariablesResponse{ScopeID: scopeID, Variables: vars})
}

func (h *APIHandlers) SetVariables(c fiber.Ctx) error {
	var req SetVariablesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	scopeID := c.Params("scopeId")

	if err := h.engine.SetVariables(c.Context(), scopeID, req.Variables); err != nil {
		return handleEngineError(c, err)
	}

	vars, err := h.engine.Variables(scopeID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(VariablesResponse{ScopeID: scopeID, Variables: vars})
}
