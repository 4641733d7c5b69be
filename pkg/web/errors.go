package web

import (
	"errors"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func problem(c fiber.Ctx, status int, problemType string, err error) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(err.Error())

	return c.Status(status).JSON(p)
}

// handleEngineError maps engine error kinds to problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return problem(c, fiber.StatusNotFound, "not_found", err)

	case errors.Is(err, models.ErrInvalidDefinition):
		return problem(c, fiber.StatusBadRequest, "invalid_definition", err)

	case errors.Is(err, models.ErrInvalidVariable), errors.Is(err, models.ErrInvalidIdentity):
		return problem(c, fiber.StatusBadRequest, "validation_error", err)

	case errors.Is(err, models.ErrNotCandidate):
		return problem(c, fiber.StatusForbidden, "not_candidate", err)

	case errors.Is(err, models.ErrAlreadyAssigned):
		return problem(c, fiber.StatusConflict, "already_assigned", err)

	case errors.Is(err, models.ErrAlreadyCompleted):
		return problem(c, fiber.StatusConflict, "already_completed", err)

	case errors.Is(err, models.ErrNoApplicablePath):
		return problem(c, fiber.StatusConflict, "no_applicable_path", err)

	case errors.Is(err, models.ErrDefinitionSuspended):
		return problem(c, fiber.StatusConflict, "definition_suspended", err)

	case errors.Is(err, models.ErrTimeout):
		return problem(c, fiber.StatusGatewayTimeout, "timeout", err)

	default:
		return internalError(c, err)
	}
}
