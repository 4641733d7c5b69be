package web

import (
	"context"

	"github.com/dukex/taskflow/pkg/identity"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetUsers(c fiber.Ctx) error {
	var query identity.UserQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	users := h.engine.Identity().Users(query)

	response := make([]UserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, TransformUserResponse(user))
	}

	return c.JSON(response)
}

func (h *APIHandlers) CreateUser(c fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := h.engine.Identity().SaveUser(c.Context(), models.User{
		ID:        req.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}, req.Password)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformUserResponse(user))
}

func (h *APIHandlers) GetUser(c fiber.Ctx) error {
	user, err := h.engine.Identity().User(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(TransformUserResponse(user))
}

func (h *APIHandlers) DeleteUser(c fiber.Ctx) error {
	return h.noContent(c, h.engine.Identity().DeleteUser(c.Context(), c.Params("id")))
}

func (h *APIHandlers) GetGroups(c fiber.Ctx) error {
	var query identity.GroupQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	return c.JSON(h.engine.Identity().Groups(query))
}

func (h *APIHandlers) CreateGroup(c fiber.Ctx) error {
	var req CreateGroupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	group, err := h.engine.Identity().SaveGroup(c.Context(), models.Group{ID: req.ID, Name: req.Name, Type: req.Type})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *APIHandlers) GetGroup(c fiber.Ctx) error {
	group, err := h.engine.Identity().Group(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(group)
}

func (h *APIHandlers) DeleteGroup(c fiber.Ctx) error {
	return h.noContent(c, h.engine.Identity().DeleteGroup(c.Context(), c.Params("id")))
}

func (h *APIHandlers) GetTenants(c fiber.Ctx) error {
	var query identity.TenantQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	return c.JSON(h.engine.Identity().Tenants(query))
}

func (h *APIHandlers) CreateTenant(c fiber.Ctx) error {
	var req CreateTenantRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	tenant, err := h.engine.Identity().SaveTenant(c.Context(), models.Tenant{ID: req.ID, Name: req.Name})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(tenant)
}

func (h *APIHandlers) GetTenant(c fiber.Ctx) error {
	tenant, err := h.engine.Identity().Tenant(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(tenant)
}

func (h *APIHandlers) DeleteTenant(c fiber.Ctx) error {
	return h.noContent(c, h.engine.Identity().DeleteTenant(c.Context(), c.Params("id")))
}

type membershipChange func(ctx context.Context, memberID, containerID string) error

// membership handles routes of the form /<container>/:id/<members>/:memberId.
func (h *APIHandlers) membership(change func(*identity.Directory) membershipChange) fiber.Handler {
	return func(c fiber.Ctx) error {
		fn := change(h.engine.Identity())

		return h.noContent(c, fn(c.Context(), c.Params("memberId"), c.Params("id")))
	}
}

func (h *APIHandlers) noContent(c fiber.Ctx, err error) error {
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
