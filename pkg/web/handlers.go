// Package web provides HTTP handlers and REST API endpoints for the process engine.
package web

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/catalog"
	"github.com/dukex/taskflow/pkg/definition"
	"github.com/dukex/taskflow/pkg/engine"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Multipart form fields of a deployment upload; every file part is a resource.
const (
	FormDeploymentName = "deployment-name"
	FormTenantID       = "tenant-id"
)

type APIHandlers struct {
	logger    *slog.Logger
	engine    *engine.Engine
	validator *validator.Validate
}

func NewAPIHandlers(logger *slog.Logger, engine *engine.Engine, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		logger:    logger,
		engine:    engine,
		validator: validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "taskflow is healthy"
	httpStatus := http.StatusOK
	persistenceCheck := "ok"

	if err := h.engine.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "taskflow is unhealthy"
		httpStatus = http.StatusServiceUnavailable
		persistenceCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence": persistenceCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateDeployment(c fiber.Ctx) error {
	var req CreateDeploymentRequest

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		parsed, err := parseDeploymentForm(c)
		if err != nil {
			return badRequest(c, err.Error())
		}

		req = *parsed
	} else if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resources := make([]definition.Resource, 0, len(req.Resources))
	for _, r := range req.Resources {
		resources = append(resources, definition.Resource{Name: r.Name, Content: []byte(r.Content)})
	}

	deployment, err := h.engine.Deploy(c.Context(), resources, req.Name, req.TenantID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(deployment)
}

func parseDeploymentForm(c fiber.Ctx) (*CreateDeploymentRequest, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	req := &CreateDeploymentRequest{}

	if values := form.Value[FormDeploymentName]; len(values) > 0 {
		req.Name = values[0]
	}

	if values := form.Value[FormTenantID]; len(values) > 0 {
		req.TenantID = values[0]
	}

	for _, files := range form.File {
		for _, header := range files {
			file, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
			}

			content, err := io.ReadAll(file)
			_ = file.Close()

			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
			}

			req.Resources = append(req.Resources, ResourceRequest{Name: header.Filename, Content: string(content)})
		}
	}

	return req, nil
}

func (h *APIHandlers) GetDeployments(c fiber.Ctx) error {
	return c.JSON(h.engine.Catalog().Deployments())
}

func (h *APIHandlers) GetDeployment(c fiber.Ctx) error {
	deployment, err := h.engine.Catalog().Deployment(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(deployment)
}

func (h *APIHandlers) GetProcessDefinitions(c fiber.Ctx) error {
	var query catalog.DefinitionQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	return c.JSON(h.engine.Catalog().Definitions(query))
}

func (h *APIHandlers) GetProcessDefinition(c fiber.Ctx) error {
	def, err := h.engine.Catalog().ResolveByID(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) bindStart(c fiber.Ctx) (*StartInstanceRequest, error) {
	var req StartInstanceRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return nil, fmt.Errorf("invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &req, nil
}

func (h *APIHandlers) StartProcessInstanceByID(c fiber.Ctx) error {
	req, err := h.bindStart(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.StartByID(c.Context(), c.Params("id"), req.Variables)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) StartProcessInstanceByKey(c fiber.Ctx) error {
	req, err := h.bindStart(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.StartByKey(c.Context(), c.Params("key"), req.Variables, req.TenantID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) SuspendProcessDefinition(c fiber.Ctx) error {
	def, err := h.engine.SuspendDefinition(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) ActivateProcessDefinition(c fiber.Ctx) error {
	def, err := h.engine.ActivateDefinition(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) GetProcessInstances(c fiber.Ctx) error {
	var query engine.InstanceQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	return c.JSON(h.engine.Instances(query))
}

func (h *APIHandlers) GetProcessInstance(c fiber.Ctx) error {
	instance, err := h.engine.Instance(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) TerminateProcessInstance(c fiber.Ctx) error {
	var req TerminateInstanceRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.Terminate(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetVariableHistory(c fiber.Ctx) error {
	history, err := h.engine.History(c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(history)
}
