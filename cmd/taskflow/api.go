package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	engine   *engine.Engine
	validate *validator.Validate
	app      *fiber.App
}

func NewAPI(logger *slog.Logger, engine *engine.Engine) *API {
	return &API{
		logger:   logger,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	if a.app != nil {
		return a.app
	}

	handlers := web.NewAPIHandlers(a.logger.With("component", "web"), a.engine, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("taskflow API")
	})

	handlers.Register(app)

	a.app = app

	return app
}

// Start serves the API until the app is shut down.
func (a *API) Start(port int) error {
	return a.App().Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
