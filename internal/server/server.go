// Package server exposes the dashboard JSON API.
package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/tsops/pulseboard/internal/dashboard"
	"github.com/tsops/pulseboard/internal/requestid"
)

// Refresher is the dashboard lifecycle the API drives.
type Refresher interface {
	State() dashboard.State
	SetScope(scope dashboard.Scope, spaceID string)
	Refresh(ctx context.Context, manual bool)
}

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	CORSOrigins string
	Auth        AuthConfig
	RateLimit   RateLimitConfig
}

// Server is the dashboard API Fiber application.
type Server struct {
	app       *fiber.App
	refresher Refresher
	logger    zerolog.Logger
	config    Config
}

// New creates and configures the dashboard API server.
func New(cfg Config, refresher Refresher, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:       app,
		refresher: refresher,
		logger:    logger.With().Str("component", "server").Logger(),
		config:    cfg,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware(cfg Config) {
	s.app.Use(recover.New())

	s.app.Use(func(c *fiber.Ctx) error {
		ctx, reqID := requestid.New(c.UserContext())
		c.SetUserContext(ctx)
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	if cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(cfg.RateLimit))
	}

	s.app.Use(NewAuthMiddleware(cfg.Auth, s.logger))
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api/v1")
	api.Post("/login", s.handleLogin)
	api.Get("/state", s.handleState)
	api.Get("/spaces", s.handleSpaces)
	api.Get("/projects", s.handleProjects)
	api.Get("/comments", s.handleComments)
	api.Get("/summary", s.handleSummary)
	api.Post("/refresh", s.handleRefresh)
}

// Start begins listening. Blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("dashboard API listening")
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func problemResponse(c *fiber.Ctx, status int, code, detail string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":   code,
		"detail": detail,
	})
}
