// Package http provides the servedeck HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/notify"
	"github.com/fyrsmithlabs/servedeck/internal/project"
)

// Backend is what the API reads from and acts on.
type Backend interface {
	Projects() *project.Registry
	Notifications() *notify.Log
	AddProject(ctx context.Context, name, path string) (*project.Project, error)
	RemoveProject(ctx context.Context, id string) error
	Focus(ctx context.Context) int
}

// Server provides HTTP endpoints for servedeck.
type Server struct {
	echo    *echo.Echo
	backend Backend
	logger  *logging.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// Gatherer serves /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	// Registerer receives the HTTP metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// NewServer creates a new HTTP server.
func NewServer(backend Backend, logger *logging.Logger, cfg *Config) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 7420,
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		backend: backend,
		logger:  logger.Named("http"),
		config:  cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	e.Use(NewHTTPMetrics(cfg.Registerer).MetricsMiddleware())

	s.registerRoutes()
	return s, nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start)

		ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		s.logger.Info(ctx, "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", duration),
		)
		return err
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/projects", s.handleListProjects)
	v1.POST("/projects", s.handleCreateProject)
	v1.GET("/projects/:id", s.handleGetProject)
	v1.DELETE("/projects/:id", s.handleDeleteProject)
	v1.GET("/messages", s.handleMessages)
	v1.POST("/focus", s.handleFocus)
}

// handleHealth reports liveness with a summary of the registry.
func (s *Server) handleHealth(c echo.Context) error {
	projects := s.backend.Projects().List()
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Counts: StatusCounts{
			Projects:      len(projects),
			ByStatus:      countByStatus(projects),
			Notifications: s.backend.Notifications().Len(),
		},
	})
}

func (s *Server) handleListProjects(c echo.Context) error {
	return c.JSON(http.StatusOK, ProjectsResponse{Projects: s.backend.Projects().List()})
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.backend.Projects().Get(c.Param("id"))
	if err != nil {
		return projectError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid project request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Path = strings.TrimSpace(req.Path)

	p, err := s.backend.AddProject(c.Request().Context(), req.Name, req.Path)
	if err != nil {
		return projectError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	if err := s.backend.RemoveProject(c.Request().Context(), c.Param("id")); err != nil {
		return projectError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMessages(c echo.Context) error {
	return c.JSON(http.StatusOK, MessagesResponse{Messages: s.backend.Notifications().List()})
}

func (s *Server) handleFocus(c echo.Context) error {
	n := s.backend.Focus(c.Request().Context())
	return c.JSON(http.StatusAccepted, FocusResponse{Requests: n})
}

// projectError maps registry errors onto HTTP errors.
func projectError(err error) error {
	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	case errors.Is(err, project.ErrProjectExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, project.ErrEmptyProjectID),
		errors.Is(err, project.ErrEmptyProjectName),
		errors.Is(err, project.ErrEmptyProjectPath):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be used directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
