// Package server exposes the matching pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/ai"
	"github.com/rankworks/cv-ranker/internal/candidate"
)

const (
	defaultAddress = ":5135"

	defaultExtractTimeout = 30 * time.Second
)

// Ranker runs the matching pipeline for one request.
type Ranker interface {
	Rank(ctx context.Context, jobText string, profiles []candidate.Profile) ([]candidate.MatchResult, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Address string
	// ExtractTimeout bounds a single CV analysis provider call.
	ExtractTimeout time.Duration
}

// Server provides the HTTP endpoints of cv-ranker.
type Server struct {
	echo           *echo.Echo
	ranker         Ranker
	extractor      ai.Extractor
	validate       *validator.Validate
	logger         *zap.Logger
	address        string
	extractTimeout time.Duration
}

// New creates a new HTTP server. The extractor may be nil, in which case the
// analyze endpoint reports the feature as unavailable.
func New(ranker Ranker, extractor ai.Extractor, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ranker == nil {
		return nil, errors.New("ranker is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	address := defaultAddress
	if cfg != nil && cfg.Address != "" {
		address = cfg.Address
	}

	extractTimeout := defaultExtractTimeout
	if cfg != nil && cfg.ExtractTimeout > 0 {
		extractTimeout = cfg.ExtractTimeout
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:           e,
		ranker:         ranker,
		extractor:      extractor,
		validate:       validator.New(),
		logger:         logger,
		address:        address,
		extractTimeout: extractTimeout,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.POST("/compare", s.handleCompare)
	api.POST("/analyze-cv", s.handleAnalyzeCV)
}

// Start runs the server until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("address", s.address))

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
