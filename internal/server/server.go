// Package server exposes the converter over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/blob"
	"github.com/AnyUserName/pixconv/internal/codec"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
)

// Options wires the server's collaborators.
type Options struct {
	Converter *pipeline.Converter
	// Store receives results of /api/convert/url.
	Store blob.Store
	// Blobs, when set, is served under /blob/:id.
	Blobs *blob.MemoryStore
	// Fetcher backs the /api/image proxy. Nil disables it.
	Fetcher acquire.Fetcher

	BodyLimit     int // bytes
	DefaultFactor float64
	Quality       int
}

// Server is a configured fiber app.
type Server struct {
	app     *fiber.App
	opts    Options
	metrics *metrics

	mu            sync.RWMutex
	defaultFactor float64
	quality       int
}

// New builds the app and registers all routes.
func New(opts Options) *Server {
	s := &Server{
		opts:          opts,
		metrics:       newMetrics(),
		defaultFactor: opts.DefaultFactor,
		quality:       opts.Quality,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "pixconv",
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(requestLogger)

	s.app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	s.app.Get("/metrics", s.metrics.handler())

	api := s.app.Group("/api")
	api.Post("/convert", s.handleConvert)
	api.Post("/convert/url", s.handleConvertURL)
	api.Get("/image", s.handleImageProxy)
	api.Get("/formats", s.handleFormats)

	s.app.Get("/blob/:id", s.handleBlobGet)
	s.app.Delete("/blob/:id", s.handleBlobDelete)
	s.app.Get("/ws/convert", s.handleWebSocketUpgrade)

	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	log.Info().Str("addr", addr).Msg("listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// SetDefaults replaces the factor and quality used when a request does
// not specify them. Safe to call while serving.
func (s *Server) SetDefaults(factor float64, quality int) {
	s.mu.Lock()
	s.defaultFactor, s.quality = factor, quality
	s.mu.Unlock()
}

func (s *Server) defaults() (float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultFactor, s.quality
}

// statusFor maps conversion errors to HTTP status codes.
func statusFor(err error) int {
	var (
		invalid *acquire.InvalidInputError
		acq     *acquire.Error
		unknown *codec.UnknownFormatError
		enc     *codec.EncodingError
		fe      *fiber.Error
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &invalid):
		return fiber.StatusBadRequest
	case errors.As(err, &acq):
		return fiber.StatusBadGateway
	case errors.As(err, &unknown):
		return fiber.StatusUnsupportedMediaType
	case errors.As(err, &enc):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(errorBody{Error: err.Error()})
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("took", time.Since(start)).
		Msg("request")
	return err
}
