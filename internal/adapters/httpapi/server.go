// Package httpapi exposes the compliance engine over HTTP with fiber.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/compliance/internal/ports/primary"
)

// Config holds HTTP server settings.
type Config struct {
	JWTSecret string
	// RateLimit is the number of requests per client IP per minute. Zero disables limiting.
	RateLimit int
	// AccessLog receives one line per request. Nil disables the access log.
	AccessLog io.Writer
}

// Services are the primary ports the API drives.
type Services struct {
	Runner    primary.ComplianceRunner
	Resolver  primary.ResolutionService
	Dashboard primary.DashboardService
	// Ping checks the database for /health.
	Ping func(ctx context.Context) error
}

// Server is the HTTP front of the engine.
type Server struct {
	app      *fiber.App
	services Services
	validate *validator.Validate
	logger   *slog.Logger
	clock    func() time.Time

	// Background runs started by check-all share baseCtx so Shutdown can
	// stop their dispatch and wait for them.
	baseCtx context.Context
	cancel  context.CancelFunc
	runs    sync.WaitGroup
}

// New builds the fiber app with middleware and routes.
func New(services Services, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		services: services,
		validate: newValidator(),
		logger:   logger,
		clock:    time.Now,
		baseCtx:  baseCtx,
		cancel:   cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "compliance",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          5 * time.Minute,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	if cfg.AccessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${status} ${latency} ${method} ${path}\n",
			Output: cfg.AccessLog,
		}))
	}
	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
			},
		}))
	}

	app.Get("/health", s.health)

	api := app.Group("/compliance", authMiddleware([]byte(cfg.JWTSecret)))
	api.Get("/dashboard", s.dashboard)
	api.Get("/enrollments/:enrollment_id", s.status)
	api.Get("/enrollments/:enrollment_id/history", s.history)
	api.Get("/runs/latest", s.latestRun)

	adminOnly := requireRole(RoleAdmin)
	api.Post("/check-all", adminOnly, s.checkAll)
	api.Post("/check/:enrollment_id", adminOnly, s.checkOne)
	api.Post("/resolve", adminOnly, s.resolve)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests, cancels dispatch of background runs
// and waits for them to write their reports.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Wait blocks until every background run has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
