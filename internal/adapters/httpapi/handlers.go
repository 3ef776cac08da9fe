package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/compliance/internal/ports/primary"
)

// asOf reads the optional as_of query parameter (RFC 3339), defaulting to now.
func (s *Server) asOf(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return s.clock().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of must be RFC 3339: %q", primary.ErrInvalidRequest, raw)
	}
	return t.UTC(), nil
}

func (s *Server) health(c *fiber.Ctx) error {
	if s.services.Ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := s.services.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) dashboard(c *fiber.Ctx) error {
	summary, err := s.services.Dashboard.Summarize(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (s *Server) status(c *fiber.Ctx) error {
	status, err := s.services.Dashboard.Status(c.UserContext(), c.Params("enrollment_id"))
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (s *Server) history(c *fiber.Ctx) error {
	events, err := s.services.Dashboard.History(c.UserContext(), c.Params("enrollment_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"enrollment_id": c.Params("enrollment_id"), "events": events})
}

func (s *Server) latestRun(c *fiber.Ctx) error {
	report, err := s.services.Dashboard.LatestRun(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// checkAll starts a batch run. By default the run executes in the background
// and the response only carries its ID; ?wait=true returns the full report.
func (s *Server) checkAll(c *fiber.Ctx) error {
	asOf, err := s.asOf(c)
	if err != nil {
		return err
	}

	if c.QueryBool("wait") {
		report, err := s.services.Runner.RunAll(c.UserContext(), asOf)
		if err != nil {
			return err
		}
		return c.JSON(report)
	}

	run, err := s.services.Runner.BeginRun(c.UserContext(), asOf)
	if err != nil {
		return err
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		report := run.Execute(s.baseCtx)
		s.logger.Info("background run finished",
			"run_id", report.RunID,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}()

	return c.JSON(fiber.Map{"started": true, "run_id": run.ID()})
}

func (s *Server) checkOne(c *fiber.Ctx) error {
	asOf, err := s.asOf(c)
	if err != nil {
		return err
	}
	result, err := s.services.Runner.RunOne(c.UserContext(), c.Params("enrollment_id"), asOf)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) resolve(c *fiber.Ctx) error {
	var req primary.ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed body: %v", primary.ErrInvalidRequest, err)
	}
	if err := s.validate.Struct(&req); err != nil {
		return err
	}
	req.ResolvedBy = actorID(c)

	status, err := s.services.Resolver.Resolve(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(status)
}
