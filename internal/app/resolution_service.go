package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/compliance/internal/core/escalation"
	"github.com/example/compliance/internal/ctxutil"
	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/ports/secondary"
)

// ResolutionServiceImpl implements the ResolutionService interface.
type ResolutionServiceImpl struct {
	enrollments secondary.EnrollmentRepository
	notifier    secondary.Notifier
	writer      *stateWriter
	logger      *slog.Logger
	clock       func() time.Time
}

// NewResolutionService creates a new ResolutionService with injected dependencies.
func NewResolutionService(
	enrollments secondary.EnrollmentRepository,
	escalations secondary.EscalationRepository,
	notifier secondary.Notifier,
	maxWriteAttempts int,
	logger *slog.Logger,
) *ResolutionServiceImpl {
	logger = loggerOrDefault(logger)
	return &ResolutionServiceImpl{
		enrollments: enrollments,
		notifier:    notifier,
		writer:      &stateWriter{repo: escalations, maxAttempts: maxWriteAttempts, logger: logger},
		logger:      logger,
		clock:       time.Now,
	}
}

// Resolve closes the current escalation episode of an enrollment.
func (s *ResolutionServiceImpl) Resolve(ctx context.Context, req primary.ResolveRequest) (*primary.EscalationStatus, error) {
	note := strings.TrimSpace(req.Note)
	if req.ResolvedBy == "" {
		req.ResolvedBy = ctxutil.ActorFromContext(ctx)
	}
	if req.EnrollmentID == "" {
		return nil, fmt.Errorf("%w: enrollment_id is required", primary.ErrInvalidRequest)
	}
	if note == "" {
		return nil, fmt.Errorf("%w: resolution note is required", primary.ErrInvalidRequest)
	}
	if req.ResolvedBy == "" {
		return nil, fmt.Errorf("%w: resolver is required", primary.ErrInvalidRequest)
	}

	if _, err := s.enrollments.Get(ctx, req.EnrollmentID); err != nil {
		if errors.Is(err, secondary.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", primary.ErrEnrollmentNotFound, req.EnrollmentID)
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	now := s.clock()
	next, events, err := s.writer.apply(ctx, req.EnrollmentID, now, "", func(current escalation.Record) (escalation.Record, []escalation.Event, error) {
		check := escalation.CanResolve(escalation.ResolveContext{
			EnrollmentID: current.EnrollmentID,
			RecordExists: !current.IsNew(),
			Level:        current.Level,
			Note:         note,
			ResolvedBy:   req.ResolvedBy,
		})
		if !check.Allowed {
			return current, nil, &primary.InvalidStateError{
				EnrollmentID: current.EnrollmentID,
				Level:        current.Level.String(),
				Op:           "resolve",
				Reason:       check.Reason,
			}
		}

		rec, ev, err := escalation.Resolve(current, note, req.ResolvedBy, now)
		if err != nil {
			return current, nil, err
		}
		return rec, []escalation.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("escalation resolved manually",
		"enrollment_id", req.EnrollmentID, "resolved_by", req.ResolvedBy)
	notifyAll(ctx, s.notifier, s.logger, events)

	return recordToStatus(next), nil
}

// Ensure ResolutionServiceImpl implements the interface
var _ primary.ResolutionService = (*ResolutionServiceImpl)(nil)
