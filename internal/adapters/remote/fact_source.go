package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/compliance/internal/ports/secondary"
)

// FactSource implements secondary.FactSource against the training system's
// HTTP API: GET {base}/enrollments/{id}/facts.
type FactSource struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewFactSource creates a fact source for baseURL. token, when set, is sent
// as a bearer credential.
func NewFactSource(baseURL, token string, timeout time.Duration) *FactSource {
	return &FactSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// Fetch returns the current facts for an enrollment.
func (s *FactSource) Fetch(ctx context.Context, enrollment *secondary.EnrollmentRecord) (*secondary.FactsRecord, error) {
	timeout, err := requestTimeout(ctx, s.timeout)
	if err != nil {
		return nil, err
	}

	target := fmt.Sprintf("%s/enrollments/%s/facts", s.baseURL, url.PathEscape(enrollment.ID))
	agent := fiber.Get(target).Timeout(timeout).Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if s.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+s.token)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, joinErrs(target, errs)
	}
	switch {
	case code == fiber.StatusNotFound:
		return nil, fmt.Errorf("no training facts for enrollment %s: %w", enrollment.ID, secondary.ErrNotFound)
	case code < 200 || code > 299:
		return nil, &StatusError{URL: target, Status: code, Body: truncate(body)}
	}

	facts, err := decodeFacts(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode facts for enrollment %s: %w", enrollment.ID, err)
	}
	return facts, nil
}

// ErrMalformedFacts is returned for a facts body that is not an object
// carrying every fact field.
var ErrMalformedFacts = errors.New("malformed facts payload")

// factsPayload distinguishes an absent field from its zero value.
type factsPayload struct {
	CompletedAllModules *bool    `json:"completed_all_modules"`
	PassedAllQuizzes    *bool    `json:"passed_all_quizzes"`
	OverallScore        *float64 `json:"overall_score"`
}

func decodeFacts(body []byte) (*secondary.FactsRecord, error) {
	var payload *factsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: null body", ErrMalformedFacts)
	}

	var missing []string
	if payload.CompletedAllModules == nil {
		missing = append(missing, "completed_all_modules")
	}
	if payload.PassedAllQuizzes == nil {
		missing = append(missing, "passed_all_quizzes")
	}
	if payload.OverallScore == nil {
		missing = append(missing, "overall_score")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedFacts, strings.Join(missing, ", "))
	}

	return &secondary.FactsRecord{
		CompletedAllModules: *payload.CompletedAllModules,
		PassedAllQuizzes:    *payload.PassedAllQuizzes,
		OverallScore:        *payload.OverallScore,
	}, nil
}

// Ensure FactSource implements the interface
var _ secondary.FactSource = (*FactSource)(nil)
