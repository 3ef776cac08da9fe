package remote

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/compliance/internal/ports/secondary"
)

// WebhookNotifier implements secondary.Notifier by POSTing each transition
// to a messaging webhook. The event ID is sent as Idempotency-Key so the
// receiver can drop redeliveries.
type WebhookNotifier struct {
	url     string
	timeout time.Duration
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{url: url, timeout: timeout}
}

type transitionPayload struct {
	EventID      string    `json:"event_id"`
	EnrollmentID string    `json:"enrollment_id"`
	FromLevel    string    `json:"from_level"`
	ToLevel      string    `json:"to_level"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
	TriggeredBy  string    `json:"triggered_by"`
	ActorID      string    `json:"actor_id,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	NotifyRole   string    `json:"notify_role,omitempty"`
}

// Notify delivers one transition.
func (n *WebhookNotifier) Notify(ctx context.Context, event *secondary.EscalationEventRecord) error {
	timeout, err := requestTimeout(ctx, n.timeout)
	if err != nil {
		return err
	}

	code, body, errs := fiber.Post(n.url).
		Timeout(timeout).
		Set("Idempotency-Key", event.ID).
		JSON(transitionPayload{
			EventID:      event.ID,
			EnrollmentID: event.EnrollmentID,
			FromLevel:    event.FromLevel,
			ToLevel:      event.ToLevel,
			Reason:       event.Reason,
			OccurredAt:   event.OccurredAt.UTC(),
			TriggeredBy:  event.TriggeredBy,
			ActorID:      event.ActorID,
			RunID:        event.RunID,
			NotifyRole:   event.NotifyRole,
		}).
		Bytes()
	if len(errs) > 0 {
		return joinErrs(n.url, errs)
	}
	if code < 200 || code > 299 {
		return &StatusError{URL: n.url, Status: code, Body: truncate(body)}
	}
	return nil
}

// Ensure WebhookNotifier implements the interface
var _ secondary.Notifier = (*WebhookNotifier)(nil)
