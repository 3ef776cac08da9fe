// Package remote talks to the training system over HTTP: it fetches
// enrollment facts and delivers escalation transitions to a webhook.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// requestTimeout bounds an agent call by the earlier of ctx's deadline and fallback.
// fiber agents do not take a context, so the deadline is carried as a timeout.
func requestTimeout(ctx context.Context, fallback time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := fallback
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout, nil
}

// StatusError reports a non-success HTTP status from the remote system.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.URL, e.Status, e.Body)
}

func joinErrs(url string, errs []error) error {
	return fmt.Errorf("request to %s failed: %w", url, errors.Join(errs...))
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
