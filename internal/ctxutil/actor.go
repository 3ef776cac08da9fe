// Package ctxutil carries the acting user through request contexts.
// It has no internal dependencies so any layer can import it.
package ctxutil

import (
	"context"
	"strings"
)

type actorKey struct{}

// WithActorID returns a context carrying actorID. A blank actorID leaves ctx
// unchanged so an anonymous caller never shadows an outer actor.
func WithActorID(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor ID from ctx, or "" if none was set.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
