package ctxutil

import (
	"context"
	"testing"
)

func TestActorFromContext(t *testing.T) {
	outer := WithActorID(context.Background(), "admin-1")

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"unset", context.Background(), ""},
		{"set", outer, "admin-1"},
		{"trimmed", WithActorID(context.Background(), "  hr-7 \n"), "hr-7"},
		{"blank keeps outer actor", WithActorID(outer, "   "), "admin-1"},
		{"inner wins", WithActorID(outer, "admin-2"), "admin-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActorFromContext(tt.ctx); got != tt.want {
				t.Errorf("ActorFromContext = %q, want %q", got, tt.want)
			}
		})
	}
}
