// Package cli provides CLI commands for the compliance engine.
package cli

import (
	gocontext "context"
	"os"
	"os/user"

	"github.com/example/compliance/internal/ctxutil"
)

// globalActorID stores the operator identity for the current CLI invocation.
var globalActorID string

// DetectAndStoreActor records the OS user as the acting operator.
// Should be called once at CLI startup in PersistentPreRun.
func DetectAndStoreActor() {
	if u, err := user.Current(); err == nil && u.Username != "" {
		globalActorID = u.Username
		return
	}
	globalActorID = os.Getenv("USER")
}

// GetActorID returns the stored actor ID from CLI startup.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}
