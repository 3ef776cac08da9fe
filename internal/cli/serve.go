package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/compliance/internal/adapters/httpapi"
	"github.com/example/compliance/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compliance HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := wire.Config()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = cfg.HTTPAddr
			}
			rateLimit, _ := cmd.Flags().GetInt("rate-limit")

			server := httpapi.New(httpapi.Services{
				Runner:    wire.ComplianceRunner(),
				Resolver:  wire.ResolutionService(),
				Dashboard: wire.DashboardService(),
				Ping:      wire.Ping,
			}, httpapi.Config{
				JWTSecret: cfg.JWTSecret,
				RateLimit: rateLimit,
				AccessLog: os.Stdout,
			}, wire.Logger())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- server.Listen(addr) }()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server stopped: %w", err)
			case <-ctx.Done():
			}

			wire.Logger().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default $COMPLIANCE_HTTP_ADDR or :8080)")
	cmd.Flags().Int("rate-limit", 100, "Requests per client IP per minute (0 disables)")
	return cmd
}
