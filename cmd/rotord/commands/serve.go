package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/metrics"
	"github.com/systmms/rotord/internal/server"
)

func NewServeCommand(cfg *config.Config) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rotation daemon",
		Long: `Run the HTTP server with both background schedules: the rotation
timer rotates all configured authorization rules once per interval, and the
notification timer publishes a policy notification message to the Service
Bus queue.

Endpoints:
  GET  /api/health             Aggregate health check
  GET  /api/health/servicebus  Service Bus health check
  POST /api/rotate             Trigger a rotation run
  POST /api/test/send-message  Send a test queue message
  GET  /api/info               Daemon information
  GET  /metrics                Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			metrics.Init()
			rec := metrics.NewRecorder()

			orch, err := buildOrchestrator(cfg, rec)
			if err != nil {
				return err
			}
			publisher, err := buildPublisher(cfg, rec)
			if err != nil {
				return err
			}

			addr := listenAddr
			if addr == "" {
				addr = cfg.Settings.ListenAddr
			}

			srv := server.New(server.Options{
				Orchestrator:     orch,
				Publisher:        publisher,
				Environment:      cfg.Settings.Environment,
				RotationInterval: cfg.Settings.RotationInterval,
				Logger:           cfg.Logger,
				Metrics:          rec,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go srv.RunRotationLoop(ctx)
			go srv.RunNotifyLoop(ctx)

			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from ROTORD_LISTEN_ADDR or :8080)")

	return cmd
}
