package server

import (
	"context"
	"time"
)

// RunRotationLoop runs scheduled rotations until the context is canceled.
// A tick that arrives while a run is still in flight is skipped; rotation
// runs block for the full propagation and grace windows, so overlapping a
// slow run with the next tick would double-rotate the same rules.
func (s *Server) RunRotationLoop(ctx context.Context) {
	ticker := time.NewTicker(s.rotationInterval)
	defer ticker.Stop()

	s.logger.Info("Rotation schedule started (every %s)", s.rotationInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Rotation schedule stopped")
			return
		case <-ticker.C:
			s.runScheduledRotation(ctx)
		}
	}
}

func (s *Server) runScheduledRotation(ctx context.Context) {
	if !s.rotating.CompareAndSwap(false, true) {
		s.logger.Warn("Skipping scheduled rotation: previous run still in progress")
		return
	}
	defer s.rotating.Store(false)

	s.logger.Info("Scheduled rotation starting")
	report := s.orch.Run(ctx)
	if report.Success {
		s.logger.Info("Scheduled rotation %s completed: %d rules rotated in %.1fs",
			report.RotationID, len(report.RulesRotated), report.DurationSeconds)
	} else {
		s.logger.Error("Scheduled rotation %s finished with %d errors",
			report.RotationID, len(report.Errors))
	}
}

// RunNotifyLoop publishes scheduled notifications until the context is
// canceled. No-op when no publisher is configured.
func (s *Server) RunNotifyLoop(ctx context.Context) {
	if s.publisher == nil {
		s.logger.Warn("Notification schedule disabled: SERVICE_BUS_CONNECTION_STRING not configured")
		return
	}

	ticker := time.NewTicker(s.publisher.Interval())
	defer ticker.Stop()

	s.logger.Info("Notification schedule started (every %s)", s.publisher.Interval())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Notification schedule stopped")
			return
		case <-ticker.C:
			// Send failures are logged and counted by the publisher;
			// the schedule keeps going.
			_, _ = s.publisher.PublishNotification(ctx)
		}
	}
}
