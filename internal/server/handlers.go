package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/systmms/rotord/internal/rotation"
)

// queueStatus mirrors the Service Bus queue portion of the health payload.
type queueStatus struct {
	Status     string `json:"status"`
	QueueName  string `json:"queue_name,omitempty"`
	Connection string `json:"connection,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) probeQueue(r *http.Request) queueStatus {
	if s.publisher == nil {
		return queueStatus{Status: "not_configured"}
	}

	status := queueStatus{QueueName: s.publisher.QueueName()}
	if err := s.publisher.Probe(r.Context()); err != nil {
		status.Status = "unhealthy"
		status.Connection = "failed"
		status.Error = err.Error()
		s.metrics.RecordHealthCheck("queue", false)
		return status
	}

	status.Status = "healthy"
	status.Connection = "successful"
	s.metrics.RecordHealthCheck("queue", true)
	return status
}

// handleHealth reports overall daemon health: the management-plane
// connections and, when configured, the notification queue. Any unhealthy
// component turns the aggregate unhealthy and the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint accessed")

	connections := s.orch.TestConnections(r.Context())
	queue := s.probeQueue(r)

	healthy := connections.ServiceBus.Healthy() && connections.KeyVault.Healthy()
	if s.publisher != nil {
		healthy = healthy && queue.Status == "healthy"
	}

	overall := "healthy"
	status := http.StatusOK
	if !healthy {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]any{
		"status":    overall,
		"timestamp": s.timestamp(),
		"service":   "rotord",
		"version":   Version,
		"components": map[string]any{
			"rotation": map[string]any{
				"status":  "healthy",
				"enabled": s.orch.Enabled(),
				"rules":   len(s.orch.Rules()),
			},
			"service_bus": connections.ServiceBus,
			"key_vault":   connections.KeyVault,
			"queue":       queue,
		},
	})
}

// handleServiceBusHealth is the dedicated Service Bus probe: namespace
// status from the management plane plus the notification queue when
// configured.
func (s *Server) handleServiceBusHealth(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Service Bus health check endpoint accessed")

	connections := s.orch.TestConnections(r.Context())
	queue := s.probeQueue(r)

	status := http.StatusOK
	if !connections.ServiceBus.Healthy() {
		status = http.StatusServiceUnavailable
	}

	queueName := ""
	if s.publisher != nil {
		queueName = s.publisher.QueueName()
	}

	s.writeJSON(w, status, map[string]any{
		"timestamp":   s.timestamp(),
		"service_bus": connections.ServiceBus,
		"queue":       queue,
		"configuration": map[string]any{
			"namespace":                    s.orch.Namespace(),
			"queue_name":                   queueName,
			"connection_string_configured": s.publisher != nil,
		},
	})
}

// handleRotate triggers a full rotation run. Only one run may be in flight
// at a time; concurrent requests get a 409.
func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	if !s.rotating.CompareAndSwap(false, true) {
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"status":    "error",
			"message":   "A rotation run is already in progress",
			"timestamp": s.timestamp(),
		})
		return
	}
	defer s.rotating.Store(false)

	s.logger.Info("Manual rotation triggered via API")

	// A full run blocks through the propagation and grace windows, far
	// longer than most clients wait. Detach from the request context so a
	// disconnect cannot cancel management calls mid-sequence and leave a
	// rule with a regenerated primary but a stale secondary.
	report := s.orch.Run(context.WithoutCancel(r.Context()))

	status := http.StatusOK
	if !report.Success {
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, report)
}

// handleTestSend publishes a one-off test message, embedding any JSON body
// the caller provides. A malformed body falls back to the default message.
func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Test message endpoint accessed")

	if s.publisher == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"message":   "Notifications are not configured",
			"timestamp": s.timestamp(),
		})
		return
	}

	var custom json.RawMessage
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		if json.Valid(body) {
			custom = body
		} else {
			s.logger.Warn("Invalid JSON in request body, using default message")
		}
	}

	msg, err := s.publisher.PublishTest(r.Context(), custom)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "error",
			"message":   "Failed to send test message",
			"queue":     s.publisher.QueueName(),
			"timestamp": s.timestamp(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message":    "Test message sent successfully",
		"message_id": msg.ID,
		"queue":      s.publisher.QueueName(),
		"timestamp":  msg.Timestamp,
	})
}

// handleInfo describes the daemon: schedules, endpoints, and the active
// configuration.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Info endpoint accessed")

	schedules := map[string]any{
		"rotation": map[string]any{
			"interval": s.rotationInterval.String(),
			"enabled":  s.orch.Enabled(),
			"rules":    ruleNames(s.orch.Rules()),
		},
	}
	if s.publisher != nil {
		schedules["notifications"] = map[string]any{
			"interval":  s.publisher.Interval().String(),
			"queue":     s.publisher.QueueName(),
			"iteration": s.publisher.Iteration(),
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":        "rotord",
		"description": "Service Bus key rotation daemon with policy notification publishing",
		"version":     Version,
		"started_at":  s.startTime.UTC().Format(time.RFC3339),
		"schedules":   schedules,
		"endpoints": map[string]any{
			"health":            "/api/health",
			"servicebus_health": "/api/health/servicebus",
			"rotate":            "/api/rotate",
			"test_send":         "/api/test/send-message",
			"info":              "/api/info",
			"metrics":           "/metrics",
		},
		"configuration": map[string]any{
			"namespace":      s.orch.Namespace(),
			"resource_group": s.orch.ResourceGroup(),
			"environment":    s.env,
		},
		"timestamp": s.timestamp(),
	})
}

func ruleNames(rules []rotation.RuleConfig) []string {
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		names = append(names, rule.RuleName)
	}
	return names
}
