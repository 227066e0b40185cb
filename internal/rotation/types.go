// Package rotation implements staggered primary/secondary key rotation for
// Service Bus namespace authorization rules, persisting the fresh primary
// connection string into Key Vault after each successful rotation.
//
// Rotation is deliberately sequential: the propagation and grace delays
// between management calls pace the managed service's eventual-consistency
// window, and rotating two rules concurrently against one namespace is not
// covered by the service's documented guarantees.
package rotation

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus is the terminal status of a completed rule rotation.
type OutcomeStatus string

// StatusSuccess is the only outcome status: an Outcome is recorded
// only when the full rotate+store sequence for a rule completed.
const StatusSuccess OutcomeStatus = "success"

// KeyKind identifies which key of an authorization rule to regenerate.
type KeyKind string

const (
	KeyKindPrimary   KeyKind = "PrimaryKey"
	KeyKindSecondary KeyKind = "SecondaryKey"
)

// RuleConfig names an authorization rule and the Key Vault secret its
// primary connection string is written to. The rule list is fixed at
// orchestrator construction and immutable thereafter.
type RuleConfig struct {
	RuleName   string `json:"rule_name" yaml:"rule"`
	SecretName string `json:"secret_name" yaml:"secret"`
}

// AccessKeys holds the connection strings read back after regeneration.
type AccessKeys struct {
	PrimaryConnectionString   string
	SecondaryConnectionString string
}

// Outcome records one rule's successful rotation. Never mutated after
// creation; appended to the report as each rule completes.
type Outcome struct {
	RuleName   string        `json:"rule_name"`
	SecretName string        `json:"secret_name"`
	RotatedAt  time.Time     `json:"rotated_at"`
	Status     OutcomeStatus `json:"status"`
}

// Report aggregates the results of a single rotation run. The JSON field
// names are an operational contract consumed by dashboards and logs; do not
// rename them without a version bump.
type Report struct {
	RotationID      string    `json:"rotation_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	Namespace       string    `json:"namespace"`
	ResourceGroup   string    `json:"resource_group"`
	RulesRotated    []Outcome `json:"rules_rotated"`
	Errors          []string  `json:"errors"`
	Success         bool      `json:"success"`
}

func newReport(namespace, resourceGroup string, now time.Time) *Report {
	return &Report{
		RotationID:    uuid.NewString(),
		StartTime:     now,
		Namespace:     namespace,
		ResourceGroup: resourceGroup,
		RulesRotated:  []Outcome{},
		Errors:        []string{},
	}
}

// finalize stamps the end time and derives the success flag. Called exactly
// once per run, after all rules have been processed.
func (r *Report) finalize(now time.Time) {
	r.EndTime = now
	r.DurationSeconds = now.Sub(r.StartTime).Seconds()
	r.Success = len(r.RulesRotated) > 0 && len(r.Errors) == 0
}

// Delays holds the fixed waits inserted between key-regeneration calls.
type Delays struct {
	// Propagation is the wait after each regenerate call, allowing the
	// managed service's replicas to converge before keys are read back.
	Propagation time.Duration `yaml:"propagation_delay"`

	// Grace is the wait between primary and secondary rotation so that
	// consumers still holding the previous secondary key are not broken
	// mid-request.
	Grace time.Duration `yaml:"grace_delay"`
}

// DefaultDelays returns the production pacing: 30s propagation, 5m grace.
func DefaultDelays() Delays {
	return Delays{
		Propagation: 30 * time.Second,
		Grace:       300 * time.Second,
	}
}

// ServiceStatus reports the health of one external dependency.
// Recomputed on every probe; never persisted.
type ServiceStatus struct {
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	NamespaceStatus string `json:"namespace_status,omitempty"`
}

// Healthy reports whether the probe succeeded.
func (s ServiceStatus) Healthy() bool {
	return s.Status == "healthy"
}

// ConnectionReport holds the per-dependency results of TestConnections.
type ConnectionReport struct {
	ServiceBus ServiceStatus `json:"service_bus"`
	KeyVault   ServiceStatus `json:"key_vault"`
}
