package rotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	dserrors "github.com/systmms/rotord/internal/errors"
	"github.com/systmms/rotord/internal/logging"
	"github.com/systmms/rotord/internal/metrics"
)

// QueueManager is the management-plane surface the orchestrator needs from
// Service Bus: regenerate a named rule's key, read the rule's connection
// strings back, and probe the namespace.
type QueueManager interface {
	RegenerateKey(ctx context.Context, ruleName string, kind KeyKind) error
	ListKeys(ctx context.Context, ruleName string) (AccessKeys, error)
	NamespaceStatus(ctx context.Context) (string, error)
}

// SecretStore is the surface the orchestrator needs from Key Vault.
type SecretStore interface {
	SetSecret(ctx context.Context, name, value string, expiresOn time.Time, contentType string, tags map[string]string) error
	Probe(ctx context.Context) error
}

// QueueManagerFactory constructs the queue management client on first use.
type QueueManagerFactory func() (QueueManager, error)

// SecretStoreFactory constructs the secret store client on first use.
type SecretStoreFactory func() (SecretStore, error)

// Options configures an Orchestrator.
type Options struct {
	Namespace     string
	ResourceGroup string
	Rules         []RuleConfig
	Enabled       bool
	Delays        Delays

	// Sleep substitutes the blocking wait between management calls.
	// Nil means time.Sleep; tests pass a recording stub.
	Sleep func(d time.Duration)

	// Clock substitutes the time source. Nil means time.Now.
	Clock func() time.Time

	QueueManager QueueManagerFactory
	SecretStore  SecretStoreFactory

	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

// Orchestrator performs the full rotation sequence for a fixed, ordered
// list of authorization rules and aggregates results into one Report per
// invocation. Clients are constructed lazily on first use and reused for
// the lifetime of the instance; the instance itself holds no cross-run
// state, so concurrent Run calls produce independent reports (though
// rotating the same rule concurrently is the caller's job to prevent).
type Orchestrator struct {
	namespace     string
	resourceGroup string
	rules         []RuleConfig
	enabled       bool
	delays        Delays
	sleep         func(d time.Duration)
	clock         func() time.Time

	// Clients are constructed on first use and memoized for the lifetime
	// of the instance. sync.Once keeps construction single-shot even when
	// a health probe races a rotation run.
	newQueueManager QueueManagerFactory
	newSecretStore  SecretStoreFactory
	queueOnce       sync.Once
	queueManager    QueueManager
	queueErr        error
	storeOnce       sync.Once
	secretStore     SecretStore
	storeErr        error

	logger  *logging.Logger
	metrics *metrics.Recorder
}

// New constructs an Orchestrator. Missing rules or factories are
// configuration errors and fail before any network call.
func New(opts Options) (*Orchestrator, error) {
	if opts.Namespace == "" {
		return nil, dserrors.ConfigError{
			Field:      "namespace",
			Message:    "Service Bus namespace not configured",
			Suggestion: "Set SERVICE_BUS_NAMESPACE to the namespace name",
		}
	}
	if opts.ResourceGroup == "" {
		return nil, dserrors.ConfigError{
			Field:      "resource_group",
			Message:    "resource group not configured",
			Suggestion: "Set SERVICE_BUS_RESOURCE_GROUP to the namespace's resource group",
		}
	}
	if len(opts.Rules) == 0 {
		return nil, dserrors.ConfigError{
			Field:      "rules",
			Message:    "no authorization rules configured",
			Suggestion: "Configure at least one rule/secret pair",
		}
	}
	if opts.QueueManager == nil || opts.SecretStore == nil {
		return nil, dserrors.ConfigError{
			Field:   "clients",
			Message: "queue manager and secret store factories are required",
		}
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(false, true)
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NewRecorder()
	}

	delays := opts.Delays
	if delays.Propagation == 0 && delays.Grace == 0 {
		delays = DefaultDelays()
	}

	rules := make([]RuleConfig, len(opts.Rules))
	copy(rules, opts.Rules)

	return &Orchestrator{
		namespace:       opts.Namespace,
		resourceGroup:   opts.ResourceGroup,
		rules:           rules,
		enabled:         opts.Enabled,
		delays:          delays,
		sleep:           sleep,
		clock:           clock,
		newQueueManager: opts.QueueManager,
		newSecretStore:  opts.SecretStore,
		logger:          logger,
		metrics:         rec,
	}, nil
}

// Namespace returns the configured namespace name.
func (o *Orchestrator) Namespace() string { return o.namespace }

// ResourceGroup returns the configured resource group name.
func (o *Orchestrator) ResourceGroup() string { return o.resourceGroup }

// Rules returns the configured rule list, in rotation order.
func (o *Orchestrator) Rules() []RuleConfig {
	rules := make([]RuleConfig, len(o.rules))
	copy(rules, o.rules)
	return rules
}

// Enabled reports whether rotation is administratively enabled.
func (o *Orchestrator) Enabled() bool { return o.enabled }

func (o *Orchestrator) queue() (QueueManager, error) {
	o.queueOnce.Do(func() {
		o.queueManager, o.queueErr = o.newQueueManager()
	})
	return o.queueManager, o.queueErr
}

func (o *Orchestrator) store() (SecretStore, error) {
	o.storeOnce.Do(func() {
		o.secretStore, o.storeErr = o.newSecretStore()
	})
	return o.secretStore, o.storeErr
}

// RotateRule regenerates both keys of an authorization rule with the
// staggered sequence: regenerate primary, wait for propagation, read keys,
// wait out the grace window, regenerate secondary, wait for propagation,
// read keys again. The final read is returned. Any error at any step is
// terminal for the rule; there is no resume-from-middle.
func (o *Orchestrator) RotateRule(ctx context.Context, ruleName string) (AccessKeys, error) {
	qm, err := o.queue()
	if err != nil {
		return AccessKeys{}, err
	}

	o.logger.Info("Regenerating primary key for rule: %s", ruleName)
	if err := qm.RegenerateKey(ctx, ruleName, KeyKindPrimary); err != nil {
		return AccessKeys{}, fmt.Errorf("regenerate primary key: %w", err)
	}

	o.sleep(o.delays.Propagation)

	if _, err := qm.ListKeys(ctx, ruleName); err != nil {
		return AccessKeys{}, fmt.Errorf("list keys after primary rotation: %w", err)
	}
	o.logger.Info("Successfully rotated primary key for rule: %s", ruleName)

	// Grace window: consumers still holding the old secondary key get
	// time to pick up the new primary before we invalidate it.
	o.sleep(o.delays.Grace)

	o.logger.Info("Regenerating secondary key for rule: %s", ruleName)
	if err := qm.RegenerateKey(ctx, ruleName, KeyKindSecondary); err != nil {
		return AccessKeys{}, fmt.Errorf("regenerate secondary key: %w", err)
	}

	o.sleep(o.delays.Propagation)

	keys, err := qm.ListKeys(ctx, ruleName)
	if err != nil {
		return AccessKeys{}, fmt.Errorf("list keys after secondary rotation: %w", err)
	}
	o.logger.Info("Successfully rotated secondary key for rule: %s", ruleName)

	return keys, nil
}

// StoreSecret writes the new connection string into Key Vault with a
// 30-day expiry and provenance tags. Failures are logged and reported as
// false rather than returned: a bad vault write must not abort the run
// for the remaining rules.
func (o *Orchestrator) StoreSecret(ctx context.Context, secretName, connectionString string) bool {
	st, err := o.store()
	if err != nil {
		o.logger.Error("Error updating Key Vault secret %s: %v", secretName, err)
		return false
	}

	now := o.clock().UTC()
	tags := map[string]string{
		"SecretType": "servicebus-connection-string",
		"RotatedBy":  "rotord",
		"RotatedAt":  now.Format(time.RFC3339),
		"Namespace":  o.namespace,
	}

	if err := st.SetSecret(ctx, secretName, connectionString, now.Add(30*24*time.Hour), "text/plain", tags); err != nil {
		o.logger.Error("Error updating Key Vault secret %s: %v", secretName, err)
		return false
	}

	o.logger.Info("Successfully updated Key Vault secret: %s", secretName)
	return true
}

// Run performs a full rotation pass over the configured rules, in order,
// and returns the aggregate report. Per-rule failures are recorded and do
// not stop later rules; a defect escaping the loop is recovered and
// recorded so the report is always well-formed.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	report := newReport(o.namespace, o.resourceGroup, o.clock().UTC())
	defer func() {
		report.finalize(o.clock().UTC())
		o.metrics.RecordRunCompleted(report.Success, report.DurationSeconds)
	}()

	if !o.enabled {
		report.Errors = append(report.Errors, "Secret rotation is disabled")
		return report
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				msg := fmt.Sprintf("Critical error during rotation: %v", r)
				report.Errors = append(report.Errors, msg)
				o.logger.Error("%s", msg)
			}
		}()

		for _, rule := range o.rules {
			o.logger.Info("Starting rotation for rule: %s", rule.RuleName)

			keys, err := o.RotateRule(ctx, rule.RuleName)
			if err != nil {
				msg := fmt.Sprintf("Failed to rotate rule %s: %v", rule.RuleName, err)
				report.Errors = append(report.Errors, msg)
				o.logger.Error("%s", msg)
				o.metrics.RecordRuleRotation(rule.RuleName, false)
				continue
			}

			if !o.StoreSecret(ctx, rule.SecretName, keys.PrimaryConnectionString) {
				report.Errors = append(report.Errors,
					fmt.Sprintf("Failed to update Key Vault secret for rule: %s", rule.RuleName))
				o.metrics.RecordRuleRotation(rule.RuleName, false)
				continue
			}

			report.RulesRotated = append(report.RulesRotated, Outcome{
				RuleName:   rule.RuleName,
				SecretName: rule.SecretName,
				RotatedAt:  o.clock().UTC(),
				Status:     StatusSuccess,
			})
			o.metrics.RecordRuleRotation(rule.RuleName, true)
			o.logger.Info("Successfully completed rotation for rule: %s", rule.RuleName)
		}
	}()

	return report
}

// TestConnections independently probes Service Bus and Key Vault. A failure
// in one dependency never prevents probing the other.
func (o *Orchestrator) TestConnections(ctx context.Context) ConnectionReport {
	var report ConnectionReport

	report.ServiceBus = o.probeServiceBus(ctx)
	report.KeyVault = o.probeKeyVault(ctx)

	o.metrics.RecordHealthCheck("service_bus", report.ServiceBus.Healthy())
	o.metrics.RecordHealthCheck("key_vault", report.KeyVault.Healthy())

	return report
}

func (o *Orchestrator) probeServiceBus(ctx context.Context) ServiceStatus {
	qm, err := o.queue()
	if err != nil {
		return ServiceStatus{Status: "unhealthy", Error: err.Error()}
	}

	status, err := qm.NamespaceStatus(ctx)
	if err != nil {
		return ServiceStatus{Status: "unhealthy", Error: err.Error()}
	}
	return ServiceStatus{Status: "healthy", NamespaceStatus: status}
}

func (o *Orchestrator) probeKeyVault(ctx context.Context) ServiceStatus {
	st, err := o.store()
	if err != nil {
		return ServiceStatus{Status: "unhealthy", Error: err.Error()}
	}

	if err := st.Probe(ctx); err != nil {
		return ServiceStatus{Status: "unhealthy", Error: err.Error()}
	}
	return ServiceStatus{Status: "healthy"}
}
