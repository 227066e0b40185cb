package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/rotord/internal/errors"
	"github.com/systmms/rotord/internal/logging"
	"github.com/systmms/rotord/internal/rotation"
)

// Config holds the runtime configuration
type Config struct {
	Path     string
	Logger   *logging.Logger
	Settings *Settings
}

// Settings is the resolved configuration: environment variables first, then
// an optional rotord.yaml overlay. Read once at startup, immutable after.
type Settings struct {
	SubscriptionID    string
	ResourceGroup     string
	Namespace         string
	KeyVaultURI       string
	RotationEnabled   bool
	RotateAdminAccess bool

	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	ManagedIdentityID  string

	QueueConnectionString string
	QueueName             string
	Environment           string
	ListenAddr            string

	Rules  []rotation.RuleConfig
	Delays rotation.Delays

	RotationInterval time.Duration
	NotifyInterval   time.Duration
}

// fileDefinition is the rotord.yaml structure. Delays are duration strings
// ("30s", "5m") so the file reads the way operators think.
type fileDefinition struct {
	Version  int `yaml:"version"`
	Rotation struct {
		PropagationDelay string                `yaml:"propagation_delay"`
		GraceDelay       string                `yaml:"grace_delay"`
		Interval         string                `yaml:"interval"`
		Rules            []rotation.RuleConfig `yaml:"rules"`
	} `yaml:"rotation"`
	Notifications struct {
		Queue    string `yaml:"queue"`
		Interval string `yaml:"interval"`
	} `yaml:"notifications"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.ToLower(v) == "true"
}

// FromEnv reads the environment into a Settings with original defaults.
func FromEnv() *Settings {
	s := &Settings{
		SubscriptionID:        os.Getenv("AZURE_SUBSCRIPTION_ID"),
		ResourceGroup:         envOr("SERVICE_BUS_RESOURCE_GROUP", "rg-azpolicy-dev-eastus"),
		Namespace:             envOr("SERVICE_BUS_NAMESPACE", "sb-azpolicy-dev-eastus-001"),
		KeyVaultURI:           os.Getenv("KEY_VAULT_URI"),
		RotationEnabled:       envBool("ROTATION_ENABLED", true),
		RotateAdminAccess:     envBool("ROTATE_ADMIN_ACCESS", false),
		TenantID:              os.Getenv("AZURE_TENANT_ID"),
		ClientID:              os.Getenv("AZURE_CLIENT_ID"),
		ClientSecret:          os.Getenv("AZURE_CLIENT_SECRET"),
		UseManagedIdentity:    envBool("AZURE_USE_MANAGED_IDENTITY", false),
		ManagedIdentityID:     os.Getenv("AZURE_MANAGED_IDENTITY_CLIENT_ID"),
		ListenAddr:            envOr("ROTORD_LISTEN_ADDR", ":8080"),
		QueueConnectionString: os.Getenv("SERVICE_BUS_CONNECTION_STRING"),
		QueueName:             envOr("SERVICE_BUS_QUEUE_NAME", "policy-notifications"),
		Environment:           envOr("ROTORD_ENVIRONMENT", "Development"),
		Delays:                rotation.DefaultDelays(),
		RotationInterval:      24 * time.Hour,
		NotifyInterval:        10 * time.Second,
	}
	s.Rules = defaultRules(s.RotateAdminAccess)
	return s
}

func defaultRules(includeAdmin bool) []rotation.RuleConfig {
	rules := []rotation.RuleConfig{
		{RuleName: "FunctionAppAccess", SecretName: "servicebus-function-app-connection-string"},
		{RuleName: "ReadOnlyAccess", SecretName: "servicebus-read-only-connection-string"},
	}
	if includeAdmin {
		rules = append(rules, rotation.RuleConfig{
			RuleName:   "AdminAccess",
			SecretName: "servicebus-admin-connection-string",
		})
	}
	return rules
}

// Load resolves settings from the environment and, when the configured file
// exists, overlays the file on top. A missing file at the default path is
// not an error; the service is fully configurable from the environment.
func (c *Config) Load() error {
	settings := FromEnv()

	if c.Path != "" {
		if err := settings.applyFile(c.Path); err != nil {
			return err
		}
	}

	c.Settings = settings
	return nil
}

func (s *Settings) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def fileDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if def.Version != 0 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your rotord.yaml file",
		}
	}

	if def.Rotation.PropagationDelay != "" {
		d, err := parseDelay("rotation.propagation_delay", def.Rotation.PropagationDelay)
		if err != nil {
			return err
		}
		s.Delays.Propagation = d
	}
	if def.Rotation.GraceDelay != "" {
		d, err := parseDelay("rotation.grace_delay", def.Rotation.GraceDelay)
		if err != nil {
			return err
		}
		s.Delays.Grace = d
	}
	if def.Rotation.Interval != "" {
		d, err := parseDelay("rotation.interval", def.Rotation.Interval)
		if err != nil {
			return err
		}
		s.RotationInterval = d
	}
	if len(def.Rotation.Rules) > 0 {
		for i, rule := range def.Rotation.Rules {
			if rule.RuleName == "" || rule.SecretName == "" {
				return dserrors.ConfigError{
					Field:      fmt.Sprintf("rotation.rules[%d]", i),
					Message:    "each rule needs both 'rule' and 'secret'",
					Suggestion: "Example: {rule: FunctionAppAccess, secret: servicebus-function-app-connection-string}",
				}
			}
		}
		s.Rules = def.Rotation.Rules
	}

	if def.Notifications.Queue != "" {
		s.QueueName = def.Notifications.Queue
	}
	if def.Notifications.Interval != "" {
		d, err := parseDelay("notifications.interval", def.Notifications.Interval)
		if err != nil {
			return err
		}
		s.NotifyInterval = d
	}

	return nil
}

// parseDelay rejects zero as well as negatives: the rotation delays pace
// the managed service's consistency window, and a zero delay configured by
// mistake would otherwise be silently replaced with the defaults downstream.
func parseDelay(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, dserrors.ConfigError{
			Field:      field,
			Value:      value,
			Message:    "invalid duration",
			Suggestion: "Use a positive Go duration, e.g. '30s' or '5m'",
		}
	}
	return d, nil
}
