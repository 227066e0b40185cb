package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/rotord/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AZURE_SUBSCRIPTION_ID",
		"SERVICE_BUS_RESOURCE_GROUP",
		"SERVICE_BUS_NAMESPACE",
		"KEY_VAULT_URI",
		"ROTATION_ENABLED",
		"ROTATE_ADMIN_ACCESS",
		"SERVICE_BUS_CONNECTION_STRING",
		"SERVICE_BUS_QUEUE_NAME",
		"ROTORD_ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	s := FromEnv()

	assert.Equal(t, "rg-azpolicy-dev-eastus", s.ResourceGroup)
	assert.Equal(t, "sb-azpolicy-dev-eastus-001", s.Namespace)
	assert.Equal(t, "policy-notifications", s.QueueName)
	assert.Equal(t, "Development", s.Environment)
	assert.True(t, s.RotationEnabled)
	assert.False(t, s.RotateAdminAccess)
	assert.Equal(t, 30*time.Second, s.Delays.Propagation)
	assert.Equal(t, 5*time.Minute, s.Delays.Grace)
	assert.Equal(t, 24*time.Hour, s.RotationInterval)
	assert.Equal(t, 10*time.Second, s.NotifyInterval)

	require.Len(t, s.Rules, 2)
	assert.Equal(t, "FunctionAppAccess", s.Rules[0].RuleName)
	assert.Equal(t, "servicebus-function-app-connection-string", s.Rules[0].SecretName)
	assert.Equal(t, "ReadOnlyAccess", s.Rules[1].RuleName)
	assert.Equal(t, "servicebus-read-only-connection-string", s.Rules[1].SecretName)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-123")
	t.Setenv("SERVICE_BUS_NAMESPACE", "sb-prod-001")
	t.Setenv("ROTATION_ENABLED", "false")
	t.Setenv("ROTATE_ADMIN_ACCESS", "TRUE")
	t.Setenv("KEY_VAULT_URI", "https://kv-prod.vault.azure.net/")

	s := FromEnv()

	assert.Equal(t, "sub-123", s.SubscriptionID)
	assert.Equal(t, "sb-prod-001", s.Namespace)
	assert.Equal(t, "https://kv-prod.vault.azure.net/", s.KeyVaultURI)
	assert.False(t, s.RotationEnabled)
	assert.True(t, s.RotateAdminAccess)

	require.Len(t, s.Rules, 3)
	assert.Equal(t, "AdminAccess", s.Rules[2].RuleName)
	assert.Equal(t, "servicebus-admin-connection-string", s.Rules[2].SecretName)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rotord.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
version: 0
rotation:
  propagation_delay: 1s
  grace_delay: 2s
  interval: 1h
  rules:
    - rule: CustomAccess
      secret: servicebus-custom-connection-string
notifications:
  queue: custom-notifications
  interval: 30s
`)

	cfg := &Config{Path: path}
	require.NoError(t, cfg.Load())

	s := cfg.Settings
	assert.Equal(t, time.Second, s.Delays.Propagation)
	assert.Equal(t, 2*time.Second, s.Delays.Grace)
	assert.Equal(t, time.Hour, s.RotationInterval)
	assert.Equal(t, "custom-notifications", s.QueueName)
	assert.Equal(t, 30*time.Second, s.NotifyInterval)

	require.Len(t, s.Rules, 1)
	assert.Equal(t, "CustomAccess", s.Rules[0].RuleName)
	assert.Equal(t, "servicebus-custom-connection-string", s.Rules[0].SecretName)
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	clearEnv(t)

	cfg := &Config{Path: filepath.Join(t.TempDir(), "absent.yaml")}
	require.NoError(t, cfg.Load())
	require.NotNil(t, cfg.Settings)
	assert.Len(t, cfg.Settings.Rules, 2)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "rotation:\n  rules: [unclosed")

	cfg := &Config{Path: path}
	err := cfg.Load()
	require.Error(t, err)
	assert.True(t, dserrors.IsConfigError(err))
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "version: 7\n")

	cfg := &Config{Path: path}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
}

func TestLoadRejectsIncompleteRule(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
rotation:
  rules:
    - rule: OnlyName
`)

	cfg := &Config{Path: path}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotation.rules[0]")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
rotation:
  propagation_delay: soon
`)

	cfg := &Config{Path: path}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadRejectsZeroDelay(t *testing.T) {
	clearEnv(t)

	// A zero delay must be a hard error, never silently swapped for the
	// production defaults.
	for _, field := range []string{"propagation_delay", "grace_delay"} {
		path := writeConfigFile(t, "rotation:\n  "+field+": 0s\n")

		cfg := &Config{Path: path}
		err := cfg.Load()
		require.Error(t, err, field)
		assert.Contains(t, err.Error(), "rotation."+field)
		assert.Contains(t, err.Error(), "invalid duration")
	}
}
