package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/logging"
)

func clearAzureEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AZURE_SUBSCRIPTION_ID",
		"AZURE_TENANT_ID",
		"AZURE_CLIENT_ID",
		"AZURE_CLIENT_SECRET",
		"AZURE_USE_MANAGED_IDENTITY",
		"SERVICE_BUS_RESOURCE_GROUP",
		"SERVICE_BUS_NAMESPACE",
		"KEY_VAULT_URI",
		"ROTATION_ENABLED",
		"ROTATE_ADMIN_ACCESS",
		"SERVICE_BUS_CONNECTION_STRING",
	} {
		t.Setenv(key, "")
	}
}

func TestRotateCommand_DisabledRotationFails(t *testing.T) {
	clearAzureEnv(t)
	t.Setenv("ROTATION_ENABLED", "false")

	cfg := &config.Config{Logger: logging.New(false, true)}
	cmd := NewRotateCommand(cfg)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
}

func TestRotateCommand_MissingSubscriptionFails(t *testing.T) {
	clearAzureEnv(t)

	cfg := &config.Config{Logger: logging.New(false, true)}
	cmd := NewRotateCommand(cfg)
	cmd.SetArgs([]string{})

	// With no subscription configured the management client cannot be
	// built, so every rule records a failure and the command errors.
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 error(s)")
}

func TestDoctorCommand_FailsWithoutCredentials(t *testing.T) {
	clearAzureEnv(t)

	cfg := &config.Config{Logger: logging.New(false, true)}
	cmd := NewDoctorCommand(cfg)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency checks failed")
}
