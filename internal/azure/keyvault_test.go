package azure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/rotord/tests/fakes"
)

func newVaultClient(t *testing.T, fake *fakes.FakeSecretsClient) *VaultClient {
	t.Helper()
	client, err := NewVaultClient("https://test-vault.vault.azure.net/", nil, nil,
		WithSecretsAPI(fake), WithProbe(fake.Probe))
	require.NoError(t, err)
	return client
}

func TestNewVaultClientRequiresURI(t *testing.T) {
	_, err := NewVaultClient("", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEY_VAULT_URI")
}

func TestSetSecretMapsParameters(t *testing.T) {
	fake := fakes.NewFakeSecretsClient()
	client := newVaultClient(t, fake)

	expires := time.Date(2026, 9, 25, 12, 0, 0, 0, time.UTC)
	tags := map[string]string{
		"SecretType": "servicebus-connection-string",
		"RotatedBy":  "rotord",
	}

	err := client.SetSecret(context.Background(), "servicebus-read-only-connection-string",
		"Endpoint=sb://ns/;SharedAccessKey=v2", expires, "text/plain", tags)
	require.NoError(t, err)

	stored, ok := fake.Latest("servicebus-read-only-connection-string")
	require.True(t, ok)
	require.NotNil(t, stored.Parameters.Value)
	assert.Equal(t, "Endpoint=sb://ns/;SharedAccessKey=v2", *stored.Parameters.Value)
	require.NotNil(t, stored.Parameters.ContentType)
	assert.Equal(t, "text/plain", *stored.Parameters.ContentType)
	require.NotNil(t, stored.Parameters.SecretAttributes)
	require.NotNil(t, stored.Parameters.SecretAttributes.Expires)
	assert.Equal(t, expires, *stored.Parameters.SecretAttributes.Expires)
	require.NotNil(t, stored.Parameters.Tags["SecretType"])
	assert.Equal(t, "servicebus-connection-string", *stored.Parameters.Tags["SecretType"])
}

func TestSetSecretWrapsServiceError(t *testing.T) {
	fake := fakes.NewFakeSecretsClient()
	fake.Errors["broken"] = fakes.ForbiddenError()
	client := newVaultClient(t, fake)

	err := client.SetSecret(context.Background(), "broken", "value", time.Now(), "text/plain", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyvault error")
}

func TestProbe(t *testing.T) {
	fake := fakes.NewFakeSecretsClient()
	client := newVaultClient(t, fake)

	require.NoError(t, client.Probe(context.Background()))

	fake.ProbeErr = errors.New("connection refused")
	err := client.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
