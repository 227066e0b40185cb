package azure

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/rotord/internal/errors"
	"github.com/systmms/rotord/internal/logging"
)

// SecretsAPI defines the subset of the Key Vault secrets client used for
// rotation. This allows for mocking in tests.
// Note: NewListSecretPropertiesPager is excluded from the interface because
// it returns a concrete pager type that's difficult to mock; the connection
// probe is injected separately instead.
type SecretsAPI interface {
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// VaultClient adapts the Key Vault secrets client to the
// rotation.SecretStore interface.
type VaultClient struct {
	api      SecretsAPI
	probe    func(ctx context.Context) error
	vaultURL string
	logger   *logging.Logger
}

// VaultOption is a functional option for configuring the client.
type VaultOption func(*VaultClient)

// WithSecretsAPI sets a custom secrets API (for testing).
func WithSecretsAPI(api SecretsAPI) VaultOption {
	return func(c *VaultClient) {
		c.api = api
	}
}

// WithProbe sets a custom connection probe (for testing).
func WithProbe(probe func(ctx context.Context) error) VaultOption {
	return func(c *VaultClient) {
		c.probe = probe
	}
}

// NewVaultClient creates a Key Vault secrets client for the given vault.
// The vault URL is required before any network call.
func NewVaultClient(vaultURL string, credential azcore.TokenCredential, logger *logging.Logger, opts ...VaultOption) (*VaultClient, error) {
	if logger == nil {
		logger = logging.New(false, true)
	}

	c := &VaultClient{
		vaultURL: vaultURL,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		if vaultURL == "" {
			return nil, dserrors.ConfigError{
				Field:      "key_vault_uri",
				Message:    "KEY_VAULT_URI not configured",
				Suggestion: "Set KEY_VAULT_URI to the vault endpoint (e.g., https://my-vault.vault.azure.net/)",
			}
		}
		if _, err := url.Parse(vaultURL); err != nil {
			return nil, dserrors.ConfigError{
				Field:      "key_vault_uri",
				Message:    "invalid Key Vault URI",
				Suggestion: "Use format: https://vault-name.vault.azure.net/",
			}
		}

		client, err := azsecrets.NewClient(vaultURL, credential, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		c.api = client

		if c.probe == nil {
			// Listing secret properties needs only List permission and is
			// the cheapest read-only call the vault offers.
			c.probe = func(ctx context.Context) error {
				pager := client.NewListSecretPropertiesPager(nil)
				_, err := pager.NextPage(ctx)
				return err
			}
		}
	}

	if c.probe == nil {
		c.probe = func(ctx context.Context) error { return nil }
	}

	return c, nil
}

// SetSecret writes a secret value with expiry, content type, and tags.
func (c *VaultClient) SetSecret(ctx context.Context, name, value string, expiresOn time.Time, contentType string, tags map[string]string) error {
	params := azsecrets.SetSecretParameters{
		Value:       to.Ptr(value),
		ContentType: to.Ptr(contentType),
		SecretAttributes: &azsecrets.SecretAttributes{
			Expires: to.Ptr(expiresOn),
		},
	}
	if len(tags) > 0 {
		params.Tags = make(map[string]*string, len(tags))
		for k, v := range tags {
			params.Tags[k] = to.Ptr(v)
		}
	}

	if _, err := c.api.SetSecret(ctx, name, params, nil); err != nil {
		return dserrors.ServiceError("keyvault", fmt.Sprintf("set secret %s", name), err)
	}

	c.logger.Debug("Wrote Key Vault secret %s (value %s)", name, logging.Secret(value))
	return nil
}

// Probe performs a lightweight read-only call to verify connectivity.
func (c *VaultClient) Probe(ctx context.Context) error {
	if err := c.probe(ctx); err != nil {
		return dserrors.ServiceError("keyvault", "list secrets", err)
	}
	return nil
}
