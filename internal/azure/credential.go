// Package azure wraps the Azure SDK clients behind the narrow interfaces
// the rotation orchestrator consumes, so tests can substitute fakes without
// touching the SDK's concrete types.
package azure

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// CredentialConfig selects the authentication method for the management and
// data-plane clients.
type CredentialConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// UseManagedIdentity forces managed-identity auth; UserAssignedID
	// selects a user-assigned identity when set.
	UseManagedIdentity bool
	UserAssignedID     string
}

// NewCredential builds a token credential. Managed identity is used when
// requested, a service principal when a client secret is supplied, and the
// default credential chain otherwise (environment, workload identity,
// managed identity, Azure CLI).
func NewCredential(cfg CredentialConfig) (azcore.TokenCredential, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case cfg.UseManagedIdentity && cfg.UserAssignedID != "":
		cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.UserAssignedID),
		})
	case cfg.UseManagedIdentity:
		cred, err = azidentity.NewManagedIdentityCredential(nil)
	case cfg.ClientSecret != "":
		cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return cred, nil
}
