package fakes

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/servicebus/armservicebus/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeNamespacesClient is a mock implementation of the Service Bus
// management API subset used by rotation. Each regenerate call bumps the
// affected key's version so read-backs observe fresh material.
type FakeNamespacesClient struct {
	// Keys maps rule names to their current key versions.
	Keys map[string]*FakeRuleKeys
	// Errors maps rule names to errors to return from any operation.
	Errors map[string]error
	// GetErr is returned from Get when set.
	GetErr error
	// NamespaceState is the status reported by Get.
	NamespaceState string
	// Calls records every management call in order.
	Calls []string
}

// FakeRuleKeys tracks per-rule key versions.
type FakeRuleKeys struct {
	PrimaryVersion   int
	SecondaryVersion int
}

// NewFakeNamespacesClient creates a fake with the given rules registered.
func NewFakeNamespacesClient(rules ...string) *FakeNamespacesClient {
	f := &FakeNamespacesClient{
		Keys:           make(map[string]*FakeRuleKeys),
		Errors:         make(map[string]error),
		NamespaceState: "Active",
	}
	for _, rule := range rules {
		f.Keys[rule] = &FakeRuleKeys{}
	}
	return f
}

func (f *FakeNamespacesClient) connectionString(rule, kind string, version int) string {
	return fmt.Sprintf("Endpoint=sb://fake.servicebus.windows.net/;SharedAccessKeyName=%s;SharedAccessKey=%s-v%d", rule, kind, version)
}

// RegenerateKeys mocks key regeneration for an authorization rule.
func (f *FakeNamespacesClient) RegenerateKeys(_ context.Context, _, _, authorizationRuleName string, parameters armservicebus.RegenerateAccessKeyParameters, _ *armservicebus.NamespacesClientRegenerateKeysOptions) (armservicebus.NamespacesClientRegenerateKeysResponse, error) {
	keyType := ""
	if parameters.KeyType != nil {
		keyType = string(*parameters.KeyType)
	}
	f.Calls = append(f.Calls, fmt.Sprintf("regenerate:%s:%s", keyType, authorizationRuleName))

	if err, exists := f.Errors[authorizationRuleName]; exists {
		return armservicebus.NamespacesClientRegenerateKeysResponse{}, err
	}

	keys, exists := f.Keys[authorizationRuleName]
	if !exists {
		return armservicebus.NamespacesClientRegenerateKeysResponse{}, notFoundError("40400")
	}

	switch keyType {
	case string(armservicebus.KeyTypePrimaryKey):
		keys.PrimaryVersion++
	case string(armservicebus.KeyTypeSecondaryKey):
		keys.SecondaryVersion++
	}

	return armservicebus.NamespacesClientRegenerateKeysResponse{}, nil
}

// ListKeys mocks reading a rule's current connection strings.
func (f *FakeNamespacesClient) ListKeys(_ context.Context, _, _, authorizationRuleName string, _ *armservicebus.NamespacesClientListKeysOptions) (armservicebus.NamespacesClientListKeysResponse, error) {
	f.Calls = append(f.Calls, fmt.Sprintf("list_keys:%s", authorizationRuleName))

	if err, exists := f.Errors[authorizationRuleName]; exists {
		return armservicebus.NamespacesClientListKeysResponse{}, err
	}

	keys, exists := f.Keys[authorizationRuleName]
	if !exists {
		return armservicebus.NamespacesClientListKeysResponse{}, notFoundError("40400")
	}

	return armservicebus.NamespacesClientListKeysResponse{
		AccessKeys: armservicebus.AccessKeys{
			KeyName:                   to.Ptr(authorizationRuleName),
			PrimaryConnectionString:   to.Ptr(f.connectionString(authorizationRuleName, "primary", keys.PrimaryVersion)),
			SecondaryConnectionString: to.Ptr(f.connectionString(authorizationRuleName, "secondary", keys.SecondaryVersion)),
		},
	}, nil
}

// Get mocks fetching the namespace.
func (f *FakeNamespacesClient) Get(_ context.Context, _, namespaceName string, _ *armservicebus.NamespacesClientGetOptions) (armservicebus.NamespacesClientGetResponse, error) {
	f.Calls = append(f.Calls, "get_namespace")

	if f.GetErr != nil {
		return armservicebus.NamespacesClientGetResponse{}, f.GetErr
	}

	return armservicebus.NamespacesClientGetResponse{
		SBNamespace: armservicebus.SBNamespace{
			Name: to.Ptr(namespaceName),
			Properties: &armservicebus.SBNamespaceProperties{
				Status: to.Ptr(f.NamespaceState),
			},
		},
	}, nil
}

// StoredSecret captures one SetSecret call.
type StoredSecret struct {
	Name       string
	Parameters azsecrets.SetSecretParameters
}

// FakeSecretsClient is a mock implementation of the Key Vault secrets API
// subset used by rotation.
type FakeSecretsClient struct {
	// Stored records every SetSecret call in order.
	Stored []StoredSecret
	// Errors maps secret names to errors to return.
	Errors map[string]error
	// ProbeErr is returned from the injected probe when set.
	ProbeErr error
}

// NewFakeSecretsClient creates a new mock Key Vault secrets client.
func NewFakeSecretsClient() *FakeSecretsClient {
	return &FakeSecretsClient{
		Errors: make(map[string]error),
	}
}

// SetSecret mocks writing a secret.
func (f *FakeSecretsClient) SetSecret(_ context.Context, name string, parameters azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	if err, exists := f.Errors[name]; exists {
		return azsecrets.SetSecretResponse{}, err
	}

	f.Stored = append(f.Stored, StoredSecret{Name: name, Parameters: parameters})

	return azsecrets.SetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    (*azsecrets.ID)(to.Ptr(fmt.Sprintf("https://test-vault.vault.azure.net/secrets/%s", name))),
			Value: parameters.Value,
		},
	}, nil
}

// Probe mocks the vault connectivity check.
func (f *FakeSecretsClient) Probe(_ context.Context) error {
	return f.ProbeErr
}

// Latest returns the most recent write to the named secret, if any.
func (f *FakeSecretsClient) Latest(name string) (StoredSecret, bool) {
	for i := len(f.Stored) - 1; i >= 0; i-- {
		if f.Stored[i].Name == name {
			return f.Stored[i], true
		}
	}
	return StoredSecret{}, false
}

func notFoundError(code string) error {
	return &azcore.ResponseError{
		StatusCode: 404,
		ErrorCode:  code,
	}
}

// ForbiddenError creates a mock Azure forbidden error.
func ForbiddenError() error {
	return &azcore.ResponseError{
		StatusCode: 403,
		ErrorCode:  "Forbidden",
	}
}

// UnauthorizedError creates a mock Azure unauthorized error.
func UnauthorizedError() error {
	return &azcore.ResponseError{
		StatusCode: 401,
		ErrorCode:  "Unauthorized",
	}
}
