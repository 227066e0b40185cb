package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/servicebus/armservicebus/v2"

	dserrors "github.com/systmms/rotord/internal/errors"
	"github.com/systmms/rotord/internal/logging"
	"github.com/systmms/rotord/internal/rotation"
)

// NamespacesAPI defines the subset of the Service Bus management client the
// rotation flow uses. This allows for mocking in tests.
type NamespacesAPI interface {
	RegenerateKeys(ctx context.Context, resourceGroupName string, namespaceName string, authorizationRuleName string, parameters armservicebus.RegenerateAccessKeyParameters, options *armservicebus.NamespacesClientRegenerateKeysOptions) (armservicebus.NamespacesClientRegenerateKeysResponse, error)
	ListKeys(ctx context.Context, resourceGroupName string, namespaceName string, authorizationRuleName string, options *armservicebus.NamespacesClientListKeysOptions) (armservicebus.NamespacesClientListKeysResponse, error)
	Get(ctx context.Context, resourceGroupName string, namespaceName string, options *armservicebus.NamespacesClientGetOptions) (armservicebus.NamespacesClientGetResponse, error)
}

// NamespaceKeysClient adapts the Service Bus management plane to the
// rotation.QueueManager interface for a single namespace.
type NamespaceKeysClient struct {
	api           NamespacesAPI
	resourceGroup string
	namespace     string
	logger        *logging.Logger
}

// NamespaceClientConfig holds the settings needed to address a namespace.
type NamespaceClientConfig struct {
	SubscriptionID string
	ResourceGroup  string
	Namespace      string
	Credential     azcore.TokenCredential
	Logger         *logging.Logger
}

// NamespaceOption is a functional option for configuring the client.
type NamespaceOption func(*NamespaceKeysClient)

// WithNamespacesAPI sets a custom management API (for testing).
func WithNamespacesAPI(api NamespacesAPI) NamespaceOption {
	return func(c *NamespaceKeysClient) {
		c.api = api
	}
}

// NewNamespaceKeysClient creates a management client scoped to one
// namespace. The subscription id is required before any network call.
func NewNamespaceKeysClient(cfg NamespaceClientConfig, opts ...NamespaceOption) (*NamespaceKeysClient, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(false, true)
	}

	c := &NamespaceKeysClient{
		resourceGroup: cfg.ResourceGroup,
		namespace:     cfg.Namespace,
		logger:        logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		if cfg.SubscriptionID == "" {
			return nil, dserrors.ConfigError{
				Field:      "subscription_id",
				Message:    "AZURE_SUBSCRIPTION_ID not configured",
				Suggestion: "Set AZURE_SUBSCRIPTION_ID to the subscription containing the namespace",
			}
		}
		client, err := armservicebus.NewNamespacesClient(cfg.SubscriptionID, cfg.Credential, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Service Bus management client: %w", err)
		}
		c.api = client
	}

	return c, nil
}

// RegenerateKey regenerates one key of the named authorization rule.
func (c *NamespaceKeysClient) RegenerateKey(ctx context.Context, ruleName string, kind rotation.KeyKind) error {
	keyType := armservicebus.KeyTypePrimaryKey
	if kind == rotation.KeyKindSecondary {
		keyType = armservicebus.KeyTypeSecondaryKey
	}

	_, err := c.api.RegenerateKeys(ctx, c.resourceGroup, c.namespace, ruleName,
		armservicebus.RegenerateAccessKeyParameters{KeyType: to.Ptr(keyType)}, nil)
	if err != nil {
		return dserrors.ServiceError("servicebus", fmt.Sprintf("regenerate %s for rule %s", kind, ruleName), err)
	}
	return nil
}

// ListKeys reads the rule's current connection strings.
func (c *NamespaceKeysClient) ListKeys(ctx context.Context, ruleName string) (rotation.AccessKeys, error) {
	resp, err := c.api.ListKeys(ctx, c.resourceGroup, c.namespace, ruleName, nil)
	if err != nil {
		return rotation.AccessKeys{}, dserrors.ServiceError("servicebus", fmt.Sprintf("list keys for rule %s", ruleName), err)
	}

	if resp.PrimaryConnectionString == nil || resp.SecondaryConnectionString == nil {
		return rotation.AccessKeys{}, fmt.Errorf("rule %s returned no connection strings", ruleName)
	}

	return rotation.AccessKeys{
		PrimaryConnectionString:   *resp.PrimaryConnectionString,
		SecondaryConnectionString: *resp.SecondaryConnectionString,
	}, nil
}

// NamespaceStatus fetches the namespace and reports its provisioning status.
func (c *NamespaceKeysClient) NamespaceStatus(ctx context.Context) (string, error) {
	resp, err := c.api.Get(ctx, c.resourceGroup, c.namespace, nil)
	if err != nil {
		return "", dserrors.ServiceError("servicebus", "get namespace", err)
	}

	if resp.Properties == nil || resp.Properties.Status == nil {
		return "Unknown", nil
	}
	return *resp.Properties.Status, nil
}
