package commands

import (
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/systmms/rotord/internal/azure"
	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/metrics"
	"github.com/systmms/rotord/internal/notify"
	"github.com/systmms/rotord/internal/rotation"
)

// buildOrchestrator wires the orchestrator to real Azure clients. The
// credential is shared between the management and data-plane factories and
// built once, on the first client construction.
func buildOrchestrator(cfg *config.Config, rec *metrics.Recorder) (*rotation.Orchestrator, error) {
	s := cfg.Settings
	logger := cfg.Logger

	var (
		credOnce sync.Once
		cred     azcore.TokenCredential
		credErr  error
	)
	credential := func() (azcore.TokenCredential, error) {
		credOnce.Do(func() {
			cred, credErr = azure.NewCredential(azure.CredentialConfig{
				TenantID:           s.TenantID,
				ClientID:           s.ClientID,
				ClientSecret:       s.ClientSecret,
				UseManagedIdentity: s.UseManagedIdentity,
				UserAssignedID:     s.ManagedIdentityID,
			})
		})
		return cred, credErr
	}

	return rotation.New(rotation.Options{
		Namespace:     s.Namespace,
		ResourceGroup: s.ResourceGroup,
		Rules:         s.Rules,
		Enabled:       s.RotationEnabled,
		Delays:        s.Delays,
		Logger:        logger,
		Metrics:       rec,
		QueueManager: func() (rotation.QueueManager, error) {
			c, err := credential()
			if err != nil {
				return nil, err
			}
			return azure.NewNamespaceKeysClient(azure.NamespaceClientConfig{
				SubscriptionID: s.SubscriptionID,
				ResourceGroup:  s.ResourceGroup,
				Namespace:      s.Namespace,
				Credential:     c,
				Logger:         logger,
			})
		},
		SecretStore: func() (rotation.SecretStore, error) {
			c, err := credential()
			if err != nil {
				return nil, err
			}
			return azure.NewVaultClient(s.KeyVaultURI, c, logger)
		},
	})
}

// buildPublisher constructs the notification publisher, or nil when no
// connection string is configured.
func buildPublisher(cfg *config.Config, rec *metrics.Recorder) (*notify.Publisher, error) {
	s := cfg.Settings
	if s.QueueConnectionString == "" {
		return nil, nil
	}

	return notify.NewPublisher(notify.PublisherConfig{
		ConnectionString: s.QueueConnectionString,
		QueueName:        s.QueueName,
		Environment:      s.Environment,
		Interval:         s.NotifyInterval,
		Logger:           cfg.Logger,
		Metrics:          rec,
	})
}
