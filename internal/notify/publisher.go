// Package notify publishes policy notification messages to a Service Bus
// queue. The publisher is driven on a fixed schedule by the server and can
// also send one-off test messages on demand.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"

	dserrors "github.com/systmms/rotord/internal/errors"
	"github.com/systmms/rotord/internal/logging"
	"github.com/systmms/rotord/internal/metrics"
)

// Message is the queue payload. Consumers depend on these field names.
type Message struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Iteration int64  `json:"iteration,omitempty"`
	Data      any    `json:"data"`
}

// NotificationData is the payload body for scheduled notifications.
type NotificationData struct {
	Message     string `json:"message"`
	Environment string `json:"environment"`
	Schedule    string `json:"schedule"`
}

// TestData is the payload body for manually triggered test messages.
type TestData struct {
	Message     string          `json:"message"`
	CustomData  json.RawMessage `json:"custom_data,omitempty"`
	Environment string          `json:"environment"`
}

// Sender is the subset of azservicebus.Sender the publisher needs.
type Sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
}

// PublisherConfig carries the settings needed to build a Publisher.
type PublisherConfig struct {
	ConnectionString string
	QueueName        string
	Environment      string
	Interval         time.Duration
	Logger           *logging.Logger
	Metrics          *metrics.Recorder
}

// Publisher sends notification messages to the configured queue and keeps a
// running iteration counter across scheduled sends.
type Publisher struct {
	sender    Sender
	probe     func(ctx context.Context) error
	queue     string
	env       string
	interval  time.Duration
	logger    *logging.Logger
	metrics   *metrics.Recorder
	clock     func() time.Time
	iteration atomic.Int64
}

// Option customizes a Publisher, mainly for tests.
type Option func(*Publisher)

// WithSender injects a Sender, bypassing the real Service Bus client.
func WithSender(s Sender) Option {
	return func(p *Publisher) {
		p.sender = s
	}
}

// WithProbe injects the connection probe used by health checks.
func WithProbe(probe func(ctx context.Context) error) Option {
	return func(p *Publisher) {
		p.probe = probe
	}
}

// WithClock injects the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		p.clock = clock
	}
}

// NewPublisher creates a Publisher. Without an injected Sender it builds a
// real Service Bus client from the configured connection string.
func NewPublisher(cfg PublisherConfig, opts ...Option) (*Publisher, error) {
	if cfg.QueueName == "" {
		return nil, dserrors.ConfigError{
			Field:      "queue_name",
			Message:    "queue name is required",
			Suggestion: "Set SERVICE_BUS_QUEUE_NAME or notifications.queue in rotord.yaml",
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(false, true)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRecorder()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}

	p := &Publisher{
		queue:    cfg.QueueName,
		env:      cfg.Environment,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.sender == nil {
		if cfg.ConnectionString == "" {
			return nil, dserrors.ConfigError{
				Field:      "connection_string",
				Message:    "SERVICE_BUS_CONNECTION_STRING not configured",
				Suggestion: "Set SERVICE_BUS_CONNECTION_STRING to the namespace or queue connection string",
			}
		}
		client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, dserrors.ServiceError("servicebus", "create client", err)
		}
		sender, err := client.NewSender(cfg.QueueName, nil)
		if err != nil {
			return nil, dserrors.ServiceError("servicebus", "create sender", err)
		}
		p.sender = sender
		if p.probe == nil {
			p.probe = func(ctx context.Context) error {
				receiver, err := client.NewReceiverForQueue(cfg.QueueName, nil)
				if err != nil {
					return err
				}
				defer receiver.Close(ctx)
				_, err = receiver.PeekMessages(ctx, 1, nil)
				return err
			}
		}
	}

	return p, nil
}

// QueueName returns the destination queue.
func (p *Publisher) QueueName() string {
	return p.queue
}

// Interval returns the scheduled send interval.
func (p *Publisher) Interval() time.Duration {
	return p.interval
}

// Iteration returns the number of scheduled notifications attempted so far.
func (p *Publisher) Iteration() int64 {
	return p.iteration.Load()
}

// PublishNotification sends one scheduled policy notification and bumps the
// iteration counter. The counter advances even when the send fails so
// consumers can detect gaps.
func (p *Publisher) PublishNotification(ctx context.Context) (*Message, error) {
	iteration := p.iteration.Add(1)

	msg := &Message{
		ID:        uuid.NewString(),
		Timestamp: p.clock().UTC().Format(time.RFC3339),
		Type:      "policy-notification",
		Source:    "timer-trigger",
		Iteration: iteration,
		Data: NotificationData{
			Message:     "Scheduled policy notification check",
			Environment: p.env,
			Schedule:    fmt.Sprintf("every %s", p.interval),
		},
	}

	if err := p.send(ctx, msg); err != nil {
		p.logger.Error("Failed to send notification #%d: %v", iteration, err)
		return nil, err
	}

	p.logger.Debug("Sent notification #%d to queue '%s'", iteration, p.queue)
	return msg, nil
}

// PublishTest sends a one-off test message, embedding any caller-supplied
// JSON payload under custom_data.
func (p *Publisher) PublishTest(ctx context.Context, customData json.RawMessage) (*Message, error) {
	msg := &Message{
		ID:        uuid.NewString(),
		Timestamp: p.clock().UTC().Format(time.RFC3339),
		Type:      "test-message",
		Source:    "manual-trigger",
		Data: TestData{
			Message:     "Manual test message",
			CustomData:  customData,
			Environment: p.env,
		},
	}

	if err := p.send(ctx, msg); err != nil {
		p.logger.Error("Failed to send test message: %v", err)
		return nil, err
	}

	p.logger.Info("Test message %s sent to queue '%s'", msg.ID, p.queue)
	return msg, nil
}

func (p *Publisher) send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		p.metrics.RecordNotification(false)
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.sender.SendMessage(ctx, &azservicebus.Message{
		Body:        body,
		ContentType: to.Ptr("application/json"),
		MessageID:   to.Ptr(msg.ID),
	}, nil)
	if err != nil {
		p.metrics.RecordNotification(false)
		return dserrors.ServiceError("servicebus", "send message", err)
	}

	p.metrics.RecordNotification(true)
	return nil
}

// Probe checks that the queue is reachable. Injectable for tests; the real
// probe peeks at the queue without consuming anything.
func (p *Publisher) Probe(ctx context.Context) error {
	if p.probe == nil {
		return nil
	}
	if err := p.probe(ctx); err != nil {
		return dserrors.ServiceError("servicebus", "probe queue", err)
	}
	return nil
}
