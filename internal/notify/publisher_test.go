package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/rotord/internal/errors"
)

type stubSender struct {
	sent    []*azservicebus.Message
	sendErr error
}

func (s *stubSender) SendMessage(_ context.Context, msg *azservicebus.Message, _ *azservicebus.SendMessageOptions) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newPublisher(t *testing.T, sender *stubSender, opts ...Option) *Publisher {
	t.Helper()
	fixed := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{
		WithSender(sender),
		WithClock(func() time.Time { return fixed }),
	}, opts...)
	p, err := NewPublisher(PublisherConfig{
		QueueName:   "policy-notifications",
		Environment: "Test",
		Interval:    10 * time.Second,
	}, opts...)
	require.NoError(t, err)
	return p
}

func TestNewPublisherRequiresQueueName(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{})
	require.Error(t, err)
	assert.True(t, dserrors.IsConfigError(err))
}

func TestNewPublisherRequiresConnectionString(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{QueueName: "policy-notifications"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVICE_BUS_CONNECTION_STRING not configured")
}

func TestPublishNotificationPayload(t *testing.T) {
	sender := &stubSender{}
	p := newPublisher(t, sender)

	msg, err := p.PublishNotification(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	sent := sender.sent[0]
	require.NotNil(t, sent.ContentType)
	assert.Equal(t, "application/json", *sent.ContentType)
	require.NotNil(t, sent.MessageID)
	assert.Equal(t, msg.ID, *sent.MessageID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(sent.Body, &payload))
	assert.Equal(t, "policy-notification", payload["type"])
	assert.Equal(t, "timer-trigger", payload["source"])
	assert.Equal(t, "2026-08-26T12:00:00Z", payload["timestamp"])
	assert.Equal(t, float64(1), payload["iteration"])

	data, ok := payload["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Scheduled policy notification check", data["message"])
	assert.Equal(t, "Test", data["environment"])
	assert.Equal(t, "every 10s", data["schedule"])
}

func TestPublishNotificationCountsFailedSends(t *testing.T) {
	sender := &stubSender{sendErr: errors.New("amqp: link detached")}
	p := newPublisher(t, sender)

	_, err := p.PublishNotification(context.Background())
	require.Error(t, err)
	_, err = p.PublishNotification(context.Background())
	require.Error(t, err)

	// Failed sends still advance the counter so consumers can see gaps.
	assert.Equal(t, int64(2), p.Iteration())
}

func TestPublishTestPayload(t *testing.T) {
	sender := &stubSender{}
	p := newPublisher(t, sender)

	custom := json.RawMessage(`{"requested_by":"ops"}`)
	msg, err := p.PublishTest(context.Background(), custom)
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(sender.sent[0].Body, &payload))
	assert.Equal(t, "test-message", payload["type"])
	assert.Equal(t, "manual-trigger", payload["source"])
	assert.Equal(t, msg.ID, payload["id"])
	// Test messages are one-off, not part of the scheduled sequence.
	assert.NotContains(t, payload, "iteration")

	data, ok := payload["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Manual test message", data["message"])
	customData, ok := data["custom_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ops", customData["requested_by"])
}

func TestPublishTestWrapsSendError(t *testing.T) {
	sender := &stubSender{sendErr: errors.New("unauthorized")}
	p := newPublisher(t, sender)

	_, err := p.PublishTest(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servicebus error")
	assert.Equal(t, int64(0), p.Iteration())
}

func TestProbe(t *testing.T) {
	sender := &stubSender{}

	p := newPublisher(t, sender, WithProbe(func(context.Context) error { return nil }))
	assert.NoError(t, p.Probe(context.Background()))

	p = newPublisher(t, sender, WithProbe(func(context.Context) error {
		return errors.New("queue not found")
	}))
	err := p.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servicebus error")
}
