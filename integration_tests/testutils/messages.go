package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

// MessageCapture records every message delivered on a set of topics.
type MessageCapture struct {
	messages map[string][]*message.Message
	mutex    sync.RWMutex
}

// CaptureTopics subscribes bus to each topic and records what arrives until
// the test ends.
func CaptureTopics(t *testing.T, ctx context.Context, bus eventbus.EventBus, topics ...string) *MessageCapture {
	t.Helper()

	mc := &MessageCapture{messages: make(map[string][]*message.Message)}
	subCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}

	for _, topic := range topics {
		msgCh, err := bus.Subscribe(subCtx, topic)
		if err != nil {
			cancel()
			t.Fatalf("Failed to subscribe to topic %q: %v", topic, err)
		}

		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-messages:
					if !ok {
						return
					}
					mc.mutex.Lock()
					mc.messages[topic] = append(mc.messages[topic], msg)
					mc.mutex.Unlock()
					msg.Ack()
				case <-subCtx.Done():
					return
				}
			}
		}(topic, msgCh)
	}

	t.Cleanup(func() {
		cancel()
		waitCh := make(chan struct{})
		go func() {
			wg.Wait()
			close(waitCh)
		}()
		select {
		case <-waitCh:
		case <-time.After(5 * time.Second):
			t.Log("WARNING: subscriber goroutines did not finish within timeout")
		}
	})

	return mc
}

// GetMessages returns captured messages for a specific topic
func (mc *MessageCapture) GetMessages(topic string) []*message.Message {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	msgs := make([]*message.Message, len(mc.messages[topic]))
	copy(msgs, mc.messages[topic])
	return msgs
}

// WaitForMessages waits for at least count messages on topic and returns them.
func (mc *MessageCapture) WaitForMessages(t *testing.T, topic string, count int, timeout time.Duration) []*message.Message {
	t.Helper()

	var msgs []*message.Message
	err := WaitFor(timeout, 50*time.Millisecond, func() error {
		msgs = mc.GetMessages(topic)
		if len(msgs) < count {
			return fmt.Errorf("have %d of %d messages", len(msgs), count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Timed out waiting for %d messages on %q: %v", count, topic, err)
	}
	return msgs
}

// PublishPayload marshals payload and publishes it on topic with a fresh
// correlation id. The published message is returned for correlation checks.
func PublishPayload(t *testing.T, bus eventbus.EventBus, topic string, payload any, metadata map[string]string) *message.Message {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	msg := message.NewMessage(uuid.New().String(), body)
	msg.Metadata.Set(middleware.CorrelationIDMetadataKey, uuid.New().String())
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}

	if err := bus.Publish(topic, msg); err != nil {
		t.Fatalf("Failed to publish to %q: %v", topic, err)
	}
	return msg
}

// Decode unmarshals the JSON payload of msg into T.
func Decode[T any](t *testing.T, msg *message.Message) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	return out
}

// WaitFor repeatedly calls a check function until it returns nil or a timeout occurs.
func WaitFor(timeout, interval time.Duration, check func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Check one last time before returning timeout error
			err := check()
			if err == nil {
				return nil
			}
			return fmt.Errorf("timed out waiting: %w", err)
		case <-ticker.C:
			if err := check(); err == nil {
				return nil
			}
		}
	}
}
