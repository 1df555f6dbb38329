package handlerwrapper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type pingPayload struct {
	Value string `json:"value"`
}

func TestWrapTransformingTyped(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := slog.Default()

	tests := []struct {
		name        string
		payload     []byte
		handler     func(context.Context, *pingPayload) ([]Result, error)
		wantErr     bool
		wantTopics  []string
		wantReplyTo string
	}{
		{
			name:    "decodes payload and emits results",
			payload: []byte(`{"value":"hi"}`),
			handler: func(ctx context.Context, p *pingPayload) ([]Result, error) {
				return []Result{{Topic: "pong", Payload: p, Metadata: map[string]string{"k": "v"}}}, nil
			},
			wantTopics: []string{"pong"},
		},
		{
			name:    "invalid payload is acked without calling handler",
			payload: []byte(`{not json`),
			handler: func(ctx context.Context, p *pingPayload) ([]Result, error) {
				t.Fatal("handler must not be called")
				return nil, nil
			},
		},
		{
			name:    "handler error nacks",
			payload: []byte(`{"value":"hi"}`),
			handler: func(ctx context.Context, p *pingPayload) ([]Result, error) {
				return nil, errors.New("boom")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message.NewMessage("msg-1", tt.payload)
			middleware.SetCorrelationID("corr-1", msg)

			h := WrapTransformingTyped("test.handler", logger, tracer, nil, tt.handler)
			out, err := h(msg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, out, len(tt.wantTopics))
			for i, topic := range tt.wantTopics {
				assert.Equal(t, topic, out[i].Metadata.Get(TopicMetadataKey))
				assert.Equal(t, "corr-1", middleware.MessageCorrelationID(out[i]))
				assert.Equal(t, "v", out[i].Metadata.Get("k"))

				var decoded pingPayload
				require.NoError(t, json.Unmarshal(out[i].Payload, &decoded))
				assert.Equal(t, "hi", decoded.Value)
			}
		})
	}
}

func TestWrapTransformingTyped_PropagatesContext(t *testing.T) {
	msg := message.NewMessage("msg-2", []byte(`{"value":"x"}`))
	msg.Metadata.Set("reply_to", "_INBOX.1")

	var gotReplyTo, gotCorrelation string
	h := WrapTransformingTyped("ctx.handler", slog.Default(), nil, nil, func(ctx context.Context, p *pingPayload) ([]Result, error) {
		gotReplyTo, _ = ctx.Value(CtxKeyReplyTo).(string)
		gotCorrelation = attr.CorrelationID(ctx)
		return nil, nil
	})

	_, err := h(msg)
	require.NoError(t, err)
	assert.Equal(t, "_INBOX.1", gotReplyTo)
	assert.Equal(t, "msg-2", gotCorrelation, "message uuid is the fallback correlation id")
}

func TestNewMessage(t *testing.T) {
	ctx := attr.WithCorrelationID(context.Background(), "corr-9")
	msg, err := NewMessage(ctx, "raffle.entered.v1", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "raffle.entered.v1", msg.Metadata.Get(TopicMetadataKey))
	assert.Equal(t, "corr-9", middleware.MessageCorrelationID(msg))
	assert.JSONEq(t, `{"n":1}`, string(msg.Payload))

	_, err = NewMessage(ctx, "bad", make(chan int))
	assert.Error(t, err)
}
