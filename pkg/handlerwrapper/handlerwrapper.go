// Package handlerwrapper adapts typed handlers to watermill's message.HandlerFunc.
package handlerwrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// CtxKeyReplyTo carries the reply subject of a request message, when present.
const CtxKeyReplyTo contextKey = "reply_to"

// CtxKeyMetadata carries the inbound message metadata.
const CtxKeyMetadata contextKey = "metadata"

// TopicMetadataKey is the metadata key the event bus reads the target subject from.
const TopicMetadataKey = "topic"

// Result is one outbound message produced by a handler.
type Result struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// ReturningMetrics records handler outcomes. Nil is allowed.
type ReturningMetrics interface {
	RecordHandlerAttempt(ctx context.Context, handlerName string)
	RecordHandlerSuccess(ctx context.Context, handlerName string)
	RecordHandlerFailure(ctx context.Context, handlerName string)
	RecordHandlerDuration(ctx context.Context, handlerName string, duration time.Duration)
}

// WrapTransformingTyped decodes the JSON payload into T, runs handler and turns its
// results into outbound messages that keep the inbound correlation id.
// Undecodable payloads are logged and acked; handler errors nack the message.
func WrapTransformingTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	metrics ReturningMetrics,
	handler func(context.Context, *T) ([]Result, error),
) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := msg.Context()

		correlationID := middleware.MessageCorrelationID(msg)
		if correlationID == "" {
			correlationID = msg.UUID
		}
		ctx = attr.WithCorrelationID(ctx, correlationID)
		if replyTo := msg.Metadata.Get("reply_to"); replyTo != "" {
			ctx = context.WithValue(ctx, CtxKeyReplyTo, replyTo)
		}
		ctx = context.WithValue(ctx, CtxKeyMetadata, msg.Metadata)

		var span trace.Span
		if tracer != nil {
			ctx, span = tracer.Start(ctx, handlerName, trace.WithAttributes(
				attribute.String("message.uuid", msg.UUID),
				attribute.String("correlation_id", correlationID),
			))
		} else {
			span = trace.SpanFromContext(ctx)
		}
		defer span.End()

		if metrics != nil {
			metrics.RecordHandlerAttempt(ctx, handlerName)
			start := time.Now()
			defer func() { metrics.RecordHandlerDuration(ctx, handlerName, time.Since(start)) }()
		}

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.ErrorContext(ctx, "Discarding message with undecodable payload",
				attr.ExtractCorrelationID(ctx),
				attr.String("handler", handlerName),
				attr.String("message_id", msg.UUID),
				attr.Error(err),
			)
			span.SetStatus(codes.Error, "invalid payload")
			if metrics != nil {
				metrics.RecordHandlerFailure(ctx, handlerName)
			}
			return nil, nil
		}

		results, err := handler(ctx, payload)
		if err != nil {
			logger.ErrorContext(ctx, "Handler failed",
				attr.ExtractCorrelationID(ctx),
				attr.String("handler", handlerName),
				attr.Error(err),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if metrics != nil {
				metrics.RecordHandlerFailure(ctx, handlerName)
			}
			return nil, err
		}

		out := make([]*message.Message, 0, len(results))
		for _, r := range results {
			m, err := NewMessage(ctx, r.Topic, r.Payload)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", handlerName, err)
			}
			for k, v := range r.Metadata {
				m.Metadata.Set(k, v)
			}
			out = append(out, m)
		}

		if metrics != nil {
			metrics.RecordHandlerSuccess(ctx, handlerName)
		}
		return out, nil
	}
}

// NewMessage marshals payload as JSON into a message addressed to topic and
// stamped with the correlation id from ctx.
func NewMessage(ctx context.Context, topic string, payload any) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(TopicMetadataKey, topic)

	correlationID := attr.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = msg.UUID
	}
	middleware.SetCorrelationID(correlationID, msg)
	msg.SetContext(ctx)
	return msg, nil
}
