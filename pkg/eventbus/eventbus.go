// Package eventbus wraps watermill's NATS JetStream publisher and subscriber.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventBus publishes and subscribes raffle messages.
type EventBus interface {
	message.Publisher
	message.Subscriber
	// CreateStream makes sure a JetStream stream exists that captures subjects.
	CreateStream(ctx context.Context, streamName string, subjects ...string) error
	// Conn returns the underlying NATS connection.
	Conn() *nc.Conn
}

// Config configures the NATS connection.
type Config struct {
	URL           string
	Name          string
	DurablePrefix string
	AckWait       time.Duration
	CredsFile     string
}

type eventBus struct {
	publisher      message.Publisher
	subscriber     message.Subscriber
	js             jetstream.JetStream
	natsConn       *nc.Conn
	logger         *slog.Logger
	createdStreams map[string]bool
	streamMutex    sync.Mutex
}

// NewEventBus connects to NATS and builds a JetStream-backed publisher and subscriber.
func NewEventBus(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	if cfg.AckWait == 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.DurablePrefix == "" {
		cfg.DurablePrefix = "raffle"
	}

	options := []nc.Option{
		nc.Name(cfg.Name),
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(time.Second),
	}
	if cfg.CredsFile != "" {
		options = append(options, nc.UserCredentials(cfg.CredsFile))
	}

	natsConn, err := nc.Connect(cfg.URL, options...)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to NATS", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	watermillLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         cfg.URL,
			NatsOptions: options,
			Marshaler:   marshaler,
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
				TrackMsgId:    true,
			},
			SubjectCalculator: wmnats.DefaultSubjectCalculator,
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:              cfg.URL,
			QueueGroupPrefix: cfg.DurablePrefix,
			CloseTimeout:     30 * time.Second,
			AckWaitTimeout:   cfg.AckWait,
			NatsOptions:      options,
			Unmarshaler:      marshaler,
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
				DurablePrefix: cfg.DurablePrefix,
				SubscribeOptions: []nc.SubOpt{
					nc.DeliverAll(),
					nc.AckExplicit(),
				},
			},
			SubjectCalculator: wmnats.DefaultSubjectCalculator,
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	return &eventBus{
		publisher:      publisher,
		subscriber:     subscriber,
		js:             js,
		natsConn:       natsConn,
		logger:         logger,
		createdStreams: make(map[string]bool),
	}, nil
}

// Publish sends every message to the subject named in its topic metadata,
// falling back to topic when the metadata is empty.
func (eb *eventBus) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.UUID == "" {
			msg.UUID = watermill.NewUUID()
		}
		subject := msg.Metadata.Get(handlerwrapper.TopicMetadataKey)
		if subject == "" {
			subject = topic
		}
		if subject == "" {
			return errors.New("message has no topic")
		}

		if err := eb.publisher.Publish(subject, msg); err != nil {
			eb.logger.Error("Failed to publish message",
				slog.String("subject", subject),
				slog.String("message_id", msg.UUID),
				slog.Any("error", err),
			)
			return fmt.Errorf("failed to publish to %s: %w", subject, err)
		}

		eb.logger.Debug("Message published",
			slog.String("subject", subject),
			slog.String("message_id", msg.UUID),
		)
	}
	return nil
}

func (eb *eventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	eb.logger.InfoContext(ctx, "Subscribing to subject", slog.String("subject", topic))
	messages, err := eb.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %s: %w", topic, err)
	}
	return messages, nil
}

func (eb *eventBus) CreateStream(ctx context.Context, streamName string, subjects ...string) error {
	eb.streamMutex.Lock()
	defer eb.streamMutex.Unlock()

	if eb.createdStreams[streamName] {
		return nil
	}

	stream, err := eb.js.Stream(ctx, streamName)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := eb.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:      streamName,
			Subjects:  subjects,
			Retention: jetstream.LimitsPolicy,
			Storage:   jetstream.FileStorage,
		}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
		eb.logger.InfoContext(ctx, "Stream created", slog.String("stream_name", streamName), slog.Any("subjects", subjects))
	case err != nil:
		return fmt.Errorf("failed to check if stream exists: %w", err)
	default:
		info, err := stream.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		cfg := info.Config
		updated := false
		for _, subject := range subjects {
			if !slices.Contains(cfg.Subjects, subject) {
				cfg.Subjects = append(cfg.Subjects, subject)
				updated = true
			}
		}
		if updated {
			if _, err := eb.js.UpdateStream(ctx, cfg); err != nil {
				return fmt.Errorf("failed to update stream %s: %w", streamName, err)
			}
			eb.logger.InfoContext(ctx, "Stream updated with new subjects", slog.String("stream_name", streamName))
		}
	}

	eb.createdStreams[streamName] = true
	return nil
}

func (eb *eventBus) Conn() *nc.Conn { return eb.natsConn }

// Close closes all NATS and Watermill resources.
func (eb *eventBus) Close() error {
	var errs []error
	if eb.publisher != nil {
		if err := eb.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if eb.subscriber != nil {
		if err := eb.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("subscriber: %w", err))
		}
	}
	if eb.natsConn != nil {
		eb.natsConn.Close()
	}
	return errors.Join(errs...)
}
