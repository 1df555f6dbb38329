package testutils

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"

	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/db/bundb"
	"github.com/Black-And-White-Club/frolf-raffle/integration_tests/containers"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/eventbus"
)

// TestEnvironment holds all resources needed for integration testing
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer testcontainers.Container
	DB            *bun.DB
	NatsConn      *nats.Conn
	JetStream     jetstream.JetStream
	Config        *config.Config
}

// NewTestEnvironment starts Postgres and NATS containers and migrates the schema.
func NewTestEnvironment(t *testing.T) (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())

	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
	}

	if err := env.setupContainers(ctx); err != nil {
		env.Cleanup()
		return nil, err
	}
	return env, nil
}

func (env *TestEnvironment) setupContainers(ctx context.Context) error {
	pgContainer, pgConnStr, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup postgres container: %w", err)
	}
	env.PgContainer = pgContainer

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup nats container: %w", err)
	}
	env.NatsContainer = natsContainer

	env.Config = &config.Config{
		Postgres: config.PostgresConfig{DSN: pgConnStr},
		NATS:     config.NATSConfig{URL: natsURL},
	}

	db, err := bundb.NewBunDB(ctx, env.Config.Postgres)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	env.DB = db

	if err := bundb.MigrateUp(ctx, db, pgConnStr, DiscardLogger()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	natsConn, err := nats.Connect(natsURL, nats.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	env.NatsConn = natsConn

	js, err := jetstream.New(natsConn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	env.JetStream = js

	return nil
}

// NewEventBus connects a fresh event bus whose durable consumers are named
// after prefix, so parallel subscribers in one test do not share a queue.
func (env *TestEnvironment) NewEventBus(t *testing.T, prefix string) eventbus.EventBus {
	t.Helper()

	bus, err := eventbus.NewEventBus(env.Ctx, eventbus.Config{
		URL:           env.Config.NATS.URL,
		Name:          prefix,
		DurablePrefix: prefix,
		AckWait:       5 * time.Second,
	}, DiscardLogger())
	if err != nil {
		t.Fatalf("Failed to create EventBus: %v", err)
	}
	if err := eventbus.InitializeStreams(env.Ctx, bus); err != nil {
		_ = bus.Close()
		t.Fatalf("Failed to create streams: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

// Reset clears every raffle table and purges the JetStream streams.
func (env *TestEnvironment) Reset(ctx context.Context) error {
	if err := CleanupDatabase(ctx, env.DB); err != nil {
		return err
	}
	streams := make([]string, 0, len(eventbus.Streams))
	for name := range eventbus.Streams {
		streams = append(streams, name)
	}
	return env.ResetJetStreamState(ctx, streams...)
}

// Cleanup tears down all resources created for testing
func (env *TestEnvironment) Cleanup() {
	if env.CancelContext != nil {
		env.CancelContext()
	}
	if env.NatsConn != nil {
		env.NatsConn.Close()
	}
	if env.DB != nil {
		env.DB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if env.NatsContainer != nil {
		if err := env.NatsContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating NATS container: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating Postgres container: %v", err)
		}
	}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
