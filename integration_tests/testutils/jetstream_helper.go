package testutils

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nats-io/nats.go/jetstream"
)

// ResetJetStreamState purges all messages and consumers from the named streams.
func (env *TestEnvironment) ResetJetStreamState(ctx context.Context, streamNames ...string) error {
	if env.JetStream == nil {
		return fmt.Errorf("JetStream context is nil")
	}

	for _, streamName := range streamNames {
		stream, err := env.JetStream.Stream(ctx, streamName)
		if err != nil {
			if errors.Is(err, jetstream.ErrStreamNotFound) {
				continue
			}
			log.Printf("Warning: failed to access stream %s: %v", streamName, err)
			continue
		}

		if err := stream.Purge(ctx); err != nil {
			log.Printf("Warning: failed to purge stream %s: %v", streamName, err)
		}

		consumers := stream.ListConsumers(ctx)
		for ci := range consumers.Info() {
			if ci == nil {
				continue
			}
			if err := stream.DeleteConsumer(ctx, ci.Name); err != nil {
				log.Printf("Warning: failed to delete consumer %q from stream %q: %v", ci.Name, streamName, err)
			}
		}
		if err := consumers.Err(); err != nil {
			log.Printf("Warning: listing consumers for stream %q: %v", streamName, err)
		}
	}

	return nil
}
