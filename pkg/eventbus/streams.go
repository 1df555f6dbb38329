package eventbus

import (
	"context"
	"fmt"
)

// Streams maps every JetStream stream the service relies on to its subjects.
var Streams = map[string][]string{
	"raffle": {"raffle.>"},
	"oracle": {"oracle.>"},
}

// InitializeStreams provisions every stream in Streams.
func InitializeStreams(ctx context.Context, bus EventBus) error {
	for name, subjects := range Streams {
		if err := bus.CreateStream(ctx, name, subjects...); err != nil {
			return fmt.Errorf("failed to initialize stream %s: %w", name, err)
		}
	}
	return nil
}
