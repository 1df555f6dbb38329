package rafflehandlers

import (
	"context"

	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Handlers defines the interface for raffle event handlers.
type Handlers interface {
	// HandleEnterRequested admits a participant into the open round.
	HandleEnterRequested(ctx context.Context, payload *raffleevents.EnterRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// HandleUpkeepRequested closes the round when it is eligible.
	HandleUpkeepRequested(ctx context.Context, payload *raffleevents.UpkeepRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// HandleRandomnessFulfilled delivers the oracle's random words.
	HandleRandomnessFulfilled(ctx context.Context, payload *raffleevents.RandomnessFulfilledPayloadV1) ([]handlerwrapper.Result, error)
}

// MessageVerifier authenticates signed NATS messages.
type MessageVerifier interface {
	// Verify authenticates an oracle callback and returns the caller identity.
	Verify(payload *raffleevents.RandomnessFulfilledPayloadV1, md message.Metadata) (string, error)

	// VerifyEntry authenticates an entry signed by the participant's own key.
	VerifyEntry(payload *raffleevents.EnterRequestedPayloadV1, md message.Metadata) error
}
