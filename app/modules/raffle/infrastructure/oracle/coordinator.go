// Package raffleoracle connects the raffle to its randomness oracle: outbound
// requests over NATS or HTTP and verification of signed inbound messages.
package raffleoracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

var (
	ErrMissingSignature    = errors.New("oracle: message is not signed")
	ErrInvalidSignature    = errors.New("oracle: message signature does not verify")
	ErrParticipantMismatch = errors.New("oracle: participant is not bound to the signing key")
	ErrEmptyRequestID      = errors.New("oracle: empty request id")
)

// NATSCoordinator publishes randomness requests to the oracle over NATS. The
// request id is generated locally and travels with the request.
type NATSCoordinator struct {
	publisher     message.Publisher
	callbackTopic string
	logger        *slog.Logger
	newID         func() string
}

func NewNATSCoordinator(publisher message.Publisher, logger *slog.Logger) *NATSCoordinator {
	return &NATSCoordinator{
		publisher:     publisher,
		callbackTopic: raffleevents.RandomnessFulfilledV1,
		logger:        logger,
		newID:         uuid.NewString,
	}
}

func (c *NATSCoordinator) RequestRandomWords(ctx context.Context, req raffledomain.RandomWordsRequest) (raffledomain.RequestID, error) {
	id := c.newID()
	payload := &raffleevents.OracleRandomnessRequestPayloadV1{
		RequestID:            id,
		KeyHash:              req.KeyHash,
		SubscriptionID:       req.SubscriptionID,
		RequestConfirmations: req.RequestConfirmations,
		CallbackGasLimit:     req.CallbackGasLimit,
		NumWords:             req.NumWords,
		Round:                req.Round,
		CallbackTopic:        c.callbackTopic,
	}

	msg, err := handlerwrapper.NewMessage(ctx, raffleevents.OracleRandomnessRequestV1, payload)
	if err != nil {
		return "", err
	}
	if err := c.publisher.Publish(raffleevents.OracleRandomnessRequestV1, msg); err != nil {
		return "", fmt.Errorf("failed to publish randomness request: %w", err)
	}

	c.logger.InfoContext(ctx, "Randomness request published",
		attr.ExtractCorrelationID(ctx),
		attr.String("request_id", id),
		attr.Uint64("round", req.Round),
	)
	return raffledomain.RequestID(id), nil
}
