package rafflehandlers

import (
	"context"
	"errors"
	"log/slog"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// RaffleHandlers implements the Handlers interface.
//
// Rejections that retrying cannot fix are answered with a failure event and
// acked. Any other error is returned so that watermill redelivers the message.
type RaffleHandlers struct {
	service  raffleservice.Service
	verifier MessageVerifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewRaffleHandlers creates a new RaffleHandlers instance.
func NewRaffleHandlers(
	service raffleservice.Service,
	verifier MessageVerifier,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	return &RaffleHandlers{
		service:  service,
		verifier: verifier,
		logger:   logger,
		tracer:   tracer,
	}
}

// HandleEnterRequested handles entry requests. The entry must be signed by the
// key the participant address is derived from.
func (h *RaffleHandlers) HandleEnterRequested(ctx context.Context, payload *raffleevents.EnterRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RaffleHandlers.HandleEnterRequested")
	defer span.End()

	md, _ := ctx.Value(handlerwrapper.CtxKeyMetadata).(message.Metadata)
	if err := h.verifier.VerifyEntry(payload, md); err != nil {
		h.logger.WarnContext(ctx, "Discarding unauthenticated entry",
			attr.ExtractCorrelationID(ctx),
			attr.String("participant", payload.Participant.Hex()),
			attr.Error(err),
		)
		return enterFailed(ctx, payload, err), nil
	}

	entered, err := h.service.Enter(ctx, payload.Participant, payload.Amount)
	if err != nil {
		if isEntryRejection(err) {
			h.logger.WarnContext(ctx, "Entry rejected",
				attr.ExtractCorrelationID(ctx),
				attr.String("participant", payload.Participant.Hex()),
				attr.Error(err),
			)
			return enterFailed(ctx, payload, err), nil
		}
		return nil, err
	}

	// the entered notification is published by the service; requesters
	// that asked for a reply get a copy
	rt, ok := ctx.Value(handlerwrapper.CtxKeyReplyTo).(string)
	if !ok || rt == "" {
		return nil, nil
	}
	return []handlerwrapper.Result{{
		Topic: rt,
		Payload: &raffleevents.EnteredPayloadV1{
			Participant: payload.Participant,
			Round:       entered.Round,
			Slot:        entered.Slot,
			Amount:      payload.Amount,
		},
	}}, nil
}

// HandleUpkeepRequested handles automation triggers delivered over NATS.
func (h *RaffleHandlers) HandleUpkeepRequested(ctx context.Context, payload *raffleevents.UpkeepRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RaffleHandlers.HandleUpkeepRequested")
	defer span.End()

	requestID, err := h.service.PerformUpkeep(ctx, payload.PerformData)
	if err != nil {
		var notNeeded *raffledomain.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			h.logger.InfoContext(ctx, "Upkeep not needed",
				attr.ExtractCorrelationID(ctx),
				attr.String("balance", notNeeded.Balance.Dec()),
				attr.Int("players", notNeeded.NumPlayers),
				attr.String("state", notNeeded.State.String()),
			)
			return []handlerwrapper.Result{{
				Topic: replyTopic(ctx, raffleevents.UpkeepFailedV1),
				Payload: &raffleevents.UpkeepFailedPayloadV1{
					Reason:     err.Error(),
					Balance:    notNeeded.Balance,
					NumPlayers: notNeeded.NumPlayers,
					State:      uint8(notNeeded.State),
				},
			}}, nil
		}
		return nil, err
	}

	h.logger.InfoContext(ctx, "Upkeep performed",
		attr.ExtractCorrelationID(ctx),
		attr.String("request_id", string(requestID)),
	)
	return nil, nil
}

// HandleRandomnessFulfilled handles oracle callbacks. The callback must carry
// a valid oracle signature before it reaches the service.
func (h *RaffleHandlers) HandleRandomnessFulfilled(ctx context.Context, payload *raffleevents.RandomnessFulfilledPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RaffleHandlers.HandleRandomnessFulfilled")
	defer span.End()

	md, _ := ctx.Value(handlerwrapper.CtxKeyMetadata).(message.Metadata)
	caller, err := h.verifier.Verify(payload, md)
	if err != nil {
		h.logger.WarnContext(ctx, "Discarding unauthenticated fulfillment",
			attr.ExtractCorrelationID(ctx),
			attr.String("request_id", payload.RequestID),
			attr.Error(err),
		)
		return fulfillmentFailed(payload.RequestID, err), nil
	}

	payout, err := h.service.FulfillRandomWords(ctx, caller, raffledomain.RequestID(payload.RequestID), payload.RandomWords)
	if err != nil {
		if isFulfillmentRejection(err) {
			h.logger.WarnContext(ctx, "Fulfillment rejected",
				attr.ExtractCorrelationID(ctx),
				attr.String("request_id", payload.RequestID),
				attr.Error(err),
			)
			return fulfillmentFailed(payload.RequestID, err), nil
		}
		return nil, err
	}

	h.logger.InfoContext(ctx, "Fulfillment processed",
		attr.ExtractCorrelationID(ctx),
		attr.String("request_id", payload.RequestID),
		attr.String("winner", payout.Winner.Hex()),
	)
	return nil, nil
}

func enterFailed(ctx context.Context, payload *raffleevents.EnterRequestedPayloadV1, err error) []handlerwrapper.Result {
	return []handlerwrapper.Result{{
		Topic: replyTopic(ctx, raffleevents.EnterFailedV1),
		Payload: &raffleevents.EnterFailedPayloadV1{
			Participant: payload.Participant,
			Reason:      err.Error(),
		},
	}}
}

func fulfillmentFailed(requestID string, err error) []handlerwrapper.Result {
	return []handlerwrapper.Result{{
		Topic: raffleevents.FulfillmentFailedV1,
		Payload: &raffleevents.FulfillmentFailedPayloadV1{
			RequestID: requestID,
			Reason:    err.Error(),
		},
	}}
}

// replyTopic prefers the request's reply subject over the static topic.
func replyTopic(ctx context.Context, fallback string) string {
	if rt, ok := ctx.Value(handlerwrapper.CtxKeyReplyTo).(string); ok && rt != "" {
		return rt
	}
	return fallback
}

func isEntryRejection(err error) bool {
	return errors.Is(err, raffledomain.ErrInsufficientFee) ||
		errors.Is(err, raffledomain.ErrRoundNotOpen) ||
		errors.Is(err, raffledomain.ErrInvalidParticipant) ||
		errors.Is(err, raffledomain.ErrBalanceOverflow) ||
		errors.Is(err, rafflewallet.ErrInsufficientFunds) ||
		errors.Is(err, rafflewallet.ErrAccountFrozen)
}

// isFulfillmentRejection covers trust violations and the failed payout. A
// failed payout is not retried: the oracle delivers once.
func isFulfillmentRejection(err error) bool {
	return errors.Is(err, raffledomain.ErrUnauthorizedOracle) ||
		errors.Is(err, raffledomain.ErrUnknownRequest) ||
		errors.Is(err, raffledomain.ErrNoRandomWords) ||
		errors.Is(err, raffledomain.ErrNoEntries) ||
		errors.Is(err, raffledomain.ErrTransferFailed)
}
