package rafflerouter

import (
	"context"
	"log/slog"

	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	rafflehandlers "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/handlers"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// RaffleRouter handles Watermill handler registration for raffle events.
type RaffleRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber message.Subscriber
	publisher  message.Publisher
	metrics    handlerwrapper.ReturningMetrics
	tracer     trace.Tracer
}

// NewRaffleRouter creates a new RaffleRouter.
func NewRaffleRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	metrics handlerwrapper.ReturningMetrics,
	tracer trace.Tracer,
) *RaffleRouter {
	return &RaffleRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *RaffleRouter) Configure(_ context.Context, handlers rafflehandlers.Handlers) error {
	r.registerHandlers(handlers)
	return nil
}

// handlerDeps bundles dependencies for handler registration.
type handlerDeps struct {
	router     *message.Router
	subscriber message.Subscriber
	publisher  message.Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    handlerwrapper.ReturningMetrics
}

// registerHandlers wires NATS topics to handler methods.
func (r *RaffleRouter) registerHandlers(handlers rafflehandlers.Handlers) {
	deps := handlerDeps{
		router:     r.router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		metrics:    r.metrics,
	}

	r.logger.Info("Registering raffle module handlers",
		slog.String("enter_subject", raffleevents.EnterRequestedV1),
		slog.String("upkeep_subject", raffleevents.UpkeepRequestedV1),
		slog.String("fulfillment_subject", raffleevents.RandomnessFulfilledV1),
	)

	registerHandler(deps, raffleevents.EnterRequestedV1, handlers.HandleEnterRequested)
	registerHandler(deps, raffleevents.UpkeepRequestedV1, handlers.HandleUpkeepRequested)
	registerHandler(deps, raffleevents.RandomnessFulfilledV1, handlers.HandleRandomnessFulfilled)

	r.logger.Info("Raffle module handlers registered successfully")
}

// registerHandler is a generic function for type-safe Watermill handler registration.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "raffle." + topic

	deps.router.AddHandler(
		handlerName,
		topic,
		deps.subscriber,
		"",
		deps.publisher,
		handlerwrapper.WrapTransformingTyped(
			handlerName,
			deps.logger,
			deps.tracer,
			deps.metrics,
			handler,
		),
	)
}

// Close shuts down the router.
func (r *RaffleRouter) Close() error {
	return r.router.Close()
}
