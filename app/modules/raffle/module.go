package raffle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	rafflehandlers "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/handlers"
	raffleoracle "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/oracle"
	rafflequeue "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/queue"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflerouter "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/router"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	rafflemetrics "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/metrics"
	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/jwt"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

// Module represents the raffle module.
type Module struct {
	RaffleService raffleservice.Service
	RaffleRouter  *rafflerouter.RaffleRouter
	QueueService  rafflequeue.QueueService
	cancelFunc    context.CancelFunc
	observability *observability.Observability
}

// NewRaffleModule creates and initializes a new raffle module. httpRouter may be
// nil, in which case no HTTP routes are mounted.
func NewRaffleModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	httpRouter chi.Router,
	db *bun.DB,
	routerCtx context.Context,
) (*Module, error) {
	logger := obs.Logger
	tracer := obs.Tracer

	logger.InfoContext(ctx, "raffle.NewRaffleModule initializing")

	raffleCfg, err := cfg.RaffleDomainConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid raffle configuration: %w", err)
	}

	// 1. Initialize Repository and Wallet
	repo := raffledb.NewRepository(db)
	wallet := rafflewallet.NewLedger(db)

	// 2. Initialize Metrics
	metrics := rafflemetrics.NewPrometheus(obs.Registry)

	// 3. Initialize the randomness coordinator
	var coordinator raffleservice.Coordinator
	switch cfg.Oracle.Transport {
	case config.OracleTransportNATS:
		coordinator = raffleoracle.NewNATSCoordinator(eventBus, logger)
	case config.OracleTransportHTTP:
		coordinator = raffleoracle.NewHTTPCoordinator(raffleoracle.HTTPConfig{
			Endpoint:     cfg.Oracle.Endpoint,
			CallbackURL:  cfg.Oracle.CallbackURL,
			TokenURL:     cfg.Oracle.TokenURL,
			ClientID:     cfg.Oracle.ClientID,
			ClientSecret: cfg.Oracle.ClientSecret,
			Scopes:       cfg.Oracle.Scopes,
			Timeout:      cfg.Oracle.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown oracle transport %q", cfg.Oracle.Transport)
	}

	// 4. Initialize Service
	service, err := raffleservice.NewRaffleService(repo, wallet, coordinator, eventBus, raffleCfg, logger, metrics, tracer, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create raffle service: %w", err)
	}
	if err := service.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize raffle: %w", err)
	}

	// 5. Initialize Handlers and Router
	handlers := rafflehandlers.NewRaffleHandlers(service, raffleoracle.NewSignatureVerifier(), logger, tracer)

	raffleRouter := rafflerouter.NewRaffleRouter(
		logger,
		router,
		eventBus,
		eventBus,
		metrics,
		tracer,
	)
	if err := raffleRouter.Configure(routerCtx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure raffle router: %w", err)
	}

	// 6. Mount HTTP routes
	if httpRouter != nil {
		if cfg.JWT.Secret == "" {
			return nil, errors.New("jwt secret is required when the HTTP API is enabled")
		}
		tokens := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer)
		limiter := rafflehandlers.NewIPRateLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst)
		rafflehandlers.NewHTTPHandlers(service, tokens, logger, tracer).Mount(httpRouter, limiter)
	}

	module := &Module{
		RaffleService: service,
		RaffleRouter:  raffleRouter,
		observability: obs,
	}

	// 7. Initialize the periodic upkeep trigger
	if cfg.Upkeep.Enabled {
		queueService, err := rafflequeue.NewService(ctx, db, logger, cfg.Postgres.DSN, cfg.Upkeep.PollInterval, metrics, service)
		if err != nil {
			return nil, fmt.Errorf("failed to create upkeep queue: %w", err)
		}
		module.QueueService = queueService
	}

	return module, nil
}

// Run starts the raffle module.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Logger
	logger.InfoContext(ctx, "Starting raffle module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.QueueService != nil {
		if err := m.QueueService.Start(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to start upkeep queue", attr.Error(err))
		}
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Raffle module goroutine stopped")
}

// Close shuts down the raffle module.
func (m *Module) Close() error {
	logger := m.observability.Logger
	logger.Info("Stopping raffle module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var errs []error
	if m.QueueService != nil {
		if err := m.QueueService.Stop(context.Background()); err != nil {
			logger.Error("Error stopping upkeep queue", attr.Error(err))
			errs = append(errs, fmt.Errorf("error stopping upkeep queue: %w", err))
		}
	}

	if m.RaffleRouter != nil {
		if err := m.RaffleRouter.Close(); err != nil {
			logger.Error("Error closing RaffleRouter from module", attr.Error(err))
			errs = append(errs, fmt.Errorf("error closing RaffleRouter: %w", err))
		}
	}

	logger.Info("Raffle module stopped")
	return errors.Join(errs...)
}
