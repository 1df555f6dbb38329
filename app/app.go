package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle"
	"github.com/Black-And-White-Club/frolf-raffle/config"
	"github.com/Black-And-White-Club/frolf-raffle/db/bundb"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

// App holds every long-lived resource of the raffle service.
type App struct {
	Config        *config.Config
	Observability *observability.Observability
	DB            *bun.DB
	EventBus      eventbus.EventBus
	Router        *message.Router
	HTTPServer    *http.Server
	RaffleModule  *raffle.Module

	wg sync.WaitGroup
}

// Options controls optional startup steps.
type Options struct {
	// Migrate runs River and bun migrations before the raffle is initialized.
	Migrate bool
}

// NewApp wires the raffle service from cfg. Nothing is served until Run.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	obs, err := observability.Init(ctx, config.ToObsConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	app := &App{Config: cfg, Observability: obs}

	db, err := bundb.NewBunDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db

	if opts.Migrate {
		if err := bundb.MigrateUp(ctx, db, cfg.Postgres.DSN, logger); err != nil {
			app.Close()
			return nil, err
		}
	}

	eventBus, err := eventbus.NewEventBus(ctx, eventbus.Config{
		URL:       cfg.NATS.URL,
		Name:      "frolf-raffle",
		CredsFile: cfg.NATS.CredsFile,
	}, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	app.EventBus = eventBus

	if err := eventbus.InitializeStreams(ctx, eventBus); err != nil {
		app.Close()
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: shutdownTimeout}, watermill.NewSlogLogger(logger))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create message router: %w", err)
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)
	app.Router = router

	var httpRouter chi.Router
	if cfg.HTTP.Address != "" {
		r := chi.NewRouter()
		r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
		httpRouter = r
		app.HTTPServer = &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           otelhttp.NewHandler(r, "raffle-api"),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	raffleModule, err := raffle.NewRaffleModule(ctx, cfg, obs, eventBus, router, httpRouter, db, ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize raffle module: %w", err)
	}
	app.RaffleModule = raffleModule

	return app, nil
}

// Run serves until ctx is cancelled or a server fails.
func (app *App) Run(ctx context.Context) error {
	logger := app.Observability.Logger

	app.Observability.ServeMetrics(app.Config.Observability.MetricsAddress)

	app.wg.Add(1)
	go app.RaffleModule.Run(ctx, &app.wg)

	errCh := make(chan error, 2)

	go func() {
		if err := app.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("message router stopped: %w", err)
		}
	}()

	if app.HTTPServer != nil {
		go func() {
			logger.InfoContext(ctx, "HTTP API listening", attr.String("address", app.HTTPServer.Addr))
			if err := app.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server stopped: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		return nil
	case err := <-errCh:
		logger.Error("Component failed", attr.Error(err))
		return err
	}
}

// Close releases everything NewApp acquired. It is safe on a partially built App.
func (app *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger := slog.Default()
	if app.Observability != nil {
		logger = app.Observability.Logger
	}

	var errs []error
	if app.HTTPServer != nil {
		if err := app.HTTPServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if app.RaffleModule != nil {
		if err := app.RaffleModule.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.wg.Wait()

	if app.Router != nil {
		if err := app.Router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("message router: %w", err))
		}
	}
	if app.EventBus != nil {
		if err := app.EventBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if app.Observability != nil {
		if err := app.Observability.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Error("Shutdown finished with errors", attr.Error(err))
	} else {
		logger.Info("Shutdown complete")
	}
	return err
}
