package raffleservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflewallet "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/wallet"
	rafflemetrics "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/metrics"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/results"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "RaffleService"

// ErrNoTransaction is returned by writes on a service built without a database.
var ErrNoTransaction = errors.New("raffle service: no transaction runner configured")

// RaffleService implements the Service interface.
//
// Every mutating operation holds mu from validation through commit and also
// locks the raffle row, so at most one transition is in flight per database.
type RaffleService struct {
	repo        raffledb.Repository
	wallet      rafflewallet.Wallet
	coordinator Coordinator
	publisher   message.Publisher
	cfg         raffledomain.Config
	logger      *slog.Logger
	metrics     rafflemetrics.RaffleMetrics
	tracer      trace.Tracer
	db          *bun.DB
	runTx       TxRunner
	now         func() time.Time

	mu sync.Mutex
}

// TxRunner runs fn in a transaction that is rolled back when fn returns an error.
type TxRunner func(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error

// Option customizes a RaffleService.
type Option func(*RaffleService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *RaffleService) { s.now = now }
}

// WithTxRunner replaces the bun transaction runner.
func WithTxRunner(run TxRunner) Option {
	return func(s *RaffleService) { s.runTx = run }
}

// NewRaffleService creates a new RaffleService. cfg must be valid. Without db
// or WithTxRunner the service can only serve reads.
func NewRaffleService(
	repo raffledb.Repository,
	wallet rafflewallet.Wallet,
	coordinator Coordinator,
	publisher message.Publisher,
	cfg raffledomain.Config,
	logger *slog.Logger,
	metrics rafflemetrics.RaffleMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	opts ...Option,
) (*RaffleService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = rafflemetrics.NewNoop()
	}

	s := &RaffleService{
		repo:        repo,
		wallet:      wallet,
		coordinator: coordinator,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		db:          db,
		now:         time.Now,
	}
	if db != nil {
		s.runTx = bunTxRunner(db)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func bunTxRunner(db *bun.DB) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
		return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
	}
}

var _ Service = (*RaffleService)(nil)

// Initialize stores the configuration on first start and verifies it on every later one.
func (s *RaffleService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	initTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[bool, error], error) {
		return s.initializeLogic(ctx, db)
	}

	result, err := withTelemetry(s, ctx, "Initialize", s.cfg.Oracle, func(ctx context.Context) (results.OperationResult[bool, error], error) {
		return runInTx(s, ctx, initTx)
	})
	if err != nil {
		return err
	}
	if result.IsFailure() {
		return *result.Failure
	}
	return nil
}

func (s *RaffleService) initializeLogic(ctx context.Context, db bun.IDB) (results.OperationResult[bool, error], error) {
	stored, err := s.repo.GetConfig(ctx, db)
	if errors.Is(err, raffledb.ErrNotFound) {
		err = s.repo.Initialize(ctx, db, s.cfg, raffledomain.NewRound(s.now().UTC()))
		if err == nil {
			s.logger.InfoContext(ctx, "Raffle initialized",
				attr.String("entrance_fee", s.cfg.EntranceFee.Dec()),
				attr.Duration("interval", s.cfg.Interval),
			)
			return results.SuccessResult[bool, error](true), nil
		}
		if !errors.Is(err, raffledb.ErrAlreadyInitialized) {
			return results.OperationResult[bool, error]{}, err
		}
		// another instance won the race; compare against what it stored
		stored, err = s.repo.GetConfig(ctx, db)
	}
	if err != nil {
		return results.OperationResult[bool, error]{}, fmt.Errorf("failed to load raffle config: %w", err)
	}

	if !stored.Equal(s.cfg) {
		return results.FailureResult[bool, error](fmt.Errorf("%w: stored entrance fee %s interval %s oracle %q",
			raffledomain.ErrConfigMismatch, stored.EntranceFee.Dec(), stored.Interval, stored.Oracle)), nil
	}
	return results.SuccessResult[bool, error](false), nil
}

// Enter admits participant for amount.
func (s *RaffleService) Enter(ctx context.Context, participant common.Address, amount *uint256.Int) (*EnterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var players int
	enterTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*EnterResult, error], error) {
		return s.enterLogic(ctx, db, participant, amount, &players)
	}

	result, err := withTelemetry(s, ctx, "Enter", participant.Hex(), func(ctx context.Context) (results.OperationResult[*EnterResult, error], error) {
		return runInTx(s, ctx, enterTx)
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return nil, *result.Failure
	}

	entered := *result.Success
	s.metrics.SetPlayers(ctx, players)
	s.publish(ctx, raffleevents.EnteredV1, &raffleevents.EnteredPayloadV1{
		Participant: participant,
		Round:       entered.Round,
		Slot:        entered.Slot,
		Amount:      new(uint256.Int).Set(amount),
	})
	return entered, nil
}

func (s *RaffleService) enterLogic(ctx context.Context, db bun.IDB, participant common.Address, amount *uint256.Int, players *int) (results.OperationResult[*EnterResult, error], error) {
	round, err := s.repo.GetRound(ctx, db, true)
	if err != nil {
		return results.OperationResult[*EnterResult, error]{}, fmt.Errorf("failed to load round: %w", err)
	}

	slot, err := round.Enter(s.cfg, participant, amount)
	if err != nil {
		return results.FailureResult[*EnterResult, error](err), nil
	}

	if err := s.wallet.Withdraw(ctx, db, participant, amount); err != nil {
		if errors.Is(err, rafflewallet.ErrInsufficientFunds) || errors.Is(err, rafflewallet.ErrAccountFrozen) {
			return results.FailureResult[*EnterResult, error](err), nil
		}
		return results.OperationResult[*EnterResult, error]{}, fmt.Errorf("failed to collect entrance fee: %w", err)
	}

	if err := s.repo.AppendEntry(ctx, db, round.Number, slot, participant, amount); err != nil {
		return results.OperationResult[*EnterResult, error]{}, err
	}
	if err := s.repo.UpdateRound(ctx, db, round); err != nil {
		return results.OperationResult[*EnterResult, error]{}, err
	}

	*players = len(round.Entries)
	return results.SuccessResult[*EnterResult, error](&EnterResult{Round: round.Number, Slot: slot}), nil
}

// CheckUpkeep reports whether PerformUpkeep would close the round now. The
// returned payload is always empty.
func (s *RaffleService) CheckUpkeep(ctx context.Context) (bool, []byte, error) {
	result, err := withTelemetry(s, ctx, "CheckUpkeep", "", func(ctx context.Context) (results.OperationResult[bool, error], error) {
		round, err := s.repo.GetRound(ctx, s.idb(), false)
		if err != nil {
			return results.OperationResult[bool, error]{}, fmt.Errorf("failed to load round: %w", err)
		}
		return results.SuccessResult[bool, error](round.CheckUpkeep(s.now(), s.cfg.Interval)), nil
	})
	if err != nil {
		return false, nil, err
	}
	return *result.Success, []byte{}, nil
}

// PerformUpkeep closes the round and requests randomness. performData is ignored.
func (s *RaffleService) PerformUpkeep(ctx context.Context, performData []byte) (raffledomain.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var roundNumber uint64
	performTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[raffledomain.RequestID, error], error) {
		return s.performUpkeepLogic(ctx, db, &roundNumber)
	}

	result, err := withTelemetry(s, ctx, "PerformUpkeep", "", func(ctx context.Context) (results.OperationResult[raffledomain.RequestID, error], error) {
		return runInTx(s, ctx, performTx)
	})
	if err != nil {
		return "", err
	}
	if result.IsFailure() {
		return "", *result.Failure
	}

	requestID := *result.Success
	s.metrics.SetState(ctx, uint8(raffledomain.StateCalculating))
	s.publish(ctx, raffleevents.RandomnessRequestedV1, &raffleevents.RandomnessRequestedPayloadV1{
		RequestID: string(requestID),
		Round:     roundNumber,
	})
	return requestID, nil
}

func (s *RaffleService) performUpkeepLogic(ctx context.Context, db bun.IDB, roundNumber *uint64) (results.OperationResult[raffledomain.RequestID, error], error) {
	round, err := s.repo.GetRound(ctx, db, true)
	if err != nil {
		return results.OperationResult[raffledomain.RequestID, error]{}, fmt.Errorf("failed to load round: %w", err)
	}

	if err := round.BeginCalculating(s.now(), s.cfg.Interval); err != nil {
		return results.FailureResult[raffledomain.RequestID, error](err), nil
	}

	requestID, err := s.coordinator.RequestRandomWords(ctx, s.cfg.Request(round.Number))
	if err != nil {
		return results.OperationResult[raffledomain.RequestID, error]{}, fmt.Errorf("failed to request random words: %w", err)
	}
	if requestID == "" {
		return results.OperationResult[raffledomain.RequestID, error]{}, errors.New("oracle returned an empty request id")
	}
	round.SetPendingRequest(requestID)

	if err := s.repo.UpdateRound(ctx, db, round); err != nil {
		return results.OperationResult[raffledomain.RequestID, error]{}, err
	}

	s.logger.InfoContext(ctx, "Randomness requested",
		attr.ExtractCorrelationID(ctx),
		attr.String("request_id", string(requestID)),
		attr.Uint64("round", round.Number),
		attr.Int("players", len(round.Entries)),
	)
	*roundNumber = round.Number
	return results.SuccessResult[raffledomain.RequestID, error](requestID), nil
}

// FulfillRandomWords picks the winner of the pending round and pays out the
// whole balance. Bookkeeping is written before the payout inside one
// transaction; a failed payout rolls everything back and returns ErrTransferFailed.
func (s *RaffleService) FulfillRandomWords(ctx context.Context, caller string, requestID raffledomain.RequestID, words []*uint256.Int) (*raffledomain.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fulfillTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*raffledomain.Payout, error], error) {
		return s.fulfillLogic(ctx, db, requestID, words)
	}

	result, err := withTelemetry(s, ctx, "FulfillRandomWords", string(requestID), func(ctx context.Context) (results.OperationResult[*raffledomain.Payout, error], error) {
		if caller != s.cfg.Oracle {
			return results.FailureResult[*raffledomain.Payout, error](raffledomain.ErrUnauthorizedOracle), nil
		}
		return runInTx(s, ctx, fulfillTx)
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return nil, *result.Failure
	}

	payout := *result.Success
	s.metrics.SetPlayers(ctx, 0)
	s.metrics.SetState(ctx, uint8(raffledomain.StateOpen))
	s.metrics.RecordPayout(ctx, payout.Amount)
	s.publish(ctx, raffleevents.WinnerPickedV1, &raffleevents.WinnerPickedPayloadV1{
		Winner:    payout.Winner,
		Round:     payout.Round,
		Index:     payout.Index,
		Payout:    payout.Amount,
		RequestID: string(payout.RequestID),
	})
	return payout, nil
}

func (s *RaffleService) fulfillLogic(ctx context.Context, db bun.IDB, requestID raffledomain.RequestID, words []*uint256.Int) (results.OperationResult[*raffledomain.Payout, error], error) {
	round, err := s.repo.GetRound(ctx, db, true)
	if err != nil {
		return results.OperationResult[*raffledomain.Payout, error]{}, fmt.Errorf("failed to load round: %w", err)
	}

	payout, err := round.Complete(s.now(), requestID, words)
	if err != nil {
		return results.FailureResult[*raffledomain.Payout, error](err), nil
	}

	if err := s.repo.UpdateRound(ctx, db, round); err != nil {
		return results.OperationResult[*raffledomain.Payout, error]{}, err
	}
	if err := s.repo.ClearEntries(ctx, db, payout.Round); err != nil {
		return results.OperationResult[*raffledomain.Payout, error]{}, err
	}
	if err := s.repo.InsertWinner(ctx, db, payout); err != nil {
		return results.OperationResult[*raffledomain.Payout, error]{}, err
	}

	// the payout is the last step so that a failure rolls back all of the above
	if err := s.wallet.Deposit(ctx, db, payout.Winner, payout.Amount); err != nil {
		return results.OperationResult[*raffledomain.Payout, error]{}, fmt.Errorf("%w: %w", raffledomain.ErrTransferFailed, err)
	}

	s.logger.InfoContext(ctx, "Winner picked",
		attr.ExtractCorrelationID(ctx),
		attr.String("winner", payout.Winner.Hex()),
		attr.Int("index", payout.Index),
		attr.Uint64("round", payout.Round),
		attr.String("payout", payout.Amount.Dec()),
	)
	return results.SuccessResult[*raffledomain.Payout, error](&payout), nil
}

// publish emits a notification. Notifications carry no behavioral contract,
// so failures are logged and not returned.
func (s *RaffleService) publish(ctx context.Context, topic string, payload any) {
	if s.publisher == nil {
		return
	}
	msg, err := handlerwrapper.NewMessage(ctx, topic, payload)
	if err == nil {
		err = s.publisher.Publish(topic, msg)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish notification",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}

// idb returns the service's database handle, or an untyped nil when there is none.
func (s *RaffleService) idb() bun.IDB {
	if s.db == nil {
		return nil
	}
	return s.db
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *RaffleService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		return result, nil
	}

	s.logger.InfoContext(ctx, "Operation completed successfully",
		attr.ExtractCorrelationID(ctx),
		attr.String("operation", operationName),
		attr.String("identifier", identifier),
	)
	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *RaffleService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.runTx == nil {
		return results.OperationResult[S, F]{}, ErrNoTransaction
	}

	var result results.OperationResult[S, F]
	err := s.runTx(ctx, func(ctx context.Context, db bun.IDB) error {
		var txErr error
		result, txErr = fn(ctx, db)
		return txErr
	})
	if err != nil {
		return results.OperationResult[S, F]{}, err
	}
	return result, nil
}
