package rafflequeue

import (
	"context"
	"errors"
	"log/slog"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/Black-And-White-Club/frolf-raffle/pkg/observability/attr"
	"github.com/riverqueue/river"
)

// Upkeeper is the part of the raffle service the upkeep worker drives.
type Upkeeper interface {
	CheckUpkeep(ctx context.Context) (bool, []byte, error)
	PerformUpkeep(ctx context.Context, performData []byte) (raffledomain.RequestID, error)
}

// UpkeepWorker polls the eligibility predicate and performs upkeep when it holds.
type UpkeepWorker struct {
	river.WorkerDefaults[UpkeepJob]
	raffle Upkeeper
	logger *slog.Logger
}

func NewUpkeepWorker(logger *slog.Logger, raffle Upkeeper) *UpkeepWorker {
	return &UpkeepWorker{raffle: raffle, logger: logger}
}

func (w *UpkeepWorker) Work(ctx context.Context, job *river.Job[UpkeepJob]) error {
	needed, performData, err := w.raffle.CheckUpkeep(ctx)
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}

	requestID, err := w.raffle.PerformUpkeep(ctx, performData)
	if err != nil {
		// another trigger closed the round between check and perform
		if errors.Is(err, raffledomain.ErrUpkeepNotNeeded) {
			w.logger.InfoContext(ctx, "Upkeep already performed elsewhere", attr.Error(err))
			return nil
		}
		return err
	}

	w.logger.InfoContext(ctx, "Upkeep performed by scheduler",
		attr.String("request_id", string(requestID)),
	)
	return nil
}
