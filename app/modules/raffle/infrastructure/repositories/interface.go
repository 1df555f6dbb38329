package raffledb

import (
	"context"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/uptrace/bun"
)

// Repository defines the contract for raffle persistence.
type Repository interface {
	// GetConfig returns the configuration the raffle was created with.
	GetConfig(ctx context.Context, db bun.IDB) (*raffledomain.Config, error)

	// Initialize stores the configuration and the first round.
	Initialize(ctx context.Context, db bun.IDB, cfg raffledomain.Config, round *raffledomain.Round) error

	// GetRound loads the live round with its ledger. forUpdate locks the row
	// until the surrounding transaction ends.
	GetRound(ctx context.Context, db bun.IDB, forUpdate bool) (*raffledomain.Round, error)

	// UpdateRound persists the round header (state, balance, timestamps, winner).
	UpdateRound(ctx context.Context, db bun.IDB, round *raffledomain.Round) error

	// AppendEntry stores one ledger slot.
	AppendEntry(ctx context.Context, db bun.IDB, roundNumber uint64, slot int, participant common.Address, amount *uint256.Int) error

	// ClearEntries deletes the ledger of a round.
	ClearEntries(ctx context.Context, db bun.IDB, roundNumber uint64) error

	// InsertWinner records a completed draw.
	InsertWinner(ctx context.Context, db bun.IDB, payout raffledomain.Payout) error

	// ListWinners returns the most recent draws, newest first.
	ListWinners(ctx context.Context, db bun.IDB, limit int) ([]raffledomain.Payout, error)
}
