package raffleservice

import (
	"context"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Service is the raffle's inbound port, used by the NATS handlers, the HTTP
// API and the upkeep job.
type Service interface {
	// Initialize stores the configuration on first start and verifies it on every later one.
	Initialize(ctx context.Context) error

	// Enter admits participant for amount.
	Enter(ctx context.Context, participant common.Address, amount *uint256.Int) (*EnterResult, error)
	// CheckUpkeep reports whether PerformUpkeep would close the round now.
	CheckUpkeep(ctx context.Context) (bool, []byte, error)
	// PerformUpkeep closes the round and requests randomness. performData is ignored.
	PerformUpkeep(ctx context.Context, performData []byte) (raffledomain.RequestID, error)
	// FulfillRandomWords picks the winner for requestID. caller is the verified
	// identity of whoever delivered the words.
	FulfillRandomWords(ctx context.Context, caller string, requestID raffledomain.RequestID, words []*uint256.Int) (*raffledomain.Payout, error)

	EntranceFee() *uint256.Int
	Interval() time.Duration
	NumWords() uint32
	RequestConfirmations() uint16
	RaffleState(ctx context.Context) (raffledomain.State, error)
	Player(ctx context.Context, index int) (common.Address, error)
	RecentWinner(ctx context.Context) (common.Address, error)
	NumberOfPlayers(ctx context.Context) (int, error)
	LastTimestamp(ctx context.Context) (time.Time, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
	Winners(ctx context.Context, limit int) ([]raffledomain.Payout, error)
}

// Coordinator issues randomness requests to the oracle.
type Coordinator interface {
	RequestRandomWords(ctx context.Context, req raffledomain.RandomWordsRequest) (raffledomain.RequestID, error)
}

// EnterResult describes an accepted entry.
type EnterResult struct {
	Round uint64
	Slot  int
}

// Snapshot is a consistent read of the live round.
type Snapshot struct {
	Round          uint64
	State          raffledomain.State
	Players        []common.Address
	Balance        *uint256.Int
	LastTimestamp  time.Time
	RecentWinner   common.Address
	PendingRequest raffledomain.RequestID
	UpkeepNeeded   bool
	Config         raffledomain.Config
}
