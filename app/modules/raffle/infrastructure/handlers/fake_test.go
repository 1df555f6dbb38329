package rafflehandlers

import (
	"context"
	"time"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	raffleevents "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/events"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ------------------------
// Fake Raffle Service
// ------------------------

type FakeRaffleService struct {
	trace []string

	InitializeFunc         func(ctx context.Context) error
	EnterFunc              func(ctx context.Context, participant common.Address, amount *uint256.Int) (*raffleservice.EnterResult, error)
	CheckUpkeepFunc        func(ctx context.Context) (bool, []byte, error)
	PerformUpkeepFunc      func(ctx context.Context, performData []byte) (raffledomain.RequestID, error)
	FulfillRandomWordsFunc func(ctx context.Context, caller string, requestID raffledomain.RequestID, words []*uint256.Int) (*raffledomain.Payout, error)
	PlayerFunc             func(ctx context.Context, index int) (common.Address, error)
	SnapshotFunc           func(ctx context.Context) (*raffleservice.Snapshot, error)
	WinnersFunc            func(ctx context.Context, limit int) ([]raffledomain.Payout, error)
}

func NewFakeRaffleService() *FakeRaffleService {
	return &FakeRaffleService{
		trace: []string{},
	}
}

func (f *FakeRaffleService) record(step string) {
	f.trace = append(f.trace, step)
}

// --- Service Interface Implementation ---

func (f *FakeRaffleService) Initialize(ctx context.Context) error {
	f.record("Initialize")
	if f.InitializeFunc != nil {
		return f.InitializeFunc(ctx)
	}
	return nil
}

func (f *FakeRaffleService) Enter(ctx context.Context, participant common.Address, amount *uint256.Int) (*raffleservice.EnterResult, error) {
	f.record("Enter")
	if f.EnterFunc != nil {
		return f.EnterFunc(ctx, participant, amount)
	}
	return &raffleservice.EnterResult{Round: 1}, nil
}

func (f *FakeRaffleService) CheckUpkeep(ctx context.Context) (bool, []byte, error) {
	f.record("CheckUpkeep")
	if f.CheckUpkeepFunc != nil {
		return f.CheckUpkeepFunc(ctx)
	}
	return false, []byte{}, nil
}

func (f *FakeRaffleService) PerformUpkeep(ctx context.Context, performData []byte) (raffledomain.RequestID, error) {
	f.record("PerformUpkeep")
	if f.PerformUpkeepFunc != nil {
		return f.PerformUpkeepFunc(ctx, performData)
	}
	return "req-1", nil
}

func (f *FakeRaffleService) FulfillRandomWords(ctx context.Context, caller string, requestID raffledomain.RequestID, words []*uint256.Int) (*raffledomain.Payout, error) {
	f.record("FulfillRandomWords")
	if f.FulfillRandomWordsFunc != nil {
		return f.FulfillRandomWordsFunc(ctx, caller, requestID, words)
	}
	return &raffledomain.Payout{RequestID: requestID, Amount: new(uint256.Int)}, nil
}

func (f *FakeRaffleService) EntranceFee() *uint256.Int    { return uint256.NewInt(100) }
func (f *FakeRaffleService) Interval() time.Duration      { return time.Minute }
func (f *FakeRaffleService) NumWords() uint32             { return raffledomain.NumWords }
func (f *FakeRaffleService) RequestConfirmations() uint16 { return 3 }

func (f *FakeRaffleService) RaffleState(ctx context.Context) (raffledomain.State, error) {
	f.record("RaffleState")
	return raffledomain.StateOpen, nil
}

func (f *FakeRaffleService) Player(ctx context.Context, index int) (common.Address, error) {
	f.record("Player")
	if f.PlayerFunc != nil {
		return f.PlayerFunc(ctx, index)
	}
	return common.Address{}, raffledomain.ErrPlayerIndexOutOfRange
}

func (f *FakeRaffleService) RecentWinner(ctx context.Context) (common.Address, error) {
	f.record("RecentWinner")
	return common.Address{}, nil
}

func (f *FakeRaffleService) NumberOfPlayers(ctx context.Context) (int, error) {
	f.record("NumberOfPlayers")
	return 0, nil
}

func (f *FakeRaffleService) LastTimestamp(ctx context.Context) (time.Time, error) {
	f.record("LastTimestamp")
	return time.Time{}, nil
}

func (f *FakeRaffleService) Snapshot(ctx context.Context) (*raffleservice.Snapshot, error) {
	f.record("Snapshot")
	if f.SnapshotFunc != nil {
		return f.SnapshotFunc(ctx)
	}
	return &raffleservice.Snapshot{Balance: new(uint256.Int)}, nil
}

func (f *FakeRaffleService) Winners(ctx context.Context, limit int) ([]raffledomain.Payout, error) {
	f.record("Winners")
	if f.WinnersFunc != nil {
		return f.WinnersFunc(ctx, limit)
	}
	return nil, nil
}

// --- Accessors for assertions ---

func (f *FakeRaffleService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Ensure the fake actually satisfies the interface
var _ raffleservice.Service = (*FakeRaffleService)(nil)

// ------------------------
// Fake Verifier
// ------------------------

type FakeVerifier struct {
	VerifyFunc      func(payload *raffleevents.RandomnessFulfilledPayloadV1, md message.Metadata) (string, error)
	VerifyEntryFunc func(payload *raffleevents.EnterRequestedPayloadV1, md message.Metadata) error
}

func (f *FakeVerifier) Verify(payload *raffleevents.RandomnessFulfilledPayloadV1, md message.Metadata) (string, error) {
	if f.VerifyFunc != nil {
		return f.VerifyFunc(payload, md)
	}
	return "UORACLE", nil
}

func (f *FakeVerifier) VerifyEntry(payload *raffleevents.EnterRequestedPayloadV1, md message.Metadata) error {
	if f.VerifyEntryFunc != nil {
		return f.VerifyEntryFunc(payload, md)
	}
	return nil
}

var _ MessageVerifier = (*FakeVerifier)(nil)
