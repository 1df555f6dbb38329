package raffleservice

import (
	"context"
	"fmt"
	"time"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (s *RaffleService) EntranceFee() *uint256.Int {
	return new(uint256.Int).Set(s.cfg.EntranceFee)
}

func (s *RaffleService) Interval() time.Duration { return s.cfg.Interval }

func (s *RaffleService) NumWords() uint32 { return s.cfg.NumWords }

func (s *RaffleService) RequestConfirmations() uint16 { return s.cfg.RequestConfirmations }

func (s *RaffleService) RaffleState(ctx context.Context) (raffledomain.State, error) {
	round, err := s.loadRound(ctx)
	if err != nil {
		return 0, err
	}
	return round.State, nil
}

// Player returns the participant in ledger slot index.
func (s *RaffleService) Player(ctx context.Context, index int) (common.Address, error) {
	round, err := s.loadRound(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return round.Player(index)
}

// RecentWinner returns the winner of the last completed round, or the zero
// address before the first draw.
func (s *RaffleService) RecentWinner(ctx context.Context) (common.Address, error) {
	round, err := s.loadRound(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return round.RecentWinner, nil
}

func (s *RaffleService) NumberOfPlayers(ctx context.Context) (int, error) {
	round, err := s.loadRound(ctx)
	if err != nil {
		return 0, err
	}
	return len(round.Entries), nil
}

func (s *RaffleService) LastTimestamp(ctx context.Context) (time.Time, error) {
	round, err := s.loadRound(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return round.StartedAt, nil
}

// Snapshot returns every accessor from a single read of the round.
func (s *RaffleService) Snapshot(ctx context.Context) (*Snapshot, error) {
	round, err := s.loadRound(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Round:          round.Number,
		State:          round.State,
		Players:        round.Entries,
		Balance:        round.Balance,
		LastTimestamp:  round.StartedAt,
		RecentWinner:   round.RecentWinner,
		PendingRequest: round.PendingRequest,
		UpkeepNeeded:   round.CheckUpkeep(s.now(), s.cfg.Interval),
		Config:         s.cfg,
	}, nil
}

// Winners returns the most recent draws, newest first.
func (s *RaffleService) Winners(ctx context.Context, limit int) ([]raffledomain.Payout, error) {
	winners, err := s.repo.ListWinners(ctx, s.idb(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	return winners, nil
}

func (s *RaffleService) loadRound(ctx context.Context) (*raffledomain.Round, error) {
	round, err := s.repo.GetRound(ctx, s.idb(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to load round: %w", err)
	}
	return round, nil
}
