package raffledomain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NewRound returns the first round of a freshly created raffle.
func NewRound(now time.Time) *Round {
	return &Round{
		Number:    1,
		State:     StateOpen,
		StartedAt: now,
		Balance:   new(uint256.Int),
	}
}

// Enter appends participant to the ledger and adds amount to the held balance.
// It returns the ledger slot taken by the entry.
func (r *Round) Enter(cfg Config, participant common.Address, amount *uint256.Int) (int, error) {
	if amount == nil || amount.Lt(cfg.EntranceFee) {
		return 0, ErrInsufficientFee
	}
	if r.State != StateOpen {
		return 0, ErrRoundNotOpen
	}
	if participant == (common.Address{}) {
		return 0, ErrInvalidParticipant
	}

	sum, overflow := new(uint256.Int).AddOverflow(r.balance(), amount)
	if overflow {
		return 0, ErrBalanceOverflow
	}

	r.Entries = append(r.Entries, participant)
	r.Balance = sum
	return len(r.Entries) - 1, nil
}

// CheckUpkeep reports whether the round may be closed at now.
func (r *Round) CheckUpkeep(now time.Time, interval time.Duration) bool {
	timePassed := now.Sub(r.StartedAt) >= interval
	isOpen := r.State == StateOpen
	hasBalance := !r.balance().IsZero()
	hasPlayers := len(r.Entries) > 0
	return timePassed && isOpen && hasBalance && hasPlayers
}

// BeginCalculating closes the round for entries. The caller must issue the
// randomness request and record it with SetPendingRequest.
func (r *Round) BeginCalculating(now time.Time, interval time.Duration) error {
	if !r.CheckUpkeep(now, interval) {
		return r.upkeepNotNeeded()
	}
	r.State = StateCalculating
	return nil
}

// SetPendingRequest records the correlation id of the in-flight request.
func (r *Round) SetPendingRequest(id RequestID) {
	r.PendingRequest = id
}

// Complete selects the winner, resets the round in place and returns the payout
// that still has to be transferred. Bookkeeping is finished before returning so
// that the transfer is the last step.
func (r *Round) Complete(now time.Time, requestID RequestID, words []*uint256.Int) (Payout, error) {
	if r.State != StateCalculating || requestID == "" || requestID != r.PendingRequest {
		return Payout{}, ErrUnknownRequest
	}
	if len(words) == 0 || words[0] == nil {
		return Payout{}, ErrNoRandomWords
	}

	index, err := SelectWinner(words[0], len(r.Entries))
	if err != nil {
		return Payout{}, err
	}

	payout := Payout{
		Round:      r.Number,
		Winner:     r.Entries[index],
		Index:      index,
		Amount:     new(uint256.Int).Set(r.balance()),
		RandomWord: new(uint256.Int).Set(words[0]),
		RequestID:  requestID,
		PaidAt:     now,
	}

	r.RecentWinner = payout.Winner
	r.State = StateOpen
	r.Entries = nil
	if now.After(r.StartedAt) {
		r.StartedAt = now
	}
	r.PendingRequest = ""
	r.Number++
	r.Balance = new(uint256.Int)

	return payout, nil
}

// Player returns the participant at ledger slot index.
func (r *Round) Player(index int) (common.Address, error) {
	if index < 0 || index >= len(r.Entries) {
		return common.Address{}, ErrPlayerIndexOutOfRange
	}
	return r.Entries[index], nil
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	c := *r
	c.Entries = append([]common.Address(nil), r.Entries...)
	c.Balance = new(uint256.Int).Set(r.balance())
	return &c
}

func (r *Round) upkeepNotNeeded() *UpkeepNotNeededError {
	return &UpkeepNotNeededError{
		Balance:    new(uint256.Int).Set(r.balance()),
		NumPlayers: len(r.Entries),
		State:      r.State,
	}
}

func (r *Round) balance() *uint256.Int {
	if r.Balance == nil {
		return new(uint256.Int)
	}
	return r.Balance
}
