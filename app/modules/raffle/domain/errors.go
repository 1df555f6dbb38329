package raffledomain

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientFee       = errors.New("raffle: insufficient entrance fee")
	ErrRoundNotOpen          = errors.New("raffle: round not open")
	ErrUpkeepNotNeeded       = errors.New("raffle: upkeep not needed")
	ErrPlayerIndexOutOfRange = errors.New("raffle: player index out of range")
	ErrTransferFailed        = errors.New("raffle: transfer failed")
	ErrUnauthorizedOracle    = errors.New("raffle: caller is not the configured oracle")
	ErrUnknownRequest        = errors.New("raffle: fulfillment does not match the pending request")
	ErrNoEntries             = errors.New("raffle: no entries to select a winner from")
	ErrNoRandomWords         = errors.New("raffle: no random words supplied")
	ErrInvalidParticipant    = errors.New("raffle: invalid participant address")
	ErrInvalidConfig         = errors.New("raffle: invalid configuration")
	ErrConfigMismatch        = errors.New("raffle: configuration differs from the persisted one")
	ErrBalanceOverflow       = errors.New("raffle: round balance overflow")
)

// UpkeepNotNeededError reports why PerformUpkeep declined to fire.
type UpkeepNotNeededError struct {
	Balance    *uint256.Int
	NumPlayers int
	State      State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("raffle: upkeep not needed (balance=%s, players=%d, state=%d)",
		e.Balance.Dec(), e.NumPlayers, uint8(e.State))
}

func (e *UpkeepNotNeededError) Is(target error) bool { return target == ErrUpkeepNotNeeded }
