// Package raffledomain holds the raffle state machine. It performs no I/O; the
// application layer loads a Round, applies one transition and persists the result.
package raffledomain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// State is the numeric round state. The numeric codes are part of the
// UpkeepNotNeeded diagnostics and must not be renumbered.
type State uint8

const (
	StateOpen State = iota
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// RequestID correlates a randomness request with its fulfillment.
type RequestID string

// NumWords is the number of random words requested per round.
const NumWords uint32 = 1

// Config is fixed when the raffle is created and never mutated afterwards.
type Config struct {
	EntranceFee          *uint256.Int  `json:"entrance_fee"`
	Interval             time.Duration `json:"interval"`
	Oracle               string        `json:"oracle"`
	KeyHash              common.Hash   `json:"key_hash"`
	SubscriptionID       uint64        `json:"subscription_id"`
	RequestConfirmations uint16        `json:"request_confirmations"`
	CallbackGasLimit     uint32        `json:"callback_gas_limit"`
	NumWords             uint32        `json:"num_words"`
}

// Validate rejects configurations the raffle cannot run with.
func (c Config) Validate() error {
	switch {
	case c.EntranceFee == nil || c.EntranceFee.IsZero():
		return fmt.Errorf("%w: entrance fee must be positive", ErrInvalidConfig)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	case c.Oracle == "":
		return fmt.Errorf("%w: oracle identity is required", ErrInvalidConfig)
	case c.NumWords != NumWords:
		return fmt.Errorf("%w: exactly %d random word must be requested", ErrInvalidConfig, NumWords)
	}
	return nil
}

// Equal reports whether two configurations describe the same raffle.
func (c Config) Equal(o Config) bool {
	if (c.EntranceFee == nil) != (o.EntranceFee == nil) {
		return false
	}
	if c.EntranceFee != nil && !c.EntranceFee.Eq(o.EntranceFee) {
		return false
	}
	return c.Interval == o.Interval &&
		c.Oracle == o.Oracle &&
		c.KeyHash == o.KeyHash &&
		c.SubscriptionID == o.SubscriptionID &&
		c.RequestConfirmations == o.RequestConfirmations &&
		c.CallbackGasLimit == o.CallbackGasLimit &&
		c.NumWords == o.NumWords
}

// RandomWordsRequest is sent to the oracle when a round closes.
type RandomWordsRequest struct {
	KeyHash              common.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
	Round                uint64
}

// Request builds the oracle request for round.
func (c Config) Request(round uint64) RandomWordsRequest {
	return RandomWordsRequest{
		KeyHash:              c.KeyHash,
		SubscriptionID:       c.SubscriptionID,
		RequestConfirmations: c.RequestConfirmations,
		CallbackGasLimit:     c.CallbackGasLimit,
		NumWords:             c.NumWords,
		Round:                round,
	}
}

// Round is the single live raffle round.
type Round struct {
	Number         uint64
	State          State
	Entries        []common.Address
	StartedAt      time.Time
	Balance        *uint256.Int
	PendingRequest RequestID
	RecentWinner   common.Address
}

// Payout describes a completed draw.
type Payout struct {
	Round      uint64
	Winner     common.Address
	Index      int
	Amount     *uint256.Int
	RandomWord *uint256.Int
	RequestID  RequestID
	PaidAt     time.Time
}
