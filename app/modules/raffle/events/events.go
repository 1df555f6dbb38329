// Package raffleevents defines the NATS subjects and payloads of the raffle module.
package raffleevents

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Inbound requests.
const (
	// EnterRequestedV1 asks the raffle to admit a participant.
	EnterRequestedV1 = "raffle.enter.requested.v1"
	// UpkeepRequestedV1 asks the raffle to close the round if it is eligible.
	UpkeepRequestedV1 = "raffle.upkeep.requested.v1"
	// RandomnessFulfilledV1 is the oracle callback carrying random words.
	RandomnessFulfilledV1 = "raffle.randomness.fulfilled.v1"
)

// Outbound notifications and failures.
const (
	EnteredV1             = "raffle.entered.v1"
	EnterFailedV1         = "raffle.enter.failed.v1"
	RandomnessRequestedV1 = "raffle.randomness.requested.v1"
	UpkeepFailedV1        = "raffle.upkeep.failed.v1"
	WinnerPickedV1        = "raffle.winner.picked.v1"
	FulfillmentFailedV1   = "raffle.fulfillment.failed.v1"
)

// OracleRandomnessRequestV1 is published to the oracle by the NATS coordinator.
const OracleRandomnessRequestV1 = "oracle.randomness.request.v1"

// Metadata keys carried by oracle callbacks.
const (
	OracleKeyMetadata       = "oracle_key"
	OracleSignatureMetadata = "oracle_sig"
)

// Metadata keys carried by entry requests. The participant must be
// EntrantAddress of the signing key.
const (
	EntrantKeyMetadata       = "entrant_key"
	EntrantSignatureMetadata = "entrant_sig"
)

// EnterRequestedPayloadV1 is signed by the entrant. The signature covers
// SigningBytes and travels in message metadata.
type EnterRequestedPayloadV1 struct {
	Participant common.Address `json:"participant"`
	Amount      *uint256.Int   `json:"amount"`
}

type EnteredPayloadV1 struct {
	Participant common.Address `json:"participant"`
	Round       uint64         `json:"round"`
	Slot        int            `json:"slot"`
	Amount      *uint256.Int   `json:"amount"`
}

type EnterFailedPayloadV1 struct {
	Participant common.Address `json:"participant"`
	Reason      string         `json:"reason"`
}

type UpkeepRequestedPayloadV1 struct {
	PerformData []byte `json:"perform_data,omitempty"`
}

type UpkeepFailedPayloadV1 struct {
	Reason     string       `json:"reason"`
	Balance    *uint256.Int `json:"balance,omitempty"`
	NumPlayers int          `json:"num_players"`
	State      uint8        `json:"state"`
}

type RandomnessRequestedPayloadV1 struct {
	RequestID string `json:"request_id"`
	Round     uint64 `json:"round"`
}

// RandomnessFulfilledPayloadV1 is signed by the oracle. The signature covers
// SigningBytes and travels in message metadata.
type RandomnessFulfilledPayloadV1 struct {
	RequestID   string         `json:"request_id"`
	RandomWords []*uint256.Int `json:"random_words"`
}

type FulfillmentFailedPayloadV1 struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}

type WinnerPickedPayloadV1 struct {
	Winner    common.Address `json:"winner"`
	Round     uint64         `json:"round"`
	Index     int            `json:"index"`
	Payout    *uint256.Int   `json:"payout"`
	RequestID string         `json:"request_id"`
}

// OracleRandomnessRequestPayloadV1 mirrors the request parameters sent to the oracle.
type OracleRandomnessRequestPayloadV1 struct {
	RequestID            string      `json:"request_id"`
	KeyHash              common.Hash `json:"key_hash"`
	SubscriptionID       uint64      `json:"subscription_id"`
	RequestConfirmations uint16      `json:"request_confirmations"`
	CallbackGasLimit     uint32      `json:"callback_gas_limit"`
	NumWords             uint32      `json:"num_words"`
	Round                uint64      `json:"round"`
	CallbackTopic        string      `json:"callback_topic"`
}
