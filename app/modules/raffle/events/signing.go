package raffleevents

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Domain tags keep a signature for one message kind from verifying as another.
const (
	fulfillmentSigningTag = "raffle.fulfillment.v1"
	entrySigningTag       = "raffle.enter.v1"
)

// SigningBytes is the canonical byte string the oracle signs for a fulfillment:
// the domain tag, the request id and each random word as 32 big-endian bytes,
// every field prefixed with its length. A nil word is an empty field.
func (p RandomnessFulfilledPayloadV1) SigningBytes() []byte {
	b := appendField(nil, []byte(fulfillmentSigningTag))
	b = appendField(b, []byte(p.RequestID))
	for _, w := range p.RandomWords {
		if w == nil {
			b = appendField(b, nil)
			continue
		}
		word := w.Bytes32()
		b = appendField(b, word[:])
	}
	return b
}

// SigningBytes is the canonical byte string an entrant signs for an entry.
func (p EnterRequestedPayloadV1) SigningBytes() []byte {
	b := appendField(nil, []byte(entrySigningTag))
	b = appendField(b, p.Participant.Bytes())
	if p.Amount == nil {
		return appendField(b, nil)
	}
	amount := p.Amount.Bytes32()
	return appendField(b, amount[:])
}

// EntrantAddress is the participant address bound to an nkey public key: the
// last 20 bytes of the Keccak-256 hash of the encoded key.
func EntrantAddress(publicKey string) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(publicKey))
	return common.BytesToAddress(h.Sum(nil)[12:])
}

func appendField(b, field []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(field)))
	return append(b, field...)
}
