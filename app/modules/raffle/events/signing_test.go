package raffleevents

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestFulfillmentSigningBytes(t *testing.T) {
	p := RandomnessFulfilledPayloadV1{
		RequestID:   "req-1",
		RandomWords: []*uint256.Int{uint256.NewInt(255), uint256.NewInt(1)},
	}
	assert.Equal(t, p.SigningBytes(), p.SigningBytes())
	// tag, id and two 32-byte words, each behind a 4-byte length
	assert.Len(t, p.SigningBytes(), 4+len(fulfillmentSigningTag)+4+5+2*(4+32))

	tests := []struct {
		name string
		a, b RandomnessFulfilledPayloadV1
	}{
		{
			name: "different word",
			a:    p,
			b:    RandomnessFulfilledPayloadV1{RequestID: "req-1", RandomWords: []*uint256.Int{uint256.NewInt(254), uint256.NewInt(1)}},
		},
		{
			name: "separator inside the request id",
			a:    RandomnessFulfilledPayloadV1{RequestID: "a|0x1"},
			b:    RandomnessFulfilledPayloadV1{RequestID: "a", RandomWords: []*uint256.Int{uint256.NewInt(1)}},
		},
		{
			name: "nil word is not a zero word",
			a:    RandomnessFulfilledPayloadV1{RequestID: "a", RandomWords: []*uint256.Int{nil}},
			b:    RandomnessFulfilledPayloadV1{RequestID: "a", RandomWords: []*uint256.Int{uint256.NewInt(0)}},
		},
		{
			name: "no words",
			a:    RandomnessFulfilledPayloadV1{RequestID: "a"},
			b:    RandomnessFulfilledPayloadV1{RequestID: "a", RandomWords: []*uint256.Int{nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a.SigningBytes(), tt.b.SigningBytes())
		})
	}
}

func TestEntrySigningBytes(t *testing.T) {
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b0")
	p := EnterRequestedPayloadV1{Participant: alice, Amount: uint256.NewInt(100)}

	assert.Equal(t, p.SigningBytes(), p.SigningBytes())
	assert.NotEqual(t, p.SigningBytes(), EnterRequestedPayloadV1{Participant: bob, Amount: uint256.NewInt(100)}.SigningBytes())
	assert.NotEqual(t, p.SigningBytes(), EnterRequestedPayloadV1{Participant: alice, Amount: uint256.NewInt(101)}.SigningBytes())
	assert.NotEqual(t, p.SigningBytes(), EnterRequestedPayloadV1{Participant: alice}.SigningBytes())

	fulfillment := RandomnessFulfilledPayloadV1{RequestID: string(alice.Bytes())}
	assert.NotEqual(t, EnterRequestedPayloadV1{Participant: alice}.SigningBytes(), fulfillment.SigningBytes())
}

func TestEntrantAddress(t *testing.T) {
	const keyA = "UAHJLSMYZDYCB2VXVEJRSDSGQ5SJQTXHU5MUBIWW5HOSKM5MMB7HZ5OA"
	const keyB = "UBZLZBKQ6XSZ2YY7EIVYEZ7G6SM7MI5RNJ5VNOYQLHSYMCX2U5BAKAKE"

	assert.Equal(t, EntrantAddress(keyA), EntrantAddress(keyA))
	assert.NotEqual(t, EntrantAddress(keyA), EntrantAddress(keyB))
	assert.NotEqual(t, common.Address{}, EntrantAddress(keyA))
}
