package testutils

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TestDataGenerator provides methods to create test data for integration tests
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seed  uint64
}

// NewTestDataGenerator creates a new test data generator with optional seed
func NewTestDataGenerator(seed ...uint64) *TestDataGenerator {
	s := uint64(time.Now().UnixNano())
	if len(seed) > 0 {
		s = seed[0]
	}
	return &TestDataGenerator{
		faker: gofakeit.New(s),
		seed:  s,
	}
}

// Address returns a random participant address.
func (g *TestDataGenerator) Address() common.Address {
	var a common.Address
	for i := range a {
		a[i] = g.faker.Uint8()
	}
	return a
}

// RandomWord returns a random 256-bit word.
func (g *TestDataGenerator) RandomWord() *uint256.Int {
	return new(uint256.Int).SetBytes(g.Bytes(32))
}

// Bytes returns n random bytes.
func (g *TestDataGenerator) Bytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = g.faker.Uint8()
	}
	return b
}
