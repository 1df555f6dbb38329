package raffledomain

import "github.com/holiman/uint256"

// SelectWinner maps a random word onto a ledger of n slots as word mod n.
// When n does not divide 2^256 the lower indexes are favoured by a margin of
// at most n/2^256; the bias is accepted rather than corrected so that a given
// word always selects the same slot.
func SelectWinner(word *uint256.Int, n int) (int, error) {
	if n <= 0 {
		return 0, ErrNoEntries
	}
	if word == nil {
		return 0, ErrNoRandomWords
	}
	idx := new(uint256.Int).Mod(word, uint256.NewInt(uint64(n)))
	return int(idx.Uint64()), nil
}
