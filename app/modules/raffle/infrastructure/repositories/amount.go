package raffledb

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Amount stores a uint256 value in a numeric(78,0) column.
type Amount struct {
	*uint256.Int
}

// NewAmount copies v into an Amount. A nil v yields zero.
func NewAmount(v *uint256.Int) Amount {
	if v == nil {
		return Amount{Int: new(uint256.Int)}
	}
	return Amount{Int: new(uint256.Int).Set(v)}
}

// Uint256 returns a copy of the stored value.
func (a Amount) Uint256() *uint256.Int {
	if a.Int == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(a.Int)
}

func (a Amount) Value() (driver.Value, error) {
	if a.Int == nil {
		return "0", nil
	}
	return a.Int.Dec(), nil
}

func (a *Amount) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		a.Int = new(uint256.Int)
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		if v < 0 {
			return fmt.Errorf("negative amount %d", v)
		}
		a.Int = uint256.NewInt(uint64(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}

	// numeric columns may come back with a zero fractional part
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if strings.Trim(s[i+1:], "0") != "" {
			return fmt.Errorf("amount %q is not integral", s)
		}
		s = s[:i]
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.Int = n
	return nil
}
