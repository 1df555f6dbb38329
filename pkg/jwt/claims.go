package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims identify the caller of a protected raffle endpoint: the
// randomness oracle, the automation trigger or an entrant.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// Scope values carried by tokens.
const (
	ScopeFulfill = "raffle:fulfill"
	ScopeUpkeep  = "raffle:upkeep"
	ScopeEnter   = "raffle:enter"
)
