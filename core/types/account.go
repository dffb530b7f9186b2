package types

import "math/big"

// Account holds the canonical payout-token balance for an address. Frozen
// accounts reject incoming push transfers, which is how individual payout
// failures surface during batch distribution.
type Account struct {
	Balance *big.Int
	Frozen  bool
}

// NewAccount returns an account with a zeroed balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Copy returns a deep copy so callers cannot mutate shared pointers.
func (a *Account) Copy() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Frozen: a.Frozen, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
