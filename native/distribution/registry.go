package distribution

import (
	"math/big"

	"epochpay/core/types"
)

// HolderRegistry is the enumeration contract both eligibility registries must
// satisfy. Enumeration order must be deterministic between calls; indexes are
// only trusted up to the count locked at the start of a batch pass.
type HolderRegistry interface {
	Count() (uint64, error)
	HolderAt(index uint64) ([20]byte, error)
	WeightOf(holder [20]byte) (*big.Int, error)
	MinThreshold() (*big.Int, error)
}

// Transferor pushes canonical payout value to a holder. A returned error means
// the individual transfer failed; batch callers treat it as a per-holder
// outcome, never as a reason to unwind the batch.
type Transferor interface {
	Transfer(to [20]byte, amount *big.Int) error
}

// Converter performs the single bulk conversion from accumulated inbound units
// to canonical payout units. Partial conversion is not representable: the call
// either returns the full converted amount or an error.
type Converter interface {
	Convert(amount *big.Int) (*big.Int, error)
}

// State is the narrow slice of state-manager functionality the engine needs.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	AppendEvent(evt *types.Event)
}
