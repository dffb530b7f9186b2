package distribution

import (
	"errors"
	"math/big"
)

// RateConverter is the default bulk converter: a fixed inbound-to-canonical
// rate with a fee retained in basis points. Production deployments can swap in
// a converter backed by a trading venue; the engine only sees the Converter
// contract.
type RateConverter struct {
	num    uint64
	den    uint64
	feeBps uint64
}

// NewRateConverter builds a converter from the configured rate and fee.
func NewRateConverter(num, den, feeBps uint64) (*RateConverter, error) {
	if num == 0 || den == 0 {
		return nil, errors.New("convert: rate must be positive")
	}
	if feeBps >= BpsDenominator {
		return nil, errors.New("convert: fee must be below the denominator")
	}
	return &RateConverter{num: num, den: den, feeBps: feeBps}, nil
}

// Convert returns floor(amount * num / den) minus the fee. All-or-nothing:
// a non-positive input is rejected rather than partially converted.
func (c *RateConverter) Convert(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("convert: amount must be positive")
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(c.num))
	out.Quo(out, new(big.Int).SetUint64(c.den))
	if c.feeBps > 0 {
		fee := applyBps(out, c.feeBps)
		out.Sub(out, fee)
	}
	if out.Sign() <= 0 {
		return nil, errors.New("convert: output rounds to zero")
	}
	return out, nil
}
