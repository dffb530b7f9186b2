package distribution

import (
	"errors"
	"fmt"
	"math/big"
)

// BpsDenominator is the fixed denominator for all basis-point ratios.
const BpsDenominator = 10_000

// Params is the versioned engine configuration. Updates are validated
// atomically before they replace the stored record; nothing is checked again
// at use time.
type Params struct {
	// PointsCategoryBps is the share of inbound value routed to the points
	// category; the balance category receives the remainder.
	PointsCategoryBps uint64
	// AutoShareBps is the share of each category's allocation distributed by
	// push batches; the remainder funds the manual pull pool.
	AutoShareBps uint64
	// MinCycleInterval is the minimum accumulation time in seconds before a
	// cycle may be frozen.
	MinCycleInterval uint64
	// SnapshotWindow and DistributionWindow bound the work done by a single
	// batch call.
	SnapshotWindow     uint64
	DistributionWindow uint64
	// OperationalBuffer is reserved from the amount converted at allocation so
	// funds remain for the cycle's close-out.
	OperationalBuffer *big.Int
	// Treasury receives the leftover sweep at cycle close.
	Treasury [20]byte
	// PermittedCallers may advance, flush, and close the state machine.
	PermittedCallers [][20]byte
	// FundingSources may deposit inbound value.
	FundingSources [][20]byte
	// ConvertRateNum/ConvertRateDen express the inbound-to-canonical
	// conversion rate used by the default rate converter.
	ConvertRateNum uint64
	ConvertRateDen uint64
	// ConvertFeeBps is the conversion fee retained by the converter.
	ConvertFeeBps uint64
}

// DefaultParams returns a conservative configuration with no permitted
// callers; operators are expected to install a real allow-list before use.
func DefaultParams() Params {
	return Params{
		PointsCategoryBps:  5_000,
		AutoShareBps:       7_000,
		MinCycleInterval:   24 * 60 * 60,
		SnapshotWindow:     100,
		DistributionWindow: 100,
		OperationalBuffer:  big.NewInt(0),
		ConvertRateNum:     1,
		ConvertRateDen:     1,
		ConvertFeeBps:      0,
	}
}

// Validate ensures the configuration values fall within acceptable bounds.
func (p Params) Validate() error {
	if p.PointsCategoryBps > BpsDenominator {
		return fmt.Errorf("points category ratio must be <= %d bps", BpsDenominator)
	}
	if p.AutoShareBps > BpsDenominator {
		return fmt.Errorf("auto share ratio must be <= %d bps", BpsDenominator)
	}
	if p.MinCycleInterval == 0 {
		return errors.New("minimum cycle interval must be positive")
	}
	if p.SnapshotWindow == 0 {
		return errors.New("snapshot window must be positive")
	}
	if p.DistributionWindow == 0 {
		return errors.New("distribution window must be positive")
	}
	if p.OperationalBuffer != nil && p.OperationalBuffer.Sign() < 0 {
		return errors.New("operational buffer cannot be negative")
	}
	if p.Treasury == ([20]byte{}) {
		return errors.New("treasury address must be configured")
	}
	if p.ConvertRateDen == 0 || p.ConvertRateNum == 0 {
		return errors.New("conversion rate must be positive")
	}
	if p.ConvertFeeBps >= BpsDenominator {
		return fmt.Errorf("conversion fee must be < %d bps", BpsDenominator)
	}
	return nil
}

// Buffer returns the operational buffer, never nil.
func (p Params) Buffer() *big.Int {
	if p.OperationalBuffer == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p.OperationalBuffer)
}

// CallerPermitted reports whether the address is on the advance allow-list.
func (p Params) CallerPermitted(addr [20]byte) bool {
	for _, allowed := range p.PermittedCallers {
		if allowed == addr {
			return true
		}
	}
	return false
}

// FundingSource reports whether the address may deposit inbound value.
func (p Params) FundingSource(addr [20]byte) bool {
	for _, src := range p.FundingSources {
		if src == addr {
			return true
		}
	}
	return false
}

// Copy returns a deep copy so stored parameters cannot be mutated through
// shared pointers.
func (p Params) Copy() Params {
	clone := p
	clone.OperationalBuffer = p.Buffer()
	clone.PermittedCallers = append([][20]byte(nil), p.PermittedCallers...)
	clone.FundingSources = append([][20]byte(nil), p.FundingSources...)
	return clone
}
