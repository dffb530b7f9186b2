package distribution

import (
	"fmt"
	"math/big"

	"epochpay/core/events"
)

// allocatePools performs the once-per-cycle conversion of accumulated inbound
// value into distributable pools. A single bulk conversion covers both
// categories; the converted output is then split by the pre-conversion
// category proportions so conversion slippage is borne uniformly. The
// operational buffer is reserved before conversion and stays in inbound units
// for the cycle's close-out. Any conversion failure aborts the step with
// nothing written.
func (e *Engine) allocatePools(cycleID uint64, pools *PoolSet, params Params) error {
	accPoints := copyBigInt(pools.AccumulatedPoints)
	accBalance := copyBigInt(pools.AccumulatedBalance)
	total := new(big.Int).Add(accPoints, accBalance)

	convertible := new(big.Int).Sub(total, params.Buffer())
	if convertible.Sign() <= 0 {
		return ErrInsufficientValue
	}
	converted, err := e.convert.Convert(convertible)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if converted == nil || converted.Sign() <= 0 {
		return fmt.Errorf("%w: converter returned nothing", ErrConversion)
	}

	// Pre-conversion category ratio: points gets accPoints/total of the
	// converted output, balance the remainder.
	pointsShare := new(big.Int).Mul(converted, accPoints)
	pointsShare.Quo(pointsShare, total)
	balanceShare := new(big.Int).Sub(converted, pointsShare)

	for _, c := range Categories {
		categoryShare := pointsShare
		if c == CategoryBalance {
			categoryShare = balanceShare
		}
		auto := applyBps(categoryShare, params.AutoShareBps)
		manual := new(big.Int).Sub(categoryShare, auto)
		pools.setAuto(c, copyBigInt(auto))
		pools.setManual(c, copyBigInt(manual))
	}
	pools.AutoPointsInitial = copyBigInt(pools.AutoPoints)
	pools.AutoBalanceInitial = copyBigInt(pools.AutoBalance)
	pools.ManualPointsInitial = copyBigInt(pools.ManualPoints)
	pools.ManualBalanceInitial = copyBigInt(pools.ManualBalance)

	// Converted value replaces the accumulated inbound amounts; only the
	// unconverted buffer remains behind in inbound units.
	remainder := new(big.Int).Sub(total, convertible)
	pools.AccumulatedPoints = remainder
	pools.AccumulatedBalance = big.NewInt(0)
	pools.Allocated = true

	e.st.AppendEvent(events.PoolsAllocated{
		Cycle:         cycleID,
		Converted:     converted,
		AutoPoints:    pools.AutoPoints,
		ManualPoints:  pools.ManualPoints,
		AutoBalance:   pools.AutoBalance,
		ManualBalance: pools.ManualBalance,
	}.Event())
	return nil
}
