package distribution

import (
	"math/big"

	"epochpay/core/events"
)

// CloseResult summarises a cycle close-out.
type CloseResult struct {
	Cycle       uint64
	Flushed     *DistributeResult
	Swept       *big.Int
	Unconverted *big.Int
}

// CloseCycle force-completes the active distribution, consolidates all
// leftover value, forwards it to the treasury, and closes the cycle. Only the
// distribution phase can be closed through this path; anything else is a
// phase error with no side effects.
func (e *Engine) CloseCycle(caller [20]byte, now uint64) (*CloseResult, error) {
	if err := e.collaborators(); err != nil {
		return nil, err
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if !params.CallerPermitted(caller) {
		return nil, ErrNotPermitted
	}
	meta, err := e.requireMeta()
	if err != nil {
		return nil, err
	}
	if meta.ActiveCycle == 0 {
		return nil, ErrNoActiveCycle
	}
	cycle, err := e.loadCycle(meta.ActiveCycle)
	if err != nil {
		return nil, err
	}
	if cycle.Phase != PhaseDistributing {
		return nil, ErrWrongPhase
	}

	flushed, err := e.flush(cycle, params, 0)
	if err != nil {
		return nil, err
	}
	pools, err := e.loadPools(cycle.ID)
	if err != nil {
		return nil, err
	}
	swept, unconverted, err := e.sweepAndClose(cycle, pools, params, now, false, false)
	if err != nil {
		return nil, err
	}
	meta.ActiveCycle = 0
	meta.Invocations++
	if err := e.storePools(cycle.ID, pools); err != nil {
		return nil, err
	}
	if err := e.storeCycle(cycle); err != nil {
		return nil, err
	}
	if err := e.storeMeta(meta); err != nil {
		return nil, err
	}
	return &CloseResult{Cycle: cycle.ID, Flushed: flushed, Swept: swept, Unconverted: unconverted}, nil
}

// ForceReset is the administrative escape hatch: it sweeps and closes the
// active cycle unconditionally, in any phase, tolerating a broken converter,
// and releases the manual-claim guard. Intended for recovery when the normal
// flow is stuck.
func (e *Engine) ForceReset(caller [20]byte, now uint64) (*CloseResult, error) {
	if err := e.collaborators(); err != nil {
		return nil, err
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if !params.CallerPermitted(caller) {
		return nil, ErrNotPermitted
	}
	meta, err := e.requireMeta()
	if err != nil {
		return nil, err
	}
	if meta.ActiveCycle == 0 {
		return nil, ErrNoActiveCycle
	}
	cycle, err := e.loadCycle(meta.ActiveCycle)
	if err != nil {
		return nil, err
	}
	pools, err := e.loadPools(cycle.ID)
	if err != nil {
		return nil, err
	}
	e.claimGuard.release()
	swept, unconverted, err := e.sweepAndClose(cycle, pools, params, now, false, true)
	if err != nil {
		return nil, err
	}
	meta.ActiveCycle = 0
	meta.Invocations++
	if err := e.storePools(cycle.ID, pools); err != nil {
		return nil, err
	}
	if err := e.storeCycle(cycle); err != nil {
		return nil, err
	}
	if err := e.storeMeta(meta); err != nil {
		return nil, err
	}
	return &CloseResult{Cycle: cycle.ID, Swept: swept, Unconverted: unconverted}, nil
}

// sweepAndClose consolidates everything left in the cycle's pools and pushes
// it to the treasury sink. Leftover canonical value is the unclaimed manual
// pools plus undistributed auto value (rounding dust and forfeited failed
// transfers); the points-category excess figure is structurally zero because
// shares divide by the captured total weight. Leftover still held in inbound
// units (the unconverted operational buffer, or a cycle that never allocated)
// is converted to canonical form first. The cycle's pools are zeroed and the
// cycle marked closed; callers persist.
func (e *Engine) sweepAndClose(cycle *Cycle, pools *PoolSet, params Params, now uint64, skipped, forced bool) (*big.Int, *big.Int, error) {
	canonical := new(big.Int).Add(pools.AutoPoints, pools.AutoBalance)
	canonical.Add(canonical, pools.ManualPoints)
	canonical.Add(canonical, pools.ManualBalance)

	raw := new(big.Int).Add(pools.AccumulatedPoints, pools.AccumulatedBalance)
	converted := big.NewInt(0)
	unconverted := big.NewInt(0)
	if raw.Sign() > 0 {
		out, err := e.convert.Convert(raw)
		switch {
		case err == nil && out != nil:
			converted = out
		case forced:
			// Recovery path: a broken converter must not keep the cycle open.
			// The raw remainder is recorded and abandoned.
			unconverted = raw
		default:
			return nil, nil, err
		}
	}

	total := new(big.Int).Add(canonical, converted)
	if total.Sign() > 0 {
		if err := e.transfer.Transfer(params.Treasury, total); err != nil {
			if !forced {
				return nil, nil, err
			}
			unconverted = new(big.Int).Add(unconverted, total)
			total = big.NewInt(0)
		}
	}

	pools.zero()
	cycle.Phase = PhaseClosed
	cycle.ClosedAt = now

	e.st.AppendEvent(events.CycleSwept{
		Cycle:       cycle.ID,
		Canonical:   canonical,
		Converted:   converted,
		Unconverted: unconverted,
		Treasury:    params.Treasury,
	}.Event())
	if skipped {
		e.st.AppendEvent(events.DistributionSkipped{Cycle: cycle.ID}.Event())
	}
	e.st.AppendEvent(events.CycleClosed{Cycle: cycle.ID, ClosedAt: now, Forced: forced}.Event())
	return total, unconverted, nil
}
