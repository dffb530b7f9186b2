package distribution

import (
	"math/big"

	"epochpay/core/events"
)

// DistributeResult summarises one distribution window (or one flush pass).
type DistributeResult struct {
	// Active is false when no cycle is distributing; the call was a no-op.
	Active     bool
	Cycle      uint64
	Registry   string
	Processed  uint64
	Paid       uint64
	Failed     uint64
	PaidAmount *big.Int
	// Done reports that both registries have been fully paid out.
	Done bool
}

// DistributeAuto processes one bounded payout window for the active cycle.
// Anyone may call it; when no distribution is active it is a safe no-op so the
// call can be piggybacked off unrelated activity.
func (e *Engine) DistributeAuto() (*DistributeResult, error) {
	if err := e.collaborators(); err != nil {
		return nil, err
	}
	meta, err := e.requireMeta()
	if err != nil {
		return nil, err
	}
	if meta.ActiveCycle == 0 {
		return &DistributeResult{PaidAmount: big.NewInt(0)}, nil
	}
	cycle, err := e.loadCycle(meta.ActiveCycle)
	if err != nil {
		return nil, err
	}
	if cycle.Phase != PhaseDistributing {
		return &DistributeResult{PaidAmount: big.NewInt(0)}, nil
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	result, err := e.distributeStep(cycle, params)
	if err != nil {
		return nil, err
	}
	meta.Invocations++
	if err := e.storeMeta(meta); err != nil {
		return nil, err
	}
	return result, nil
}

// distributeStep runs one payout window against the first registry that still
// has holders pending. The eligible count is locked at the registry's first
// distribution window, independently of the snapshot lock.
func (e *Engine) distributeStep(cycle *Cycle, params Params) (*DistributeResult, error) {
	result := &DistributeResult{Active: true, Cycle: cycle.ID, PaidAmount: big.NewInt(0)}

	cat := CategoryPoints
	progress, err := e.loadProgress(distProgressKey(cycle.ID, CategoryPoints))
	if err != nil {
		return nil, err
	}
	if progress.Done {
		cat = CategoryBalance
		progress, err = e.loadProgress(distProgressKey(cycle.ID, CategoryBalance))
		if err != nil {
			return nil, err
		}
		if progress.Done {
			result.Done = true
			return result, nil
		}
	}
	result.Registry = cat.String()

	reg := e.registry(cat)
	if !progress.Locked {
		count, err := reg.Count()
		if err != nil {
			return nil, err
		}
		progress.LockedCount = count
		progress.Locked = true
	}

	pools, err := e.loadPools(cycle.ID)
	if err != nil {
		return nil, err
	}
	windowPaid := map[Category]*big.Int{
		CategoryPoints:  big.NewInt(0),
		CategoryBalance: big.NewInt(0),
	}

	end := progress.Cursor + params.DistributionWindow
	if end > progress.LockedCount {
		end = progress.LockedCount
	}
	for i := progress.Cursor; i < end; i++ {
		result.Processed++
		holder, err := reg.HolderAt(i)
		if err != nil {
			// The live registry shrank below the locked bound; nothing to pay
			// at this index.
			continue
		}
		claim, err := e.loadClaim(cycle.ID, holder)
		if err != nil {
			return nil, err
		}
		if claim.AutoClaimed {
			continue
		}
		total, components, err := e.combinedShare(cycle.ID, holder, pools.AutoInitial)
		if err != nil {
			return nil, err
		}
		if total.Sign() <= 0 {
			continue
		}
		if err := e.transfer.Transfer(holder, total); err != nil {
			// A single failed transfer never blocks the batch. The share stays
			// in the pool and is recovered by the treasury sweep; the claimed
			// flag stays false.
			result.Failed++
			e.st.AppendEvent(events.PayoutFailed{
				Cycle:  cycle.ID,
				Holder: holder,
				Amount: total,
				Reason: err.Error(),
			}.Event())
			continue
		}
		claim.AutoClaimed = true
		if err := e.storeClaim(cycle.ID, holder, claim); err != nil {
			return nil, err
		}
		if err := e.addLifetime(holder, total); err != nil {
			return nil, err
		}
		for c, component := range components {
			windowPaid[c] = windowPaid[c].Add(windowPaid[c], component)
		}
		result.Paid++
		result.PaidAmount.Add(result.PaidAmount, total)
		e.st.AppendEvent(events.PayoutPaid{Cycle: cycle.ID, Holder: holder, Amount: total}.Event())
	}

	for _, c := range Categories {
		pools.setAuto(c, decrementPool(pools.Auto(c), windowPaid[c]))
	}
	progress.Cursor = end
	if progress.Cursor >= progress.LockedCount {
		progress.Done = true
	}
	if err := e.storePools(cycle.ID, pools); err != nil {
		return nil, err
	}
	if err := e.storeProgress(distProgressKey(cycle.ID, cat), progress); err != nil {
		return nil, err
	}

	if progress.Done {
		if cat == CategoryBalance {
			// Points always completes before balance starts.
			result.Done = true
		} else {
			otherProgress, err := e.loadProgress(distProgressKey(cycle.ID, CategoryBalance))
			if err != nil {
				return nil, err
			}
			result.Done = otherProgress.Done
		}
	}
	return result, nil
}

// FlushDistributions repeats payout windows within a single invocation until
// the active cycle's registries are exhausted, or maxWindows is reached when
// positive. Used to force-complete a cycle before close.
func (e *Engine) FlushDistributions(caller [20]byte, maxWindows int) (*DistributeResult, error) {
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
		return &DistributeResult{PaidAmount: big.NewInt(0)}, nil
	}
	cycle, err := e.loadCycle(meta.ActiveCycle)
	if err != nil {
		return nil, err
	}
	if cycle.Phase != PhaseDistributing {
		return &DistributeResult{PaidAmount: big.NewInt(0)}, nil
	}
	result, err := e.flush(cycle, params, maxWindows)
	if err != nil {
		return nil, err
	}
	meta.Invocations++
	if err := e.storeMeta(meta); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) flush(cycle *Cycle, params Params, maxWindows int) (*DistributeResult, error) {
	total := &DistributeResult{Active: true, Cycle: cycle.ID, PaidAmount: big.NewInt(0)}
	windows := 0
	for {
		step, err := e.distributeStep(cycle, params)
		if err != nil {
			return nil, err
		}
		total.Processed += step.Processed
		total.Paid += step.Paid
		total.Failed += step.Failed
		total.PaidAmount.Add(total.PaidAmount, step.PaidAmount)
		total.Done = step.Done
		if step.Done {
			return total, nil
		}
		windows++
		if maxWindows > 0 && windows >= maxWindows {
			return total, nil
		}
	}
}
