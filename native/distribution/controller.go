package distribution

import (
	"math/big"

	"epochpay/core/events"
)

// Deposit apportions inbound value from the funding source into the current
// accumulating cycle's category pools by the configured ratio. Deposits are
// rejected once a cycle has been frozen for snapshotting because they land on
// the next cycle id instead.
func (e *Engine) Deposit(from [20]byte, amount *big.Int) (uint64, error) {
	params, err := e.loadParams()
	if err != nil {
		return 0, err
	}
	if !params.FundingSource(from) {
		return 0, ErrNotFundingSource
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrZeroDeposit
	}
	meta, err := e.requireMeta()
	if err != nil {
		return 0, err
	}
	pools, err := e.loadPools(meta.AccumulatingCycle)
	if err != nil {
		return 0, err
	}

	pointsPortion := applyBps(amount, params.PointsCategoryBps)
	balancePortion := new(big.Int).Sub(amount, pointsPortion)
	pools.AccumulatedPoints = new(big.Int).Add(pools.AccumulatedPoints, pointsPortion)
	pools.AccumulatedBalance = new(big.Int).Add(pools.AccumulatedBalance, balancePortion)
	if err := e.storePools(meta.AccumulatingCycle, pools); err != nil {
		return 0, err
	}
	e.st.AppendEvent(events.DistributionDeposit{
		Cycle:         meta.AccumulatingCycle,
		From:          from,
		Amount:        amount,
		PointsPortion: pointsPortion,
	}.Event())
	return meta.AccumulatingCycle, nil
}

// AdvanceResult summarises the work performed by one AdvanceEpoch call.
type AdvanceResult struct {
	Cycle        uint64
	Phase        Phase
	Registry     string
	Processed    uint64
	SnapshotDone bool
	Allocated    bool
	Skipped      bool
}

// AdvanceEpoch drives the state machine by one bounded unit of work:
//
//   - while accumulating and the interval has elapsed, it freezes the cycle,
//     opens the next accumulating cycle, and processes the first snapshot
//     window;
//   - while snapshotting, it processes one registry window;
//   - the call that completes the second registry records the snapshot
//     invocation marker and, in the same call, either allocates the pools and
//     enters distribution or closes a cycle with no eligible weight.
//
// Guard failures reject the call with no state change. Calling while a
// distribution is in flight is a safe no-op so automation can poll freely.
func (e *Engine) AdvanceEpoch(caller [20]byte, now uint64) (*AdvanceResult, error) {
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
	seq := meta.Invocations + 1
	meta.Invocations = seq

	var frozen *Cycle
	var opened *Cycle
	if meta.ActiveCycle == 0 {
		cycle, err := e.loadCycle(meta.AccumulatingCycle)
		if err != nil {
			return nil, err
		}
		if now < cycle.AccumulationStart+params.MinCycleInterval {
			return nil, ErrIntervalNotElapsed
		}
		// Freeze deposits for this id before any snapshot work executes.
		cycle.Phase = PhaseSnapshotInProgress
		meta.ActiveCycle = cycle.ID
		meta.AccumulatingCycle = cycle.ID + 1
		frozen = cycle
		opened = &Cycle{ID: cycle.ID + 1, Phase: PhaseAccumulating, AccumulationStart: now}
	}

	cycle := frozen
	if cycle == nil {
		cycle, err = e.loadCycle(meta.ActiveCycle)
		if err != nil {
			return nil, err
		}
	}

	result := &AdvanceResult{Cycle: cycle.ID, Phase: cycle.Phase}
	if cycle.Phase == PhaseDistributing {
		// Distribution is driven by DistributeAuto; advancing is a no-op.
		return result, nil
	}
	if cycle.Phase != PhaseSnapshotInProgress {
		return nil, ErrWrongPhase
	}

	// One window against the first registry that is not yet done.
	stageCat := CategoryPoints
	pointsProgress, err := e.loadProgress(snapProgressKey(cycle.ID, CategoryPoints))
	if err != nil {
		return nil, err
	}
	if pointsProgress.Done {
		stageCat = CategoryBalance
	}
	stage, err := e.snapshotStage(cycle.ID, stageCat, params.SnapshotWindow)
	if err != nil {
		return nil, err
	}
	result.Registry = stageCat.String()
	result.Processed = stage.processed

	otherDone := pointsProgress.Done
	if stageCat == CategoryPoints {
		other, err := e.loadProgress(snapProgressKey(cycle.ID, CategoryBalance))
		if err != nil {
			return nil, err
		}
		otherDone = other.Done
	}
	bothDone := stage.progress.Done && otherDone

	var pools *PoolSet
	if bothDone {
		// Replay guard: the transition below is only reachable in the call
		// whose sequence number is being recorded right now.
		cycle.SnapshotInvocation = seq
		cycle.Phase = PhaseSnapshotDone
		result.SnapshotDone = true

		pools, err = e.loadPools(cycle.ID)
		if err != nil {
			return nil, err
		}
		totalWeight, err := e.totalSnapshotWeight(cycle.ID, stage)
		if err != nil {
			return nil, err
		}
		if totalWeight.Sign() == 0 {
			// No eligible weight anywhere: skip distribution entirely and
			// sweep straight to the treasury.
			if _, _, err := e.sweepAndClose(cycle, pools, params, now, true, false); err != nil {
				return nil, err
			}
			meta.ActiveCycle = 0
			result.Skipped = true
		} else {
			if err := e.allocatePools(cycle.ID, pools, params); err != nil {
				if err == ErrInsufficientValue {
					// Nothing worth converting: treat like an empty cycle.
					if _, _, err := e.sweepAndClose(cycle, pools, params, now, true, false); err != nil {
						return nil, err
					}
					meta.ActiveCycle = 0
					result.Skipped = true
				} else {
					return nil, err
				}
			} else {
				cycle.Phase = PhaseDistributing
				cycle.DistributionStart = now
				result.Allocated = true
			}
		}
	}

	// Persist everything computed by this call in one pass; any failure above
	// (including the bulk conversion) leaves no partial state behind.
	if err := e.persistSnapshotStage(cycle.ID, stage); err != nil {
		return nil, err
	}
	if bothDone {
		summary := stage.summary
		e.st.AppendEvent(events.SnapshotCompleted{
			Cycle:       cycle.ID,
			Registry:    stage.category.String(),
			TotalWeight: summary.TotalWeight,
			Eligible:    summary.Eligible,
			Invocation:  seq,
		}.Event())
		if pools != nil {
			if err := e.storePools(cycle.ID, pools); err != nil {
				return nil, err
			}
		}
	}
	if err := e.storeCycle(cycle); err != nil {
		return nil, err
	}
	if opened != nil {
		if err := e.storeCycle(opened); err != nil {
			return nil, err
		}
		e.st.AppendEvent(events.CycleFrozen{Cycle: cycle.ID, Invocation: seq}.Event())
		e.st.AppendEvent(events.CycleStarted{Cycle: opened.ID, StartAt: now}.Event())
	}
	if err := e.storeMeta(meta); err != nil {
		return nil, err
	}
	result.Phase = cycle.Phase
	return result, nil
}

// totalSnapshotWeight sums both registries' captured totals, reading the
// just-staged summary for the registry processed this call.
func (e *Engine) totalSnapshotWeight(cycleID uint64, stage *snapStage) (*big.Int, error) {
	total := big.NewInt(0)
	for _, c := range Categories {
		if c == stage.category {
			total.Add(total, stage.summary.TotalWeight)
			continue
		}
		summary, err := e.loadSnapshotSummary(cycleID, c)
		if err != nil {
			return nil, err
		}
		total.Add(total, summary.TotalWeight)
	}
	return total, nil
}
