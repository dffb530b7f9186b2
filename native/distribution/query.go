package distribution

import "math/big"

// Status is the engine-level view: which cycle accumulates, which distributes.
type Status struct {
	AccumulatingCycle uint64
	ActiveCycle       uint64
	Invocations       uint64
}

// EngineStatus returns the current engine-level cycle pointers.
func (e *Engine) EngineStatus() (*Status, error) {
	meta, err := e.requireMeta()
	if err != nil {
		return nil, err
	}
	return &Status{
		AccumulatingCycle: meta.AccumulatingCycle,
		ActiveCycle:       meta.ActiveCycle,
		Invocations:       meta.Invocations,
	}, nil
}

// GetCycle returns the stored cycle record.
func (e *Engine) GetCycle(id uint64) (*Cycle, error) {
	cycle, err := e.loadCycle(id)
	if err != nil {
		return nil, err
	}
	clone := *cycle
	return &clone, nil
}

// PoolBalances returns a copy of the cycle's pool accounting.
func (e *Engine) PoolBalances(id uint64) (*PoolSet, error) {
	pools, err := e.loadPools(id)
	if err != nil {
		return nil, err
	}
	clone := &PoolSet{
		AccumulatedPoints:    copyBigInt(pools.AccumulatedPoints),
		AccumulatedBalance:   copyBigInt(pools.AccumulatedBalance),
		AutoPoints:           copyBigInt(pools.AutoPoints),
		AutoBalance:          copyBigInt(pools.AutoBalance),
		ManualPoints:         copyBigInt(pools.ManualPoints),
		ManualBalance:        copyBigInt(pools.ManualBalance),
		AutoPointsInitial:    copyBigInt(pools.AutoPointsInitial),
		AutoBalanceInitial:   copyBigInt(pools.AutoBalanceInitial),
		ManualPointsInitial:  copyBigInt(pools.ManualPointsInitial),
		ManualBalanceInitial: copyBigInt(pools.ManualBalanceInitial),
		Allocated:            pools.Allocated,
	}
	return clone, nil
}

// ProgressInfo reports resumable-batch progress for one registry pass.
type ProgressInfo struct {
	Cursor      uint64
	LockedCount uint64
	Done        bool
}

// SnapshotProgress reports the snapshot batch cursor for a registry.
func (e *Engine) SnapshotProgress(id uint64, c Category) (*ProgressInfo, error) {
	progress, err := e.loadProgress(snapProgressKey(id, c))
	if err != nil {
		return nil, err
	}
	return &ProgressInfo{Cursor: progress.Cursor, LockedCount: progress.LockedCount, Done: progress.Done}, nil
}

// DistributionProgress reports the payout batch cursor for a registry.
func (e *Engine) DistributionProgress(id uint64, c Category) (*ProgressInfo, error) {
	progress, err := e.loadProgress(distProgressKey(id, c))
	if err != nil {
		return nil, err
	}
	return &ProgressInfo{Cursor: progress.Cursor, LockedCount: progress.LockedCount, Done: progress.Done}, nil
}

// SnapshotTotals returns the captured total weight and eligible count for a
// registry.
func (e *Engine) SnapshotTotals(id uint64, c Category) (*SnapshotSummary, error) {
	summary, err := e.loadSnapshotSummary(id, c)
	if err != nil {
		return nil, err
	}
	return &SnapshotSummary{
		TotalWeight: copyBigInt(summary.TotalWeight),
		Eligible:    summary.Eligible,
		Done:        summary.Done,
	}, nil
}

// Claimable reports the holder's still-pending auto and manual shares for the
// active distribution cycle; both are zero when no cycle is distributing or
// the holder already claimed.
func (e *Engine) Claimable(holder [20]byte) (auto, manual *big.Int, err error) {
	auto, manual = big.NewInt(0), big.NewInt(0)
	meta, err := e.requireMeta()
	if err != nil {
		return nil, nil, err
	}
	if meta.ActiveCycle == 0 {
		return auto, manual, nil
	}
	cycle, err := e.loadCycle(meta.ActiveCycle)
	if err != nil {
		return nil, nil, err
	}
	if cycle.Phase != PhaseDistributing {
		return auto, manual, nil
	}
	pools, err := e.loadPools(cycle.ID)
	if err != nil {
		return nil, nil, err
	}
	claim, err := e.loadClaim(cycle.ID, holder)
	if err != nil {
		return nil, nil, err
	}
	if !claim.AutoClaimed {
		auto, _, err = e.combinedShare(cycle.ID, holder, pools.AutoInitial)
		if err != nil {
			return nil, nil, err
		}
	}
	if !claim.ManualClaimed {
		manual, _, err = e.combinedShare(cycle.ID, holder, pools.ManualInitial)
		if err != nil {
			return nil, nil, err
		}
	}
	return auto, manual, nil
}

// ClaimStatus returns the holder's idempotence flags for a cycle.
func (e *Engine) ClaimStatus(id uint64, holder [20]byte) (*ClaimRecord, error) {
	claim, err := e.loadClaim(id, holder)
	if err != nil {
		return nil, err
	}
	return &ClaimRecord{AutoClaimed: claim.AutoClaimed, ManualClaimed: claim.ManualClaimed}, nil
}

// TimeRemaining reports the seconds left before the accumulating cycle may be
// frozen, zero once the interval has elapsed.
func (e *Engine) TimeRemaining(now uint64) (uint64, error) {
	params, err := e.loadParams()
	if err != nil {
		return 0, err
	}
	meta, err := e.requireMeta()
	if err != nil {
		return 0, err
	}
	cycle, err := e.loadCycle(meta.AccumulatingCycle)
	if err != nil {
		return 0, err
	}
	deadline := cycle.AccumulationStart + params.MinCycleInterval
	if now >= deadline {
		return 0, nil
	}
	return deadline - now, nil
}

// PendingDistribution reports how many locked holders remain unprocessed per
// registry for the active cycle.
func (e *Engine) PendingDistribution() (map[string]uint64, error) {
	pending := make(map[string]uint64, len(Categories))
	meta, err := e.requireMeta()
	if err != nil {
		return nil, err
	}
	if meta.ActiveCycle == 0 {
		return pending, nil
	}
	for _, c := range Categories {
		progress, err := e.loadProgress(distProgressKey(meta.ActiveCycle, c))
		if err != nil {
			return nil, err
		}
		if progress.Locked && progress.LockedCount > progress.Cursor {
			pending[c.String()] = progress.LockedCount - progress.Cursor
		} else {
			pending[c.String()] = 0
		}
	}
	return pending, nil
}
