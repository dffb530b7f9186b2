package distribution

import (
	"math/big"

	"epochpay/core/events"
)

// claimGuard is the single-entry execution lock around a manual claim. It is
// scoped: acquisition and release happen inside one engine call, with release
// deferred so every exit path unlocks. ForceRelease exists as the documented
// administrative override should the guard ever be observed stuck.
type claimGuard struct {
	held bool
}

func (g *claimGuard) acquire() bool {
	if g.held {
		return false
	}
	g.held = true
	return true
}

func (g *claimGuard) release() {
	g.held = false
}

// ForceReleaseClaimGuard unconditionally releases the manual-claim lock.
func (e *Engine) ForceReleaseClaimGuard() {
	e.claimGuard.release()
}

// ClaimManual pays the holder's proportional share of the manual pools frozen
// at allocation. One successful claim per holder per cycle; a failed push
// transfer aborts the call with nothing recorded, so the holder may retry.
func (e *Engine) ClaimManual(holder [20]byte) (*big.Int, error) {
	if err := e.collaborators(); err != nil {
		return nil, err
	}
	if !e.claimGuard.acquire() {
		return nil, ErrReentrancy
	}
	defer e.claimGuard.release()

	meta, err := e.requireMeta()
	if err != nil {
		return nil, err
	}
	if meta.ActiveCycle == 0 {
		return nil, ErrWrongPhase
	}
	cycle, err := e.loadCycle(meta.ActiveCycle)
	if err != nil {
		return nil, err
	}
	if cycle.Phase != PhaseDistributing {
		return nil, ErrWrongPhase
	}
	claim, err := e.loadClaim(cycle.ID, holder)
	if err != nil {
		return nil, err
	}
	if claim.ManualClaimed {
		return nil, ErrAlreadyClaimed
	}

	snapshotted := false
	for _, c := range Categories {
		_, ok, err := e.snapshotWeight(cycle.ID, c, holder)
		if err != nil {
			return nil, err
		}
		if ok {
			snapshotted = true
			break
		}
	}
	if !snapshotted {
		return nil, ErrBelowThreshold
	}

	pools, err := e.loadPools(cycle.ID)
	if err != nil {
		return nil, err
	}
	total, components, err := e.combinedShare(cycle.ID, holder, pools.ManualInitial)
	if err != nil {
		return nil, err
	}
	if total.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}

	// A rejected transfer is fatal here: this is a direct user request, not a
	// batch, and nothing has been recorded yet.
	if err := e.transfer.Transfer(holder, total); err != nil {
		return nil, err
	}

	for c, component := range components {
		pools.setManual(c, decrementPool(pools.Manual(c), component))
	}
	claim.ManualClaimed = true
	if err := e.storePools(cycle.ID, pools); err != nil {
		return nil, err
	}
	if err := e.storeClaim(cycle.ID, holder, claim); err != nil {
		return nil, err
	}
	if err := e.addLifetime(holder, total); err != nil {
		return nil, err
	}
	meta.Invocations++
	if err := e.storeMeta(meta); err != nil {
		return nil, err
	}
	e.st.AppendEvent(events.ManualClaimed{Cycle: cycle.ID, Holder: holder, Amount: total}.Event())
	return new(big.Int).Set(total), nil
}
