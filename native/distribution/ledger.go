package distribution

import (
	"fmt"
	"math/big"

	"epochpay/core/events"
)

// Persistence helpers. Every record is RLP encoded by the state manager;
// loaders return zeroed defaults for absent records so callers never branch on
// existence, except loadCycle which treats a missing cycle as corruption.

func (e *Engine) loadMeta() (*engineMeta, error) {
	meta := &engineMeta{}
	ok, err := e.st.KVGet(metaKeyBytes, meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return meta, nil
}

func (e *Engine) storeMeta(meta *engineMeta) error {
	return e.st.KVPut(metaKeyBytes, meta)
}

func (e *Engine) loadParams() (Params, error) {
	params := Params{}
	ok, err := e.st.KVGet(paramsKeyBytes, &params)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return DefaultParams(), nil
	}
	if params.OperationalBuffer == nil {
		params.OperationalBuffer = big.NewInt(0)
	}
	return params, nil
}

// StoreParams validates and installs a new configuration record atomically.
func (e *Engine) StoreParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	normalized := params.Copy()
	if err := e.st.KVPut(paramsKeyBytes, &normalized); err != nil {
		return err
	}
	e.st.AppendEvent(events.ParamsUpdated{Treasury: normalized.Treasury}.Event())
	return nil
}

// LoadParams exposes the active configuration.
func (e *Engine) LoadParams() (Params, error) {
	params, err := e.loadParams()
	if err != nil {
		return Params{}, err
	}
	return params.Copy(), nil
}

func (e *Engine) loadCycle(id uint64) (*Cycle, error) {
	cycle := &Cycle{}
	ok, err := e.st.KVGet(cycleKey(id), cycle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("distribution: cycle %d not found", id)
	}
	return cycle, nil
}

func (e *Engine) storeCycle(cycle *Cycle) error {
	return e.st.KVPut(cycleKey(cycle.ID), cycle)
}

func (e *Engine) loadPools(id uint64) (*PoolSet, error) {
	pools := &PoolSet{}
	ok, err := e.st.KVGet(poolsKey(id), pools)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewPoolSet(), nil
	}
	pools.normalize()
	return pools, nil
}

func (e *Engine) storePools(id uint64, pools *PoolSet) error {
	pools.normalize()
	return e.st.KVPut(poolsKey(id), pools)
}

func (e *Engine) loadSnapshotSummary(id uint64, c Category) (*SnapshotSummary, error) {
	summary := &SnapshotSummary{}
	ok, err := e.st.KVGet(snapSummaryKey(id, c), summary)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &SnapshotSummary{TotalWeight: big.NewInt(0)}, nil
	}
	if summary.TotalWeight == nil {
		summary.TotalWeight = big.NewInt(0)
	}
	return summary, nil
}

func (e *Engine) storeSnapshotSummary(id uint64, c Category, summary *SnapshotSummary) error {
	if summary.TotalWeight == nil {
		summary.TotalWeight = big.NewInt(0)
	}
	return e.st.KVPut(snapSummaryKey(id, c), summary)
}

func (e *Engine) snapshotWeight(id uint64, c Category, holder [20]byte) (*big.Int, bool, error) {
	weight := new(big.Int)
	ok, err := e.st.KVGet(snapWeightKey(id, c, holder), weight)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return big.NewInt(0), false, nil
	}
	return weight, true, nil
}

func (e *Engine) storeSnapshotWeight(id uint64, c Category, holder [20]byte, weight *big.Int) error {
	return e.st.KVPut(snapWeightKey(id, c, holder), weight)
}

func (e *Engine) loadProgress(key []byte) (*BatchProgress, error) {
	progress := &BatchProgress{}
	ok, err := e.st.KVGet(key, progress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &BatchProgress{}, nil
	}
	return progress, nil
}

func (e *Engine) storeProgress(key []byte, progress *BatchProgress) error {
	return e.st.KVPut(key, progress)
}

func (e *Engine) loadClaim(id uint64, holder [20]byte) (*ClaimRecord, error) {
	claim := &ClaimRecord{}
	ok, err := e.st.KVGet(claimKey(id, holder), claim)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ClaimRecord{}, nil
	}
	return claim, nil
}

func (e *Engine) storeClaim(id uint64, holder [20]byte, claim *ClaimRecord) error {
	return e.st.KVPut(claimKey(id, holder), claim)
}

// LifetimeTotal returns the running total of value ever paid to the holder.
func (e *Engine) LifetimeTotal(holder [20]byte) (*big.Int, error) {
	total := new(big.Int)
	ok, err := e.st.KVGet(lifetimeKey(holder), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

func (e *Engine) addLifetime(holder [20]byte, amount *big.Int) error {
	total, err := e.LifetimeTotal(holder)
	if err != nil {
		return err
	}
	return e.st.KVPut(lifetimeKey(holder), new(big.Int).Add(total, amount))
}
