package distribution

import (
	"math/big"

	"epochpay/core/events"
)

// Engine is the periodic proportional distribution state machine. It owns no
// goroutines and never blocks: every method performs one bounded unit of work
// against injected collaborators and persists its progress before returning.
// The surrounding node serializes calls, so the engine assumes a single
// writer.
type Engine struct {
	st       State
	points   HolderRegistry
	balance  HolderRegistry
	transfer Transferor
	convert  Converter

	claimGuard claimGuard
}

// NewEngine constructs an engine bound to the provided state. Registries,
// transferor, and converter are injected after construction to break the
// circular wiring between the engine and its collaborators; they are validated
// non-nil at use time.
func NewEngine(st State) *Engine {
	return &Engine{st: st}
}

// SetRegistry installs the holder registry for a category.
func (e *Engine) SetRegistry(c Category, reg HolderRegistry) {
	if c == CategoryPoints {
		e.points = reg
	} else {
		e.balance = reg
	}
}

// SetTransferor installs the push-transfer collaborator.
func (e *Engine) SetTransferor(t Transferor) {
	e.transfer = t
}

// SetConverter installs the bulk conversion collaborator.
func (e *Engine) SetConverter(c Converter) {
	e.convert = c
}

func (e *Engine) registry(c Category) HolderRegistry {
	if c == CategoryPoints {
		return e.points
	}
	return e.balance
}

func (e *Engine) collaborators() error {
	if e.points == nil || e.balance == nil || e.transfer == nil || e.convert == nil {
		return ErrCollaboratorUnset
	}
	return nil
}

// Bootstrap initialises the engine state on first boot: cycle 1 starts
// accumulating immediately. Subsequent boots are no-ops.
func (e *Engine) Bootstrap(now uint64) error {
	meta, err := e.loadMeta()
	if err != nil {
		return err
	}
	if meta != nil {
		return nil
	}
	meta = &engineMeta{AccumulatingCycle: 1}
	first := &Cycle{ID: 1, Phase: PhaseAccumulating, AccumulationStart: now}
	if err := e.storeCycle(first); err != nil {
		return err
	}
	if err := e.storeMeta(meta); err != nil {
		return err
	}
	e.st.AppendEvent(events.CycleStarted{Cycle: first.ID, StartAt: now}.Event())
	return nil
}

// requireMeta loads the singleton meta record, failing if Bootstrap never ran.
func (e *Engine) requireMeta() (*engineMeta, error) {
	meta, err := e.loadMeta()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrNoActiveCycle
	}
	return meta, nil
}

// share computes floor(pool * weight / total), the exact fixed-point
// proportional share. A zero total yields zero.
func share(pool, weight, total *big.Int) *big.Int {
	if pool == nil || weight == nil || total == nil || total.Sign() <= 0 || weight.Sign() <= 0 || pool.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(pool, weight)
	return out.Quo(out, total)
}

// applyBps returns floor(amount * bps / BpsDenominator).
func applyBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(BpsDenominator))
}

// combinedShare sums the holder's proportional components across both
// category pools against the figures frozen at allocation. The returned map
// carries the per-category components for pool bookkeeping.
func (e *Engine) combinedShare(cycleID uint64, holder [20]byte, poolOf func(Category) *big.Int) (*big.Int, map[Category]*big.Int, error) {
	total := big.NewInt(0)
	components := make(map[Category]*big.Int, len(Categories))
	for _, c := range Categories {
		weight, ok, err := e.snapshotWeight(cycleID, c, holder)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		summary, err := e.loadSnapshotSummary(cycleID, c)
		if err != nil {
			return nil, nil, err
		}
		component := share(poolOf(c), weight, summary.TotalWeight)
		if component.Sign() <= 0 {
			continue
		}
		components[c] = component
		total.Add(total, component)
	}
	return total, components, nil
}

// decrementPool subtracts paid from the live pool, clamping at zero so
// rounding can never drive a pool negative.
func decrementPool(pool, paid *big.Int) *big.Int {
	if paid == nil || paid.Sign() <= 0 {
		return pool
	}
	out := new(big.Int).Sub(pool, paid)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}
