package distribution

import "math/big"

// Phase enumerates the epoch state machine. Transitions are strictly
// sequential; SnapshotDone is passed through within the advancing call that
// completes the second registry snapshot.
type Phase uint8

const (
	PhaseAccumulating Phase = iota + 1
	PhaseSnapshotInProgress
	PhaseSnapshotDone
	PhaseDistributing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseAccumulating:
		return "accumulating"
	case PhaseSnapshotInProgress:
		return "snapshot_in_progress"
	case PhaseSnapshotDone:
		return "snapshot_done"
	case PhaseDistributing:
		return "distributing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Category identifies one of the two eligibility registries and the pool
// family funded for it.
type Category uint8

const (
	CategoryPoints Category = iota
	CategoryBalance
)

// Categories lists the registries in deterministic processing order.
var Categories = []Category{CategoryPoints, CategoryBalance}

func (c Category) String() string {
	switch c {
	case CategoryPoints:
		return "points"
	case CategoryBalance:
		return "balance"
	default:
		return "unknown"
	}
}

// Cycle is one accumulation-to-close period. SnapshotInvocation records the
// invocation sequence of the call that completed both registry snapshots and
// acts as the replay guard for the distribution transition.
type Cycle struct {
	ID                 uint64
	Phase              Phase
	AccumulationStart  uint64
	DistributionStart  uint64
	SnapshotInvocation uint64
	ClosedAt           uint64
}

// PoolSet carries all per-cycle value accounting. Accumulated amounts are in
// inbound units; the remaining fields are canonical payout units populated
// once by the allocator. Initial figures are frozen at allocation so shares
// stay proportional regardless of batch ordering; the live figures are
// decremented as value leaves the cycle.
type PoolSet struct {
	AccumulatedPoints  *big.Int
	AccumulatedBalance *big.Int

	AutoPoints    *big.Int
	AutoBalance   *big.Int
	ManualPoints  *big.Int
	ManualBalance *big.Int

	AutoPointsInitial    *big.Int
	AutoBalanceInitial   *big.Int
	ManualPointsInitial  *big.Int
	ManualBalanceInitial *big.Int

	Allocated bool
}

// NewPoolSet returns a pool set with all balances zeroed.
func NewPoolSet() *PoolSet {
	p := &PoolSet{}
	p.normalize()
	return p
}

func (p *PoolSet) normalize() {
	fields := []**big.Int{
		&p.AccumulatedPoints, &p.AccumulatedBalance,
		&p.AutoPoints, &p.AutoBalance, &p.ManualPoints, &p.ManualBalance,
		&p.AutoPointsInitial, &p.AutoBalanceInitial,
		&p.ManualPointsInitial, &p.ManualBalanceInitial,
	}
	for _, field := range fields {
		if *field == nil {
			*field = big.NewInt(0)
		}
	}
}

// Accumulated returns the inbound-unit balance for the category.
func (p *PoolSet) Accumulated(c Category) *big.Int {
	if c == CategoryPoints {
		return p.AccumulatedPoints
	}
	return p.AccumulatedBalance
}

// Auto returns the live auto pool for the category.
func (p *PoolSet) Auto(c Category) *big.Int {
	if c == CategoryPoints {
		return p.AutoPoints
	}
	return p.AutoBalance
}

// Manual returns the live manual pool for the category.
func (p *PoolSet) Manual(c Category) *big.Int {
	if c == CategoryPoints {
		return p.ManualPoints
	}
	return p.ManualBalance
}

// AutoInitial returns the auto pool frozen at allocation for the category.
func (p *PoolSet) AutoInitial(c Category) *big.Int {
	if c == CategoryPoints {
		return p.AutoPointsInitial
	}
	return p.AutoBalanceInitial
}

// ManualInitial returns the manual pool frozen at allocation for the category.
func (p *PoolSet) ManualInitial(c Category) *big.Int {
	if c == CategoryPoints {
		return p.ManualPointsInitial
	}
	return p.ManualBalanceInitial
}

func (p *PoolSet) setAuto(c Category, v *big.Int) {
	if c == CategoryPoints {
		p.AutoPoints = v
	} else {
		p.AutoBalance = v
	}
}

func (p *PoolSet) setManual(c Category, v *big.Int) {
	if c == CategoryPoints {
		p.ManualPoints = v
	} else {
		p.ManualBalance = v
	}
}

// zero clears every live balance; called by the sweeper at close. The frozen
// initial figures survive for historical queries.
func (p *PoolSet) zero() {
	p.AccumulatedPoints = big.NewInt(0)
	p.AccumulatedBalance = big.NewInt(0)
	p.AutoPoints = big.NewInt(0)
	p.AutoBalance = big.NewInt(0)
	p.ManualPoints = big.NewInt(0)
	p.ManualBalance = big.NewInt(0)
}

// SnapshotSummary aggregates one registry's captured snapshot. Immutable once
// Done is set.
type SnapshotSummary struct {
	TotalWeight *big.Int
	Eligible    uint64
	Done        bool
}

// BatchProgress is the persisted cursor for a resumable registry pass. The
// locked count bounds the iteration even if the live registry grows.
type BatchProgress struct {
	Cursor      uint64
	LockedCount uint64
	Locked      bool
	Done        bool
}

// ClaimRecord holds the per-cycle, per-holder idempotence flags. A true flag
// is never reset.
type ClaimRecord struct {
	AutoClaimed   bool
	ManualClaimed bool
}

// engineMeta is the singleton engine record: which cycle is accepting
// deposits, which (if any) is in snapshot/distribution, and the monotonically
// increasing invocation sequence.
type engineMeta struct {
	AccumulatingCycle uint64
	ActiveCycle       uint64
	Invocations       uint64
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
