package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"epochpay/core/types"
)

const (
	TypeDistributionDeposit  = "distribution.deposited"
	TypeCycleStarted         = "distribution.cycle.started"
	TypeCycleFrozen          = "distribution.cycle.frozen"
	TypeSnapshotWindow       = "distribution.snapshot.window"
	TypeSnapshotCompleted    = "distribution.snapshot.completed"
	TypePoolsAllocated       = "distribution.pools.allocated"
	TypePayoutPaid           = "distribution.payout.paid"
	TypePayoutFailed         = "distribution.payout.failed"
	TypeManualClaimed        = "distribution.claim.manual"
	TypeCycleSwept           = "distribution.cycle.swept"
	TypeCycleClosed          = "distribution.cycle.closed"
	TypeDistributionSkipped  = "distribution.cycle.skipped"
	TypeParamsUpdated        = "distribution.params.updated"
	TypeRegistryHolderSet    = "registry.holder.set"
	TypeRegistryHolderRemove = "registry.holder.removed"
)

// DistributionDeposit is emitted when the funding source apportions inbound
// value into the accumulating cycle's category pools.
type DistributionDeposit struct {
	Cycle         uint64
	From          [20]byte
	Amount        *big.Int
	PointsPortion *big.Int
}

func (DistributionDeposit) EventType() string { return TypeDistributionDeposit }

func (e DistributionDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypeDistributionDeposit,
		Attributes: map[string]string{
			"cycle":  uintString(e.Cycle),
			"from":   addrString(e.From),
			"amount": formatAmount(e.Amount),
			"points": formatAmount(e.PointsPortion),
		},
	}
}

// CycleStarted marks the opening of a new accumulation phase.
type CycleStarted struct {
	Cycle   uint64
	StartAt uint64
}

func (CycleStarted) EventType() string { return TypeCycleStarted }

func (e CycleStarted) Event() *types.Event {
	return &types.Event{
		Type: TypeCycleStarted,
		Attributes: map[string]string{
			"cycle":   uintString(e.Cycle),
			"startAt": uintString(e.StartAt),
		},
	}
}

// CycleFrozen marks the moment a cycle stops accepting deposits and enters
// the snapshot phase.
type CycleFrozen struct {
	Cycle      uint64
	Invocation uint64
}

func (CycleFrozen) EventType() string { return TypeCycleFrozen }

func (e CycleFrozen) Event() *types.Event {
	return &types.Event{
		Type: TypeCycleFrozen,
		Attributes: map[string]string{
			"cycle":      uintString(e.Cycle),
			"invocation": uintString(e.Invocation),
		},
	}
}

// SnapshotWindow reports one processed snapshot batch window.
type SnapshotWindow struct {
	Cycle     uint64
	Registry  string
	Cursor    uint64
	Locked    uint64
	Processed uint64
	Done      bool
}

func (SnapshotWindow) EventType() string { return TypeSnapshotWindow }

func (e SnapshotWindow) Event() *types.Event {
	return &types.Event{
		Type: TypeSnapshotWindow,
		Attributes: map[string]string{
			"cycle":     uintString(e.Cycle),
			"registry":  e.Registry,
			"cursor":    uintString(e.Cursor),
			"locked":    uintString(e.Locked),
			"processed": uintString(e.Processed),
			"done":      strconv.FormatBool(e.Done),
		},
	}
}

// SnapshotCompleted reports the immutable totals captured for one registry.
type SnapshotCompleted struct {
	Cycle       uint64
	Registry    string
	TotalWeight *big.Int
	Eligible    uint64
	Invocation  uint64
}

func (SnapshotCompleted) EventType() string { return TypeSnapshotCompleted }

func (e SnapshotCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypeSnapshotCompleted,
		Attributes: map[string]string{
			"cycle":       uintString(e.Cycle),
			"registry":    e.Registry,
			"totalWeight": formatAmount(e.TotalWeight),
			"eligible":    uintString(e.Eligible),
			"invocation":  uintString(e.Invocation),
		},
	}
}

// PoolsAllocated reports the bulk conversion outcome and the resulting
// per-category distributable pools.
type PoolsAllocated struct {
	Cycle         uint64
	Converted     *big.Int
	AutoPoints    *big.Int
	ManualPoints  *big.Int
	AutoBalance   *big.Int
	ManualBalance *big.Int
}

func (PoolsAllocated) EventType() string { return TypePoolsAllocated }

func (e PoolsAllocated) Event() *types.Event {
	return &types.Event{
		Type: TypePoolsAllocated,
		Attributes: map[string]string{
			"cycle":         uintString(e.Cycle),
			"converted":     formatAmount(e.Converted),
			"autoPoints":    formatAmount(e.AutoPoints),
			"manualPoints":  formatAmount(e.ManualPoints),
			"autoBalance":   formatAmount(e.AutoBalance),
			"manualBalance": formatAmount(e.ManualBalance),
		},
	}
}

// PayoutPaid reports a successful push transfer of an auto share.
type PayoutPaid struct {
	Cycle  uint64
	Holder [20]byte
	Amount *big.Int
}

func (PayoutPaid) EventType() string { return TypePayoutPaid }

func (e PayoutPaid) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutPaid,
		Attributes: map[string]string{
			"cycle":  uintString(e.Cycle),
			"holder": addrString(e.Holder),
			"amount": formatAmount(e.Amount),
		},
	}
}

// PayoutFailed reports a push transfer rejected by the recipient. The batch
// continues; the share stays in the pool until the cycle is swept.
type PayoutFailed struct {
	Cycle  uint64
	Holder [20]byte
	Amount *big.Int
	Reason string
}

func (PayoutFailed) EventType() string { return TypePayoutFailed }

func (e PayoutFailed) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutFailed,
		Attributes: map[string]string{
			"cycle":  uintString(e.Cycle),
			"holder": addrString(e.Holder),
			"amount": formatAmount(e.Amount),
			"reason": e.Reason,
		},
	}
}

// ManualClaimed reports a holder-initiated pull claim.
type ManualClaimed struct {
	Cycle  uint64
	Holder [20]byte
	Amount *big.Int
}

func (ManualClaimed) EventType() string { return TypeManualClaimed }

func (e ManualClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeManualClaimed,
		Attributes: map[string]string{
			"cycle":  uintString(e.Cycle),
			"holder": addrString(e.Holder),
			"amount": formatAmount(e.Amount),
		},
	}
}

// CycleSwept reports the leftover consolidation pushed to the treasury.
type CycleSwept struct {
	Cycle       uint64
	Canonical   *big.Int
	Converted   *big.Int
	Unconverted *big.Int
	Treasury    [20]byte
}

func (CycleSwept) EventType() string { return TypeCycleSwept }

func (e CycleSwept) Event() *types.Event {
	return &types.Event{
		Type: TypeCycleSwept,
		Attributes: map[string]string{
			"cycle":       uintString(e.Cycle),
			"canonical":   formatAmount(e.Canonical),
			"converted":   formatAmount(e.Converted),
			"unconverted": formatAmount(e.Unconverted),
			"treasury":    addrString(e.Treasury),
		},
	}
}

// CycleClosed marks the end of a cycle's lifecycle.
type CycleClosed struct {
	Cycle    uint64
	ClosedAt uint64
	Forced   bool
}

func (CycleClosed) EventType() string { return TypeCycleClosed }

func (e CycleClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeCycleClosed,
		Attributes: map[string]string{
			"cycle":    uintString(e.Cycle),
			"closedAt": uintString(e.ClosedAt),
			"forced":   strconv.FormatBool(e.Forced),
		},
	}
}

// DistributionSkipped marks a cycle closed without a distribution phase
// because no registry captured eligible weight.
type DistributionSkipped struct {
	Cycle uint64
}

func (DistributionSkipped) EventType() string { return TypeDistributionSkipped }

func (e DistributionSkipped) Event() *types.Event {
	return &types.Event{
		Type: TypeDistributionSkipped,
		Attributes: map[string]string{
			"cycle": uintString(e.Cycle),
		},
	}
}

// ParamsUpdated marks the installation of a new engine configuration.
type ParamsUpdated struct {
	Treasury [20]byte
}

func (ParamsUpdated) EventType() string { return TypeParamsUpdated }

func (e ParamsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeParamsUpdated,
		Attributes: map[string]string{
			"treasury": addrString(e.Treasury),
		},
	}
}

// RegistryHolderSet reports an installed or updated registry weight.
type RegistryHolderSet struct {
	Registry string
	Holder   [20]byte
	Weight   *big.Int
}

func (RegistryHolderSet) EventType() string { return TypeRegistryHolderSet }

func (e RegistryHolderSet) Event() *types.Event {
	return &types.Event{
		Type: TypeRegistryHolderSet,
		Attributes: map[string]string{
			"registry": e.Registry,
			"holder":   addrString(e.Holder),
			"weight":   formatAmount(e.Weight),
		},
	}
}

// RegistryHolderRemoved reports a holder dropped from a registry.
type RegistryHolderRemoved struct {
	Registry string
	Holder   [20]byte
}

func (RegistryHolderRemoved) EventType() string { return TypeRegistryHolderRemove }

func (e RegistryHolderRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeRegistryHolderRemove,
		Attributes: map[string]string{
			"registry": e.Registry,
			"holder":   addrString(e.Holder),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func addrString(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
