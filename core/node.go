package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/jonboulle/clockwork"

	"epochpay/core/events"
	"epochpay/core/state"
	"epochpay/core/types"
	"epochpay/native/distribution"
	"epochpay/native/registry"
	"epochpay/observability/metrics"
	"epochpay/storage"
)

// Node is the central controller, wiring the distribution engine to its
// state, registries, and collaborators. All engine calls are serialized
// behind a single mutex: the engine assumes one writer and the node is it.
type Node struct {
	db       storage.Database
	state    *state.Manager
	engine   *distribution.Engine
	points   *registry.Registry
	balance  *registry.Registry
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *metrics.DistributionMetrics
	engineMu sync.Mutex
}

// ledgerTransferor pushes canonical value onto holder accounts.
type ledgerTransferor struct {
	st *state.Manager
}

func (t ledgerTransferor) Transfer(to [20]byte, amount *big.Int) error {
	return t.st.Credit(to, amount)
}

// NewNode opens the state over the provided database and wires the engine.
// When initialParams is non-nil and no parameters are stored yet, it is
// installed as the boot configuration.
func NewNode(db storage.Database, clock clockwork.Clock, logger *slog.Logger, initialParams *distribution.Params) (*Node, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	engine := distribution.NewEngine(manager)
	points := registry.New(manager, distribution.CategoryPoints.String())
	balance := registry.New(manager, distribution.CategoryBalance.String())

	node := &Node{
		db:      db,
		state:   manager,
		engine:  engine,
		points:  points,
		balance: balance,
		clock:   clock,
		logger:  logger,
		metrics: metrics.Distribution(),
	}

	stored, err := engine.LoadParams()
	if err != nil {
		return nil, err
	}
	if initialParams != nil {
		ok, err := manager.KVGet(paramsStateKey, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := engine.StoreParams(*initialParams); err != nil {
				return nil, fmt.Errorf("install boot parameters: %w", err)
			}
			stored = initialParams.Copy()
		}
	}

	engine.SetRegistry(distribution.CategoryPoints, points)
	engine.SetRegistry(distribution.CategoryBalance, balance)
	engine.SetTransferor(ledgerTransferor{st: manager})
	if err := node.installConverter(stored); err != nil {
		return nil, err
	}
	if err := engine.Bootstrap(node.now()); err != nil {
		return nil, err
	}
	node.drainEvents()
	return node, nil
}

// paramsStateKey mirrors the engine's configuration key so the node can tell
// a first boot apart from a restart.
var paramsStateKey = []byte("dist/params")

func (n *Node) installConverter(params distribution.Params) error {
	converter, err := distribution.NewRateConverter(params.ConvertRateNum, params.ConvertRateDen, params.ConvertFeeBps)
	if err != nil {
		return err
	}
	n.engine.SetConverter(converter)
	return nil
}

func (n *Node) now() uint64 {
	ts := n.clock.Now().UTC().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// drainEvents logs every event buffered during the last engine call.
func (n *Node) drainEvents() {
	for _, evt := range n.state.DrainEvents() {
		attrs := make([]any, 0, len(evt.Attributes)*2)
		for k, v := range evt.Attributes {
			attrs = append(attrs, slog.String(k, v))
		}
		n.logger.Info(evt.Type, attrs...)
	}
}

// Deposit apportions inbound value from the funding source into the current
// accumulating cycle.
func (n *Node) Deposit(from [20]byte, amount *big.Int) (uint64, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	cycle, err := n.engine.Deposit(from, amount)
	n.drainEvents()
	if err != nil {
		return 0, err
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	n.metrics.RecordDeposit(value)
	n.publishPools(cycle)
	return cycle, nil
}

// AdvanceEpoch drives one unit of snapshot/transition work.
func (n *Node) AdvanceEpoch(caller [20]byte) (*distribution.AdvanceResult, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	result, err := n.engine.AdvanceEpoch(caller, n.now())
	n.drainEvents()
	if err != nil {
		return nil, err
	}
	if result.Registry != "" {
		progress, perr := n.engine.SnapshotProgress(result.Cycle, categoryByName(result.Registry))
		if perr == nil {
			n.metrics.SetSnapshotCursor(result.Registry, float64(progress.Cursor))
		}
	}
	n.publishPools(result.Cycle)
	return result, nil
}

// DistributeAuto drives one payout window; callable by anyone.
func (n *Node) DistributeAuto() (*distribution.DistributeResult, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	result, err := n.engine.DistributeAuto()
	n.drainEvents()
	if err != nil {
		return nil, err
	}
	n.metrics.RecordPayouts(result.Paid, result.Failed)
	if result.Active {
		n.publishPools(result.Cycle)
	}
	return result, nil
}

// ClaimManual executes a holder-initiated pull claim.
func (n *Node) ClaimManual(holder [20]byte) (*big.Int, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	amount, err := n.engine.ClaimManual(holder)
	n.drainEvents()
	if err != nil {
		return nil, err
	}
	n.metrics.RecordManualClaim()
	return amount, nil
}

// FlushDistributions force-drives payout windows until done or maxWindows.
func (n *Node) FlushDistributions(caller [20]byte, maxWindows int) (*distribution.DistributeResult, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	result, err := n.engine.FlushDistributions(caller, maxWindows)
	n.drainEvents()
	if err != nil {
		return nil, err
	}
	n.metrics.RecordPayouts(result.Paid, result.Failed)
	return result, nil
}

// CloseCycle flushes, sweeps, and closes the active cycle.
func (n *Node) CloseCycle(caller [20]byte) (*distribution.CloseResult, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	result, err := n.engine.CloseCycle(caller, n.now())
	n.drainEvents()
	if err != nil {
		return nil, err
	}
	n.recordClose(result)
	return result, nil
}

// ForceReset sweeps and closes the active cycle unconditionally and releases
// the manual-claim guard.
func (n *Node) ForceReset(caller [20]byte) (*distribution.CloseResult, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	result, err := n.engine.ForceReset(caller, n.now())
	n.drainEvents()
	if err != nil {
		return nil, err
	}
	n.metrics.RecordClaimGuardReset()
	n.recordClose(result)
	return result, nil
}

func (n *Node) recordClose(result *distribution.CloseResult) {
	if result == nil {
		return
	}
	if result.Swept != nil {
		value, _ := new(big.Float).SetInt(result.Swept).Float64()
		n.metrics.RecordSweep(result.Cycle, value)
		n.metrics.RecordDust(result.Cycle, value)
	}
	n.publishPools(result.Cycle)
}

func (n *Node) publishPools(cycle uint64) {
	pools, err := n.engine.PoolBalances(cycle)
	if err != nil {
		return
	}
	for _, c := range distribution.Categories {
		auto, _ := new(big.Float).SetInt(pools.Auto(c)).Float64()
		manual, _ := new(big.Float).SetInt(pools.Manual(c)).Float64()
		n.metrics.SetPoolBalance(c.String(), "auto", auto)
		n.metrics.SetPoolBalance(c.String(), "manual", manual)
	}
}

func categoryByName(name string) distribution.Category {
	if name == distribution.CategoryBalance.String() {
		return distribution.CategoryBalance
	}
	return distribution.CategoryPoints
}

// --- queries ---

// EngineStatus returns cycle pointers and the invocation sequence.
func (n *Node) EngineStatus() (*distribution.Status, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.EngineStatus()
}

// CycleInfo returns the stored cycle record.
func (n *Node) CycleInfo(id uint64) (*distribution.Cycle, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.GetCycle(id)
}

// PoolBalances returns the cycle's pool accounting.
func (n *Node) PoolBalances(id uint64) (*distribution.PoolSet, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.PoolBalances(id)
}

// Claimable returns the holder's pending auto and manual shares.
func (n *Node) Claimable(holder [20]byte) (auto, manual *big.Int, err error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.Claimable(holder)
}

// SnapshotProgress reports snapshot batch progress for a registry.
func (n *Node) SnapshotProgress(id uint64, c distribution.Category) (*distribution.ProgressInfo, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.SnapshotProgress(id, c)
}

// SnapshotTotals reports a registry's captured totals.
func (n *Node) SnapshotTotals(id uint64, c distribution.Category) (*distribution.SnapshotSummary, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.SnapshotTotals(id, c)
}

// PendingDistribution reports locked holders awaiting payout per registry.
func (n *Node) PendingDistribution() (map[string]uint64, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.PendingDistribution()
}

// TimeRemaining reports seconds until the accumulating cycle may freeze.
func (n *Node) TimeRemaining() (uint64, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.TimeRemaining(n.now())
}

// LifetimeTotal reports the running total ever paid to a holder.
func (n *Node) LifetimeTotal(holder [20]byte) (*big.Int, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.LifetimeTotal(holder)
}

// ClaimStatus reports a holder's idempotence flags for a cycle.
func (n *Node) ClaimStatus(id uint64, holder [20]byte) (*distribution.ClaimRecord, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.ClaimStatus(id, holder)
}

// --- admin ---

// SetParams validates and installs a new engine configuration, rebuilding the
// rate converter to match.
func (n *Node) SetParams(params distribution.Params) error {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	if err := n.engine.StoreParams(params); err != nil {
		return err
	}
	n.drainEvents()
	return n.installConverter(params)
}

// Params returns the active engine configuration.
func (n *Node) Params() (distribution.Params, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.engine.LoadParams()
}

// Registry returns the named registry instance for admin mutation.
func (n *Node) Registry(c distribution.Category) *registry.Registry {
	if c == distribution.CategoryBalance {
		return n.balance
	}
	return n.points
}

// RegistrySetHolder installs or updates a holder's weight.
func (n *Node) RegistrySetHolder(c distribution.Category, holder [20]byte, weight *big.Int) error {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	if err := n.Registry(c).SetHolder(holder, weight); err != nil {
		return err
	}
	n.state.AppendEvent(events.RegistryHolderSet{Registry: c.String(), Holder: holder, Weight: weight}.Event())
	n.drainEvents()
	return nil
}

// RegistryRemoveHolder drops a holder.
func (n *Node) RegistryRemoveHolder(c distribution.Category, holder [20]byte) error {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	if err := n.Registry(c).RemoveHolder(holder); err != nil {
		return err
	}
	n.state.AppendEvent(events.RegistryHolderRemoved{Registry: c.String(), Holder: holder}.Event())
	n.drainEvents()
	return nil
}

// RegistrySetThreshold installs a registry's minimum eligibility weight.
func (n *Node) RegistrySetThreshold(c distribution.Category, threshold *big.Int) error {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.Registry(c).SetThreshold(threshold)
}

// RegistryInfo reports a registry's count and threshold.
func (n *Node) RegistryInfo(c distribution.Category) (uint64, *big.Int, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	reg := n.Registry(c)
	count, err := reg.Count()
	if err != nil {
		return 0, nil, err
	}
	threshold, err := reg.MinThreshold()
	if err != nil {
		return 0, nil, err
	}
	return count, threshold, nil
}

// RegistryHolderAt returns the holder at an enumeration index.
func (n *Node) RegistryHolderAt(c distribution.Category, index uint64) ([20]byte, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.Registry(c).HolderAt(index)
}

// Account returns the payout account for an address.
func (n *Node) Account(addr [20]byte) (*types.Account, error) {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.state.GetAccount(addr)
}

// SetAccountFrozen toggles whether an address rejects push transfers.
func (n *Node) SetAccountFrozen(addr [20]byte, frozen bool) error {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	return n.state.SetFrozen(addr, frozen)
}

// ForceReleaseClaimGuard releases a stuck manual-claim lock.
func (n *Node) ForceReleaseClaimGuard() {
	n.engineMu.Lock()
	defer n.engineMu.Unlock()
	n.engine.ForceReleaseClaimGuard()
	n.metrics.RecordClaimGuardReset()
}
