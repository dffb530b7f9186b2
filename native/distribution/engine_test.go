package distribution

import (
	"errors"
	"math/big"
	"testing"

	"epochpay/core/state"
	"epochpay/native/registry"
	"epochpay/storage"
)

var (
	opsAddr      = testAddr(0x01)
	funderAddr   = testAddr(0x02)
	treasuryAddr = testAddr(0x03)
	holderA      = testAddr(0x10)
	holderB      = testAddr(0x11)
	holderC      = testAddr(0x12)
	holderD      = testAddr(0x13)
	holderE      = testAddr(0x14)
)

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

type memTransferor struct {
	payments map[[20]byte]*big.Int
	blocked  map[[20]byte]bool
}

func newMemTransferor() *memTransferor {
	return &memTransferor{
		payments: make(map[[20]byte]*big.Int),
		blocked:  make(map[[20]byte]bool),
	}
}

func (m *memTransferor) Transfer(to [20]byte, amount *big.Int) error {
	if m.blocked[to] {
		return errors.New("recipient account is frozen")
	}
	current, ok := m.payments[to]
	if !ok {
		current = big.NewInt(0)
	}
	m.payments[to] = new(big.Int).Add(current, amount)
	return nil
}

func (m *memTransferor) paid(to [20]byte) *big.Int {
	current, ok := m.payments[to]
	if !ok {
		return big.NewInt(0)
	}
	return current
}

// failConverter wraps the rate converter so tests can break conversion at a
// precise moment.
type failConverter struct {
	fail  bool
	inner Converter
}

func (c *failConverter) Convert(amount *big.Int) (*big.Int, error) {
	if c.fail {
		return nil, errors.New("venue offline")
	}
	return c.inner.Convert(amount)
}

type testEnv struct {
	t        *testing.T
	engine   *Engine
	points   *registry.Registry
	balance  *registry.Registry
	transfer *memTransferor
	convert  *failConverter
	params   Params
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := NewEngine(manager)
	points := registry.New(manager, CategoryPoints.String())
	balance := registry.New(manager, CategoryBalance.String())
	transfer := newMemTransferor()
	rate, err := NewRateConverter(1, 1, 0)
	if err != nil {
		t.Fatalf("rate converter: %v", err)
	}
	convert := &failConverter{inner: rate}

	engine.SetRegistry(CategoryPoints, points)
	engine.SetRegistry(CategoryBalance, balance)
	engine.SetTransferor(transfer)
	engine.SetConverter(convert)

	params := DefaultParams()
	params.Treasury = treasuryAddr
	params.PermittedCallers = [][20]byte{opsAddr}
	params.FundingSources = [][20]byte{funderAddr}
	params.MinCycleInterval = 100
	params.SnapshotWindow = 10
	params.DistributionWindow = 10
	params.AutoShareBps = BpsDenominator
	if err := engine.StoreParams(params); err != nil {
		t.Fatalf("store params: %v", err)
	}
	if err := engine.Bootstrap(1_000); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return &testEnv{
		t:        t,
		engine:   engine,
		points:   points,
		balance:  balance,
		transfer: transfer,
		convert:  convert,
		params:   params,
	}
}

func (env *testEnv) setParams(mutate func(*Params)) {
	env.t.Helper()
	mutate(&env.params)
	if err := env.engine.StoreParams(env.params); err != nil {
		env.t.Fatalf("store params: %v", err)
	}
}

func (env *testEnv) addHolder(reg *registry.Registry, holder [20]byte, weight int64) {
	env.t.Helper()
	if err := reg.SetHolder(holder, big.NewInt(weight)); err != nil {
		env.t.Fatalf("set holder: %v", err)
	}
}

func (env *testEnv) deposit(amount int64) uint64 {
	env.t.Helper()
	cycle, err := env.engine.Deposit(funderAddr, big.NewInt(amount))
	if err != nil {
		env.t.Fatalf("deposit: %v", err)
	}
	return cycle
}

func (env *testEnv) advance(now uint64) *AdvanceResult {
	env.t.Helper()
	result, err := env.engine.AdvanceEpoch(opsAddr, now)
	if err != nil {
		env.t.Fatalf("advance: %v", err)
	}
	return result
}

// advanceToDistribution drives AdvanceEpoch until the active cycle reaches the
// distribution phase (or the cycle is skipped).
func (env *testEnv) advanceToDistribution(now uint64) *AdvanceResult {
	env.t.Helper()
	for i := 0; i < 64; i++ {
		result := env.advance(now)
		if result.Allocated || result.Skipped {
			return result
		}
	}
	env.t.Fatalf("distribution never reached")
	return nil
}

func TestBootstrapOpensFirstCycle(t *testing.T) {
	env := newTestEnv(t)
	status, err := env.engine.EngineStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.AccumulatingCycle != 1 || status.ActiveCycle != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	cycle, err := env.engine.GetCycle(1)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if cycle.Phase != PhaseAccumulating || cycle.AccumulationStart != 1_000 {
		t.Fatalf("unexpected cycle: %+v", cycle)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(500)
	if err := env.engine.Bootstrap(9_999); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	pools, err := env.engine.PoolBalances(1)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	total := new(big.Int).Add(pools.AccumulatedPoints, pools.AccumulatedBalance)
	if total.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("bootstrap wiped accumulated pools: %s", total)
	}
}

func TestDepositSplitsByCategoryRatio(t *testing.T) {
	env := newTestEnv(t)
	env.setParams(func(p *Params) { p.PointsCategoryBps = 3_000 })

	cycle := env.deposit(1_000)
	if cycle != 1 {
		t.Fatalf("deposit landed on cycle %d", cycle)
	}
	pools, err := env.engine.PoolBalances(1)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	if pools.AccumulatedPoints.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("points pool = %s, want 300", pools.AccumulatedPoints)
	}
	if pools.AccumulatedBalance.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("balance pool = %s, want 700", pools.AccumulatedBalance)
	}
}

func TestDepositGuards(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Deposit(holderA, big.NewInt(10)); !errors.Is(err, ErrNotFundingSource) {
		t.Fatalf("unknown source: %v", err)
	}
	if _, err := env.engine.Deposit(funderAddr, big.NewInt(0)); !errors.Is(err, ErrZeroDeposit) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := env.engine.Deposit(funderAddr, nil); !errors.Is(err, ErrZeroDeposit) {
		t.Fatalf("nil amount: %v", err)
	}
}

func TestDepositAfterFreezeLandsOnNextCycle(t *testing.T) {
	env := newTestEnv(t)
	env.addHolder(env.points, holderA, 100)
	env.deposit(1_000)

	result := env.advance(1_200)
	if result.Cycle != 1 || result.Phase == PhaseAccumulating {
		t.Fatalf("freeze did not happen: %+v", result)
	}

	cycle := env.deposit(400)
	if cycle != 2 {
		t.Fatalf("post-freeze deposit landed on cycle %d, want 2", cycle)
	}
	pools, err := env.engine.PoolBalances(2)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	total := new(big.Int).Add(pools.AccumulatedPoints, pools.AccumulatedBalance)
	if total.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("cycle 2 accumulated %s, want 400", total)
	}
}

// Full lifecycle with evenly divisible pools: every unit reaches a holder and
// the treasury sweep is zero.
func TestLifecycleExactDivisionLeavesNoDust(t *testing.T) {
	env := newTestEnv(t)
	for _, h := range [][20]byte{holderA, holderB, holderC} {
		env.addHolder(env.points, h, 100)
		env.addHolder(env.balance, h, 100)
	}
	env.deposit(1_200) // 600 points, 600 balance

	result := env.advanceToDistribution(1_200)
	if !result.Allocated {
		t.Fatalf("expected allocation, got %+v", result)
	}

	dist, err := env.engine.FlushDistributions(opsAddr, 0)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !dist.Done || dist.Paid != 3 {
		t.Fatalf("unexpected flush result: %+v", dist)
	}
	for _, h := range [][20]byte{holderA, holderB, holderC} {
		if got := env.transfer.paid(h); got.Cmp(big.NewInt(400)) != 0 {
			t.Fatalf("holder %x paid %s, want 400", h, got)
		}
	}

	closed, err := env.engine.CloseCycle(opsAddr, 1_300)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Swept.Sign() != 0 {
		t.Fatalf("swept %s, want 0", closed.Swept)
	}
	if got := env.transfer.paid(treasuryAddr); got.Sign() != 0 {
		t.Fatalf("treasury received %s, want 0", got)
	}
}

// An indivisible pool leaves floor-division dust behind, which the close-out
// sweeps to the treasury.
func TestLifecycleRoundingDustIsSwept(t *testing.T) {
	env := newTestEnv(t)
	for _, h := range [][20]byte{holderA, holderB, holderC} {
		env.addHolder(env.balance, h, 100)
	}
	env.setParams(func(p *Params) { p.PointsCategoryBps = 0 })
	env.deposit(601)

	env.advanceToDistribution(1_200)
	if _, err := env.engine.FlushDistributions(opsAddr, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}
	for _, h := range [][20]byte{holderA, holderB, holderC} {
		if got := env.transfer.paid(h); got.Cmp(big.NewInt(200)) != 0 {
			t.Fatalf("holder %x paid %s, want 200", h, got)
		}
	}

	closed, err := env.engine.CloseCycle(opsAddr, 1_300)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Swept.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("swept %s, want 1", closed.Swept)
	}
	if got := env.transfer.paid(treasuryAddr); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("treasury received %s, want 1", got)
	}
}

// Value conservation across an uneven mix of weights, auto/manual split, and a
// blocked recipient: deposits equal payouts plus claims plus the sweep.
func TestValueConservation(t *testing.T) {
	env := newTestEnv(t)
	env.setParams(func(p *Params) {
		p.PointsCategoryBps = 4_000
		p.AutoShareBps = 6_000
	})
	weights := map[[20]byte]int64{holderA: 17, holderB: 101, holderC: 3}
	for h, w := range weights {
		env.addHolder(env.points, h, w)
	}
	env.addHolder(env.balance, holderD, 7)
	env.transfer.blocked[holderC] = true

	deposited := int64(999_983)
	env.deposit(deposited)
	env.advanceToDistribution(1_200)

	if _, err := env.engine.FlushDistributions(opsAddr, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := env.engine.ClaimManual(holderB); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := env.engine.CloseCycle(opsAddr, 1_300); err != nil {
		t.Fatalf("close: %v", err)
	}

	total := big.NewInt(0)
	for _, payments := range env.transfer.payments {
		total.Add(total, payments)
	}
	if total.Cmp(big.NewInt(deposited)) != 0 {
		t.Fatalf("conservation broken: out %s, in %d", total, deposited)
	}
	if env.transfer.paid(holderC).Sign() != 0 {
		t.Fatalf("blocked holder was paid %s", env.transfer.paid(holderC))
	}
}

func TestAdvanceGuards(t *testing.T) {
	env := newTestEnv(t)
	env.addHolder(env.points, holderA, 100)
	env.deposit(500)

	if _, err := env.engine.AdvanceEpoch(holderA, 5_000); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("unpermitted caller: %v", err)
	}
	if _, err := env.engine.AdvanceEpoch(opsAddr, 1_050); !errors.Is(err, ErrIntervalNotElapsed) {
		t.Fatalf("early advance: %v", err)
	}

	// Rejected calls leave no trace: the cycle still freezes at the exact
	// boundary and the invocation counter never moved.
	status, err := env.engine.EngineStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Invocations != 0 {
		t.Fatalf("rejected calls consumed invocations: %d", status.Invocations)
	}
	result := env.advance(1_100)
	if result.Cycle != 1 {
		t.Fatalf("freeze at boundary failed: %+v", result)
	}
}

func TestAdvanceDuringDistributionIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.addHolder(env.points, holderA, 100)
	env.deposit(500)
	env.advanceToDistribution(1_200)

	before, err := env.engine.PoolBalances(1)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	result := env.advance(1_250)
	if result.Phase != PhaseDistributing || result.Processed != 0 {
		t.Fatalf("advance during distribution did work: %+v", result)
	}
	after, err := env.engine.PoolBalances(1)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	if before.AutoPoints.Cmp(after.AutoPoints) != 0 || before.ManualPoints.Cmp(after.ManualPoints) != 0 {
		t.Fatalf("no-op advance mutated pools")
	}
}

func TestCollaboratorsRequired(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	engine := NewEngine(manager)
	if err := engine.Bootstrap(1); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := engine.AdvanceEpoch(opsAddr, 10); !errors.Is(err, ErrCollaboratorUnset) {
		t.Fatalf("advance without collaborators: %v", err)
	}
	if _, err := engine.DistributeAuto(); !errors.Is(err, ErrCollaboratorUnset) {
		t.Fatalf("distribute without collaborators: %v", err)
	}
	if _, err := engine.ClaimManual(holderA); !errors.Is(err, ErrCollaboratorUnset) {
		t.Fatalf("claim without collaborators: %v", err)
	}
}

func TestLifetimeTotalsAccumulateAcrossCycles(t *testing.T) {
	env := newTestEnv(t)
	env.addHolder(env.points, holderA, 100)
	env.setParams(func(p *Params) { p.PointsCategoryBps = BpsDenominator })

	env.deposit(300)
	env.advanceToDistribution(1_200)
	if _, err := env.engine.FlushDistributions(opsAddr, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := env.engine.CloseCycle(opsAddr, 1_250); err != nil {
		t.Fatalf("close: %v", err)
	}

	env.deposit(200)
	env.advanceToDistribution(1_400)
	if _, err := env.engine.FlushDistributions(opsAddr, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}

	lifetime, err := env.engine.LifetimeTotal(holderA)
	if err != nil {
		t.Fatalf("lifetime: %v", err)
	}
	if lifetime.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("lifetime = %s, want 500", lifetime)
	}
}
