package distribution

import (
	"errors"
	"math/big"
	"testing"
)

// manualEnv prepares a distributing cycle with a 30% manual pool: deposit
// 1000, all to the points category, 700 auto / 300 manual.
func manualEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.setParams(func(p *Params) {
		p.PointsCategoryBps = BpsDenominator
		p.AutoShareBps = 7_000
	})
	env.addHolder(env.points, holderA, 10)
	env.addHolder(env.points, holderB, 30)
	env.deposit(1_000)
	env.advanceToDistribution(1_200)
	return env
}

func TestClaimManualPaysFrozenShare(t *testing.T) {
	env := manualEnv(t)

	amount, err := env.engine.ClaimManual(holderB)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// 300 manual pool, weight 30 of 40.
	if amount.Cmp(big.NewInt(225)) != 0 {
		t.Fatalf("claimed %s, want 225", amount)
	}
	if got := env.transfer.paid(holderB); got.Cmp(big.NewInt(225)) != 0 {
		t.Fatalf("transferred %s, want 225", got)
	}

	record, err := env.engine.ClaimStatus(1, holderB)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !record.ManualClaimed || record.AutoClaimed {
		t.Fatalf("unexpected flags: %+v", record)
	}
}

// The manual share is computed against the allocation-frozen pool, so claim
// order cannot change anyone's amount.
func TestClaimManualOrderIndependent(t *testing.T) {
	first := manualEnv(t)
	a1, err := first.engine.ClaimManual(holderA)
	if err != nil {
		t.Fatalf("claim A: %v", err)
	}
	b1, err := first.engine.ClaimManual(holderB)
	if err != nil {
		t.Fatalf("claim B: %v", err)
	}

	second := manualEnv(t)
	b2, err := second.engine.ClaimManual(holderB)
	if err != nil {
		t.Fatalf("claim B: %v", err)
	}
	a2, err := second.engine.ClaimManual(holderA)
	if err != nil {
		t.Fatalf("claim A: %v", err)
	}

	if a1.Cmp(a2) != 0 || b1.Cmp(b2) != 0 {
		t.Fatalf("claim order changed shares: A %s/%s, B %s/%s", a1, a2, b1, b2)
	}
}

func TestClaimManualIdempotencePerCycle(t *testing.T) {
	env := manualEnv(t)
	if _, err := env.engine.ClaimManual(holderA); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := env.engine.ClaimManual(holderA); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("second claim: %v", err)
	}
}

func TestClaimManualRejectsUnsnapshottedHolder(t *testing.T) {
	env := manualEnv(t)
	if _, err := env.engine.ClaimManual(holderE); !errors.Is(err, ErrBelowThreshold) {
		t.Fatalf("unsnapshotted holder: %v", err)
	}
}

func TestClaimManualRejectsOutsideDistribution(t *testing.T) {
	env := newTestEnv(t)
	env.addHolder(env.points, holderA, 10)
	env.deposit(100)
	if _, err := env.engine.ClaimManual(holderA); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("claim while accumulating: %v", err)
	}
}

// A rejected transfer aborts the claim with nothing recorded; the holder can
// retry after the account unfreezes.
func TestClaimManualFailedTransferIsRetryable(t *testing.T) {
	env := manualEnv(t)
	env.transfer.blocked[holderA] = true
	if _, err := env.engine.ClaimManual(holderA); err == nil {
		t.Fatalf("expected transfer failure")
	}
	record, err := env.engine.ClaimStatus(1, holderA)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if record.ManualClaimed {
		t.Fatalf("failed claim was recorded")
	}

	env.transfer.blocked[holderA] = false
	amount, err := env.engine.ClaimManual(holderA)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if amount.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("retried claim %s, want 75", amount)
	}
}

// A stuck guard blocks every claim until the administrative release; the
// normal path releases it on exit automatically.
func TestClaimGuardStuckAndForceRelease(t *testing.T) {
	env := manualEnv(t)
	if !env.engine.claimGuard.acquire() {
		t.Fatalf("guard unexpectedly held")
	}
	if _, err := env.engine.ClaimManual(holderA); !errors.Is(err, ErrReentrancy) {
		t.Fatalf("claim against held guard: %v", err)
	}

	env.engine.ForceReleaseClaimGuard()
	if _, err := env.engine.ClaimManual(holderA); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	// The successful claim's deferred release leaves the guard free.
	if _, err := env.engine.ClaimManual(holderB); err != nil {
		t.Fatalf("subsequent claim: %v", err)
	}
}

func TestClaimableReflectsPendingShares(t *testing.T) {
	env := manualEnv(t)
	auto, manual, err := env.engine.Claimable(holderB)
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	// 700 auto and 300 manual pools, weight 30 of 40.
	if auto.Cmp(big.NewInt(525)) != 0 || manual.Cmp(big.NewInt(225)) != 0 {
		t.Fatalf("claimable = %s/%s, want 525/225", auto, manual)
	}

	if _, err := env.engine.ClaimManual(holderB); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := env.engine.FlushDistributions(opsAddr, 0); err != nil {
		t.Fatalf("flush: %v", err)
	}
	auto, manual, err = env.engine.Claimable(holderB)
	if err != nil {
		t.Fatalf("claimable: %v", err)
	}
	if auto.Sign() != 0 || manual.Sign() != 0 {
		t.Fatalf("claimable after payout = %s/%s, want 0/0", auto, manual)
	}
}
