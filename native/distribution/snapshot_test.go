package distribution

import (
	"math/big"
	"testing"
)

// A five-holder registry with a window of two completes in three windows with
// cursors 2, 4, 5; the empty second registry finishes in one more call, which
// also performs the allocation.
func TestSnapshotWindowedCursorProgression(t *testing.T) {
	env := newTestEnv(t)
	env.setParams(func(p *Params) { p.SnapshotWindow = 2 })
	holders := [][20]byte{holderA, holderB, holderC, holderD, holderE}
	for _, h := range holders {
		env.addHolder(env.points, h, 10)
	}
	env.deposit(1_000)

	wantCursors := []uint64{2, 4, 5}
	for i, want := range wantCursors {
		result := env.advance(1_200)
		if result.Registry != CategoryPoints.String() {
			t.Fatalf("call %d staged %s, want points", i+1, result.Registry)
		}
		progress, err := env.engine.SnapshotProgress(1, CategoryPoints)
		if err != nil {
			t.Fatalf("progress: %v", err)
		}
		if progress.Cursor != want {
			t.Fatalf("call %d cursor = %d, want %d", i+1, progress.Cursor, want)
		}
		if progress.LockedCount != 5 {
			t.Fatalf("locked count = %d, want 5", progress.LockedCount)
		}
		if (progress.Done && want != 5) || (!progress.Done && want == 5) {
			t.Fatalf("call %d done = %v at cursor %d", i+1, progress.Done, want)
		}
	}

	result := env.advance(1_200)
	if result.Registry != CategoryBalance.String() || !result.SnapshotDone || !result.Allocated {
		t.Fatalf("final call did not complete the snapshot: %+v", result)
	}

	summary, err := env.engine.SnapshotTotals(1, CategoryPoints)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if summary.TotalWeight.Cmp(big.NewInt(50)) != 0 || summary.Eligible != 5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

// Holders added after the registry pass has started do not extend the locked
// iteration bound and are invisible to this cycle's snapshot.
func TestSnapshotLocksRegistryCountAtFirstWindow(t *testing.T) {
	env := newTestEnv(t)
	env.setParams(func(p *Params) { p.SnapshotWindow = 1 })
	env.addHolder(env.points, holderA, 10)
	env.addHolder(env.points, holderB, 10)
	env.deposit(1_000)

	env.advance(1_200) // freeze + first window, locks count at 2
	env.addHolder(env.points, holderC, 1_000_000)

	env.advance(1_200) // second window, completes points
	progress, err := env.engine.SnapshotProgress(1, CategoryPoints)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !progress.Done || progress.LockedCount != 2 {
		t.Fatalf("lock did not hold: %+v", progress)
	}
	summary, err := env.engine.SnapshotTotals(1, CategoryPoints)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if summary.TotalWeight.Cmp(big.NewInt(20)) != 0 || summary.Eligible != 2 {
		t.Fatalf("late holder leaked into snapshot: %+v", summary)
	}
}

func TestSnapshotFiltersBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	if err := env.points.SetThreshold(big.NewInt(50)); err != nil {
		t.Fatalf("threshold: %v", err)
	}
	env.addHolder(env.points, holderA, 49)
	env.addHolder(env.points, holderB, 50)
	env.addHolder(env.points, holderC, 500)
	env.deposit(1_000)

	env.advanceToDistribution(1_200)
	summary, err := env.engine.SnapshotTotals(1, CategoryPoints)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if summary.Eligible != 2 || summary.TotalWeight.Cmp(big.NewInt(550)) != 0 {
		t.Fatalf("threshold filter failed: %+v", summary)
	}
	if _, ok, err := env.engine.snapshotWeight(1, CategoryPoints, holderA); err != nil || ok {
		t.Fatalf("filtered holder has snapshot weight (ok=%v err=%v)", ok, err)
	}
}

// With no eligible weight in either registry, the cycle skips distribution
// entirely and the accumulated value is converted and swept.
func TestSnapshotZeroWeightSkipsToClose(t *testing.T) {
	env := newTestEnv(t)
	env.deposit(750)

	var result *AdvanceResult
	for i := 0; i < 4; i++ {
		result = env.advance(1_200)
		if result.Skipped {
			break
		}
	}
	if !result.Skipped {
		t.Fatalf("empty cycle was not skipped: %+v", result)
	}

	cycle, err := env.engine.GetCycle(1)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if cycle.Phase != PhaseClosed {
		t.Fatalf("skipped cycle not closed: %+v", cycle)
	}
	if got := env.transfer.paid(treasuryAddr); got.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("treasury received %s, want 750", got)
	}
	status, err := env.engine.EngineStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.ActiveCycle != 0 || status.AccumulatingCycle != 2 {
		t.Fatalf("engine not back to accumulation: %+v", status)
	}
}

// The snapshot invocation marker is recorded exactly once, in the call that
// completes the second registry.
func TestSnapshotInvocationMarker(t *testing.T) {
	env := newTestEnv(t)
	env.setParams(func(p *Params) { p.SnapshotWindow = 1 })
	env.addHolder(env.points, holderA, 10)
	env.addHolder(env.balance, holderB, 10)
	env.deposit(1_000)

	env.advance(1_200) // freeze + points window (completes points)
	cycle, err := env.engine.GetCycle(1)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if cycle.SnapshotInvocation != 0 {
		t.Fatalf("marker set before completion: %d", cycle.SnapshotInvocation)
	}

	result := env.advance(1_200) // balance window completes the snapshot
	if !result.SnapshotDone {
		t.Fatalf("snapshot not completed: %+v", result)
	}
	cycle, err = env.engine.GetCycle(1)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if cycle.SnapshotInvocation != 2 {
		t.Fatalf("marker = %d, want invocation 2", cycle.SnapshotInvocation)
	}
}

// A failed bulk conversion aborts the completing call atomically: the final
// window is not persisted and the same call succeeds on retry.
func TestSnapshotConversionFailureIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	env.setParams(func(p *Params) { p.SnapshotWindow = 1 })
	env.addHolder(env.points, holderA, 10)
	env.deposit(1_000)

	env.advance(1_200) // freeze + points window
	env.convert.fail = true
	if _, err := env.engine.AdvanceEpoch(opsAddr, 1_200); err == nil {
		t.Fatalf("expected conversion failure")
	}

	progress, err := env.engine.SnapshotProgress(1, CategoryBalance)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Done {
		t.Fatalf("failed call persisted the final window")
	}
	cycle, err := env.engine.GetCycle(1)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if cycle.Phase != PhaseSnapshotInProgress {
		t.Fatalf("failed call advanced the phase: %+v", cycle)
	}

	env.convert.fail = false
	result := env.advance(1_200)
	if !result.Allocated {
		t.Fatalf("retry did not allocate: %+v", result)
	}
}
