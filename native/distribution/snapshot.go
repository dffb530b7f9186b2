package distribution

import (
	"math/big"

	"epochpay/core/events"
)

type snapEntry struct {
	holder [20]byte
	weight *big.Int
}

// snapStage is the in-memory outcome of one snapshot window. Nothing is
// persisted until the advancing call decides the whole invocation succeeds,
// which keeps the final window atomic with the allocation it triggers.
type snapStage struct {
	category  Category
	entries   []snapEntry
	summary   *SnapshotSummary
	progress  *BatchProgress
	processed uint64
	noop      bool
}

// snapshotStage computes one bounded snapshot window for a registry. On the
// first window the live registry count is locked as the iteration bound; later
// growth of the registry cannot extend the pass. Calling again after the
// registry is done yields a no-op stage, not an error.
func (e *Engine) snapshotStage(cycleID uint64, c Category, window uint64) (*snapStage, error) {
	progress, err := e.loadProgress(snapProgressKey(cycleID, c))
	if err != nil {
		return nil, err
	}
	summary, err := e.loadSnapshotSummary(cycleID, c)
	if err != nil {
		return nil, err
	}
	if progress.Done {
		return &snapStage{category: c, summary: summary, progress: progress, noop: true}, nil
	}
	reg := e.registry(c)
	if !progress.Locked {
		count, err := reg.Count()
		if err != nil {
			return nil, err
		}
		progress.LockedCount = count
		progress.Locked = true
	}
	threshold, err := reg.MinThreshold()
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		threshold = big.NewInt(0)
	}

	end := progress.Cursor + window
	if end > progress.LockedCount {
		end = progress.LockedCount
	}
	stage := &snapStage{category: c, summary: summary, progress: progress}
	for i := progress.Cursor; i < end; i++ {
		holder, err := reg.HolderAt(i)
		if err != nil {
			return nil, err
		}
		weight, err := reg.WeightOf(holder)
		if err != nil {
			return nil, err
		}
		stage.processed++
		if weight == nil || weight.Sign() <= 0 || weight.Cmp(threshold) < 0 {
			continue
		}
		stage.entries = append(stage.entries, snapEntry{holder: holder, weight: copyBigInt(weight)})
		summary.TotalWeight = new(big.Int).Add(summary.TotalWeight, weight)
		summary.Eligible++
	}
	progress.Cursor = end
	if progress.Cursor >= progress.LockedCount {
		progress.Done = true
		summary.Done = true
	}
	return stage, nil
}

// persistSnapshotStage commits a staged window: per-holder weights, the
// running summary, and the batch cursor.
func (e *Engine) persistSnapshotStage(cycleID uint64, stage *snapStage) error {
	if stage.noop {
		return nil
	}
	for _, entry := range stage.entries {
		if err := e.storeSnapshotWeight(cycleID, stage.category, entry.holder, entry.weight); err != nil {
			return err
		}
	}
	if err := e.storeSnapshotSummary(cycleID, stage.category, stage.summary); err != nil {
		return err
	}
	if err := e.storeProgress(snapProgressKey(cycleID, stage.category), stage.progress); err != nil {
		return err
	}
	e.st.AppendEvent(events.SnapshotWindow{
		Cycle:     cycleID,
		Registry:  stage.category.String(),
		Cursor:    stage.progress.Cursor,
		Locked:    stage.progress.LockedCount,
		Processed: stage.processed,
		Done:      stage.progress.Done,
	}.Event())
	return nil
}
