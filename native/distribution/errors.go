package distribution

import "errors"

var (
	// ErrNotPermitted marks a state-machine call from an address outside the
	// configured allow-list.
	ErrNotPermitted = errors.New("distribution: caller not permitted")
	// ErrNotFundingSource marks a deposit from an unrecognised source.
	ErrNotFundingSource = errors.New("distribution: deposit source not recognised")
	// ErrZeroDeposit marks a deposit without a positive amount.
	ErrZeroDeposit = errors.New("distribution: deposit amount must be positive")
	// ErrIntervalNotElapsed marks an advance requested before the minimum
	// accumulation interval has passed.
	ErrIntervalNotElapsed = errors.New("distribution: accumulation interval not elapsed")
	// ErrDistributionActive marks an attempt to start a new distribution while
	// a prior cycle is still distributing.
	ErrDistributionActive = errors.New("distribution: a distribution cycle is already active")
	// ErrWrongPhase marks an operation requested outside its legal phase.
	ErrWrongPhase = errors.New("distribution: operation not valid in current phase")
	// ErrSnapshotReplay marks a distribution transition attempted outside the
	// call that completed both registry snapshots.
	ErrSnapshotReplay = errors.New("distribution: snapshot replay guard rejected transition")
	// ErrInsufficientValue marks an allocation where the accumulated amount
	// does not exceed the operational buffer.
	ErrInsufficientValue = errors.New("distribution: accumulated value below operational buffer")
	// ErrConversion wraps a failed bulk conversion; the allocation aborts
	// atomically.
	ErrConversion = errors.New("distribution: bulk conversion failed")
	// ErrNoActiveCycle marks an operation that requires a cycle in the
	// snapshot or distribution phase.
	ErrNoActiveCycle = errors.New("distribution: no active cycle")
	// ErrAlreadyClaimed marks a second manual claim within the same cycle.
	ErrAlreadyClaimed = errors.New("distribution: already claimed this cycle")
	// ErrBelowThreshold marks a claim from a holder absent from the snapshot.
	ErrBelowThreshold = errors.New("distribution: holder below eligibility threshold")
	// ErrNothingToClaim marks a claim whose computed share rounds to zero.
	ErrNothingToClaim = errors.New("distribution: nothing to claim")
	// ErrReentrancy marks a nested re-entry into the guarded claim path.
	ErrReentrancy = errors.New("distribution: claim handler re-entered")
	// ErrCollaboratorUnset marks an engine used before its registries,
	// transferor, or converter were injected.
	ErrCollaboratorUnset = errors.New("distribution: collaborator not configured")
)
