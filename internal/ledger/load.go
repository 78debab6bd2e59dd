package ledger

import (
	"errors"
	"fmt"

	"budget/internal/core"
)

var (
	ErrNothingSelected = errors.New("no expense selected")
	ErrStorageWrite    = errors.New("failed to save ledger")
	ErrStorageRead     = errors.New("failed to load ledger")
)

type LoadOutcome string

const (
	// LoadRestored means saved data replaced the in-memory records.
	LoadRestored LoadOutcome = "restored"
	// LoadDefaulted means there was nothing saved; defaults are in use.
	LoadDefaulted LoadOutcome = "defaulted"
	// LoadFailed means saved data exists but could not be read; the ledger
	// kept whatever it held before the attempt.
	LoadFailed LoadOutcome = "failed"
)

// LoadResult reports how a restore went. Err is set only for LoadFailed and
// matches ErrStorageRead.
type LoadResult struct {
	Outcome LoadOutcome
	Records int
	Err     error
}

func classifyLoadError(err error) LoadResult {
	if errors.Is(err, core.ErrSnapshotNotFound) {
		return LoadResult{Outcome: LoadDefaulted}
	}
	return LoadResult{Outcome: LoadFailed, Err: fmt.Errorf("%w: %w", ErrStorageRead, err)}
}
