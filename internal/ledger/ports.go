package ledger

import (
	"context"

	"budget/internal/core"
)

// Store persists whole ledger snapshots. Load returns core.ErrSnapshotNotFound
// when nothing has been saved yet and an error wrapping core.ErrSnapshotCorrupt
// when saved data cannot be decoded.
type Store interface {
	Load(ctx context.Context) (core.Snapshot, error)
	Save(ctx context.Context, s core.Snapshot) error
}
