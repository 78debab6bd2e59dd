package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func TestStoreLoadSave(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Load(ctx)
	require.ErrorIs(t, err, core.ErrSnapshotNotFound)

	snap := core.Snapshot{
		Expenses:   []core.Expense{{ID: 1, Amount: core.Money{Cents: 100}, Category: "Food", Description: "a"}},
		Categories: []string{"Food"},
		NextID:     2,
	}
	require.NoError(t, s.Save(ctx, snap))
	snap.Expenses[0].Description = "mutated"

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Expenses[0].Description)
	assert.Equal(t, int64(2), got.NextID)
	assert.Equal(t, 1, s.Saves())
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// No files -> nothing saved
	_, err := NewFromFiles(dir).Load(ctx)
	require.ErrorIs(t, err, core.ErrSnapshotNotFound)

	content := "# header\ngroceries\nGroceries\n\nrent\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644))

	got, err := NewFromFiles(dir).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries", "Rent"}, got.Categories)
	assert.Empty(t, got.Expenses)
}
