package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/ledger"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "budget.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmptyDatabase(t *testing.T) {
	s := openStore(t)
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, core.ErrSnapshotNotFound)
}

func TestSaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first := core.Snapshot{
		Expenses: []core.Expense{
			{ID: 1, Amount: core.Money{Cents: 5000}, Category: "Food", Description: "lunch", Date: core.NewDate(2025, 1, 1)},
			{ID: 2, Amount: core.Money{Cents: 2000}, Category: "Transport", Description: "bus", Date: core.NewDate(2025, 1, 2)},
		},
		Categories: []string{"Food", "Transport", "Other"},
		NextID:     3,
	}
	require.NoError(t, s.Save(ctx, first))

	second := core.Snapshot{
		Expenses:   first.Expenses[1:],
		Categories: first.Categories,
		NextID:     3,
	}
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Expenses, 1)
	assert.Equal(t, second.Expenses[0], got.Expenses[0])
	assert.Equal(t, []string{"Food", "Other", "Transport"}, got.Categories)
	assert.Equal(t, int64(3), got.NextID)
}

func TestSaveKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	snap := core.Snapshot{
		Expenses: []core.Expense{
			{ID: 9, Amount: core.Money{Cents: 1}, Category: "A", Description: "x", Date: core.NewDate(2025, 2, 1)},
			{ID: 3, Amount: core.Money{Cents: 2}, Category: "B", Description: "y", Date: core.NewDate(2025, 1, 1)},
		},
	}
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Expenses, 2)
	assert.Equal(t, int64(9), got.Expenses[0].ID)
	assert.Equal(t, int64(3), got.Expenses[1].ID)
	assert.Equal(t, int64(10), got.NextID, "counter is never below max id + 1")
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestLedgerOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	l, res := ledger.Open(ctx, s)
	require.Equal(t, ledger.LoadDefaulted, res.Outcome)
	a, err := l.Add(ctx, core.Money{Cents: 5000}, "food", "lunch")
	require.NoError(t, err)
	_, err = l.Add(ctx, core.Money{Cents: 2000}, "transport", "bus")
	require.NoError(t, err)
	require.NoError(t, l.Delete(ctx, a.ID))

	reopened, res := ledger.Open(ctx, s)
	require.Equal(t, ledger.LoadRestored, res.Outcome)
	assert.Equal(t, l.List(), reopened.List())

	c, err := reopened.Add(ctx, core.Money{Cents: 100}, "Food", "snack")
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.ID)
}
