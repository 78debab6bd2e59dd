// Package ledger owns the expense records and the category vocabulary,
// and keeps them in sync with a backing Store.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"budget/internal/core"
)

// Ledger is the aggregate root: an ordered list of expenses plus the set of
// known categories. Every mutation is persisted synchronously.
type Ledger struct {
	mu         sync.Mutex
	store      Store
	now        func() time.Time
	logger     *slog.Logger
	expenses   []core.Expense
	categories map[string]struct{}
	nextID     int64
	dirty      bool

	subMu  sync.Mutex
	subs   []subscriber
	subSeq int
}

type Option func(*Ledger)

// WithClock overrides the time source used to date new expenses.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithDefaultCategories replaces the seed vocabulary.
func WithDefaultCategories(cats []string) Option {
	return func(l *Ledger) {
		l.categories = make(map[string]struct{}, len(cats))
		for _, c := range cats {
			if c = strings.TrimSpace(c); c != "" {
				l.categories[c] = struct{}{}
			}
		}
	}
}

// Open builds a ledger seeded with the default categories and restores it
// from store. A failed restore is logged and reported in the result; the
// ledger is usable either way.
func Open(ctx context.Context, store Store, opts ...Option) (*Ledger, LoadResult) {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
		nextID: 1,
	}
	WithDefaultCategories(core.DefaultCategories)(l)
	for _, opt := range opts {
		opt(l)
	}

	l.mu.Lock()
	res := l.restoreLocked(ctx)
	l.mu.Unlock()
	return l, res
}

// Add validates and records a new expense dated today, then persists the
// ledger. If persisting fails the expense is kept in memory and the returned
// error matches ErrStorageWrite.
func (l *Ledger) Add(ctx context.Context, amount core.Money, category, description string) (core.Expense, error) {
	in := core.NewExpenseInput{Amount: amount, Category: category, Description: description}
	if err := in.Validate(); err != nil {
		l.logger.DebugContext(ctx, "Rejected expense", "error", err)
		return core.Expense{}, err
	}

	l.mu.Lock()
	cat := core.NormalizeCategory(category)
	l.categories[cat] = struct{}{}
	e := core.Expense{
		ID:          l.nextID,
		Amount:      amount,
		Category:    cat,
		Description: strings.TrimSpace(description),
		Date:        core.Today(l.now()),
	}
	l.nextID++
	l.expenses = append(l.expenses, e)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Expense added",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"persisted", err == nil)

	added := e
	l.publish(Event{Kind: EventAdded, ID: e.ID, Expense: &added, At: l.now()})
	return e, err
}

// Delete removes every expense with the given id and persists the ledger.
// An id that matches nothing yields ErrNothingSelected and changes nothing.
func (l *Ledger) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNothingSelected
	}

	l.mu.Lock()
	kept := l.expenses[:0:0]
	for _, e := range l.expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(l.expenses) {
		l.mu.Unlock()
		return fmt.Errorf("%w: no expense with id %d", ErrNothingSelected, id)
	}
	l.expenses = kept
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Expense deleted", "id", id, "persisted", err == nil)
	l.publish(Event{Kind: EventDeleted, ID: id, At: l.now()})
	return err
}

// List returns a copy of the expenses, most recent date first. Expenses on
// the same date are ordered newest id first.
func (l *Ledger) List() []core.Expense {
	l.mu.Lock()
	out := append([]core.Expense(nil), l.expenses...)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Date.Time, out[j].Date.Time
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Categories returns the vocabulary sorted alphabetically.
func (l *Ledger) Categories() []string {
	l.mu.Lock()
	out := make([]string, 0, len(l.categories))
	for c := range l.categories {
		out = append(out, c)
	}
	l.mu.Unlock()
	sort.Strings(out)
	return out
}

// Summary aggregates the current records.
func (l *Ledger) Summary() core.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.Summarize(l.expenses)
}

// Len returns the number of records held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expenses)
}

// Dirty reports whether the last persist attempt failed.
func (l *Ledger) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// Snapshot returns a copy of the state as it would be persisted.
func (l *Ledger) Snapshot() core.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Save persists the ledger on demand, e.g. to retry after a failed write.
func (l *Ledger) Save(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

// Reload replaces the in-memory records with the stored ones and merges the
// stored categories into the vocabulary.
func (l *Ledger) Reload(ctx context.Context) LoadResult {
	l.mu.Lock()
	res := l.restoreLocked(ctx)
	l.mu.Unlock()
	if res.Outcome == LoadRestored {
		l.publish(Event{Kind: EventReloaded, At: l.now()})
	}
	return res
}

// Subscribe registers fn to be called after every mutation. The returned
// function removes the subscription.
func (l *Ledger) Subscribe(fn func(Event)) (cancel func()) {
	l.subMu.Lock()
	l.subSeq++
	id := l.subSeq
	l.subs = append(l.subs, subscriber{id: id, fn: fn})
	l.subMu.Unlock()

	return func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *Ledger) publish(ev Event) {
	l.subMu.Lock()
	subs := append([]subscriber(nil), l.subs...)
	l.subMu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

func (l *Ledger) restoreLocked(ctx context.Context) LoadResult {
	snap, err := l.store.Load(ctx)
	if err != nil {
		res := classifyLoadError(err)
		if res.Outcome == LoadFailed {
			l.logger.WarnContext(ctx, "Ledger load failed, keeping in-memory data",
				"error", err,
				"records", len(l.expenses))
		} else {
			l.logger.InfoContext(ctx, "No saved ledger, starting from defaults")
		}
		res.Records = len(l.expenses)
		return res
	}

	l.expenses = append([]core.Expense(nil), snap.Expenses...)
	for _, c := range snap.Categories {
		if c = strings.TrimSpace(c); c != "" {
			l.categories[c] = struct{}{}
		}
	}
	for _, e := range l.expenses {
		if e.Category != "" {
			l.categories[e.Category] = struct{}{}
		}
	}
	next := snap.NextID
	if m := snap.MaxID() + 1; m > next {
		next = m
	}
	if next > l.nextID {
		l.nextID = next
	}
	l.dirty = false

	l.logger.InfoContext(ctx, "Ledger restored",
		"records", len(l.expenses),
		"categories", len(l.categories),
		"next_id", l.nextID)
	return LoadResult{Outcome: LoadRestored, Records: len(l.expenses)}
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	if err := l.store.Save(ctx, l.snapshotLocked()); err != nil {
		l.dirty = true
		l.logger.ErrorContext(ctx, "Failed to save ledger", "error", err)
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	l.dirty = false
	return nil
}

func (l *Ledger) snapshotLocked() core.Snapshot {
	cats := make([]string, 0, len(l.categories))
	for c := range l.categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return core.Snapshot{
		Expenses:   append([]core.Expense{}, l.expenses...),
		Categories: cats,
		NextID:     l.nextID,
	}
}
