package ledger

import (
	"time"

	"budget/internal/core"
)

type EventKind string

const (
	EventAdded    EventKind = "added"
	EventDeleted  EventKind = "deleted"
	EventReloaded EventKind = "reloaded"
)

// Event describes a completed ledger mutation. Expense is set for added
// events; ID is set for added and deleted events.
type Event struct {
	Kind    EventKind
	ID      int64
	Expense *core.Expense
	At      time.Time
}

type subscriber struct {
	id int
	fn func(Event)
}
