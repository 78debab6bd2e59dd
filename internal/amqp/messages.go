package amqp

import (
	"encoding/json"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
)

// LedgerEventMessage announces a completed ledger mutation. Expense is only
// set for added events.
type LedgerEventMessage struct {
	Kind      string        `json:"kind"`
	ID        int64         `json:"id,omitempty"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewLedgerEventMessage(ev ledger.Event) *LedgerEventMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerEventMessage{
		Kind:      string(ev.Kind),
		ID:        ev.ID,
		Expense:   ev.Expense,
		Timestamp: ts,
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
