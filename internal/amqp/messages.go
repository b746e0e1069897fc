package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// EventType names a ledger mutation.
type EventType string

const (
	ExpenseCreated EventType = "expense.created"
	ExpenseUpdated EventType = "expense.updated"
	ExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEventMessage is published after every successful ledger mutation.
// Created and updated events carry a snapshot of the record so consumers
// never have to reach back into the store; deleted events carry only the id.
type ExpenseEventMessage struct {
	Type      EventType     `json:"type"`
	ID        int64         `json:"id"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewExpenseEvent builds an event message stamped with the current time.
func NewExpenseEvent(t EventType, id int64, e *core.Expense) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Type:      t,
		ID:        id,
		Expense:   e,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON parses a message from JSON bytes.
func ExpenseEventFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
