package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names what changed in a user's ledger.
type EventKind string

const (
	EventTransactionAdded   EventKind = "transaction.added"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventGoalSet            EventKind = "goal.set"
)

// LedgerEvent announces a change to one user's month. It carries only keys;
// consumers reload what they need from the store.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	UserID    int64     `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, userID int64, year, month int, id int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		UserID:    userID,
		Year:      year,
		Month:     month,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and sanity-checks a delivery body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID <= 0 {
		return nil, fmt.Errorf("event without user id")
	}
	if msg.Month < 1 || msg.Month > 12 {
		return nil, fmt.Errorf("event month %d out of range", msg.Month)
	}
	return &msg, nil
}
