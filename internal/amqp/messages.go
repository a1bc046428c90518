package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	TransactionAppended EventType = "transaction.appended"
	TransactionDeleted  EventType = "transaction.deleted"
	DebtOpened          EventType = "debt.opened"
	DebtClosed          EventType = "debt.closed"
)

// LedgerEvent is a lightweight notification that the ledger changed.
// It carries identifiers only; consumers read the rows from the store.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	DebtID        string    `json:"debt_id,omitempty"`
	Segment       string    `json:"segment"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, transactionID int64, debtID, segment string) *LedgerEvent {
	return &LedgerEvent{
		Type:          t,
		TransactionID: transactionID,
		DebtID:        debtID,
		Segment:       segment,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TransactionAppended, TransactionDeleted:
		if msg.TransactionID <= 0 {
			return nil, fmt.Errorf("%s event without transaction id", msg.Type)
		}
	case DebtOpened, DebtClosed:
		if msg.DebtID == "" {
			return nil, fmt.Errorf("%s event without debt id", msg.Type)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
