package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordKind names the ledger table a sync message refers to.
type RecordKind string

const (
	KindPayment RecordKind = "payment"
	KindExpense RecordKind = "expense"
)

// RecordSyncMessage asks the worker to export one ledger record to Google
// Sheets. It carries only the kind and ID; the worker loads the record
// from the database.
type RecordSyncMessage struct {
	Kind      RecordKind `json:"kind"`
	ID        uuid.UUID  `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewRecordSyncMessage(kind RecordKind, id uuid.UUID) *RecordSyncMessage {
	return &RecordSyncMessage{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON decodes and checks a message body.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case KindPayment, KindExpense:
	default:
		return nil, fmt.Errorf("unknown record kind %q", msg.Kind)
	}
	if msg.ID == uuid.Nil {
		return nil, fmt.Errorf("missing record id")
	}
	return &msg, nil
}
