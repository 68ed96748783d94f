package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordKind names the kind of record a change message refers to.
type RecordKind string

const (
	KindTrip        RecordKind = "trip"
	KindFuelExpense RecordKind = "fuel_expense"
)

// RecordChangedMessage announces that a trip or fuel expense was written.
// Consumers use Month (YYYY-MM) to drop the cached window holding it.
type RecordChangedMessage struct {
	ID        uuid.UUID  `json:"id"`
	Kind      RecordKind `json:"kind"`
	RecordID  int64      `json:"record_id"`
	Month     string     `json:"month"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewRecordChangedMessage stamps a fresh message id and the current time.
func NewRecordChangedMessage(kind RecordKind, recordID int64, date time.Time) *RecordChangedMessage {
	return &RecordChangedMessage{
		ID:        uuid.New(),
		Kind:      kind,
		RecordID:  recordID,
		Month:     date.Format("2006-01"),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes and checks a message body.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind != KindTrip && msg.Kind != KindFuelExpense {
		return nil, fmt.Errorf("unknown record kind %q", msg.Kind)
	}
	if _, err := time.Parse("2006-01", msg.Month); err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", msg.Month, err)
	}
	return &msg, nil
}
