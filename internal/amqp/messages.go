package amqp

import (
	"encoding/json"
	"time"
)

// RecurringProcessMessage tells the worker which recurring template to
// materialize. It carries only identifiers; the worker re-reads the
// template from the database so stale payloads cannot override state.
type RecurringProcessMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewRecurringProcessMessage creates a message for the given template
func NewRecurringProcessMessage(transactionID, userID string) *RecurringProcessMessage {
	return &RecurringProcessMessage{
		TransactionID: transactionID,
		UserID:        userID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecurringProcessMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecurringProcessMessageFromJSON creates a message from JSON bytes
func RecurringProcessMessageFromJSON(data []byte) (*RecurringProcessMessage, error) {
	var msg RecurringProcessMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
