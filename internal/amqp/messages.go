package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the write that produced a change event.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// RecordChanged announces that one record of an owner was written. It
// carries identifiers only; consumers reload what they need from the store.
type RecordChanged struct {
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	RecordID  string    `json:"record_id"`
	EntityID  string    `json:"entity_id,omitempty"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordChanged stamps a change event with the current time.
func NewRecordChanged(ownerID, kind, recordID, entityID string, op Op) *RecordChanged {
	return &RecordChanged{
		OwnerID:   ownerID,
		Kind:      kind,
		RecordID:  recordID,
		EntityID:  entityID,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedFromJSON decodes and validates a change event.
func RecordChangedFromJSON(data []byte) (*RecordChanged, error) {
	var msg RecordChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("record change without owner_id")
	}
	return &msg, nil
}
