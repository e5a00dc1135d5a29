package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budgetflow/internal/core"
)

// MonthUpdatedMessage announces that a month record was rewritten. It
// carries only the key and version; consumers load the record themselves.
type MonthUpdatedMessage struct {
	Month     string    `json:"month"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMonthUpdatedMessage(month string, version int64) *MonthUpdatedMessage {
	return &MonthUpdatedMessage{
		Month:     month,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *MonthUpdatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthUpdatedMessageFromJSON decodes and checks a message body.
func MonthUpdatedMessageFromJSON(data []byte) (*MonthUpdatedMessage, error) {
	var msg MonthUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := core.ParseMonthKey(msg.Month); err != nil {
		return nil, err
	}
	if msg.Version < 1 {
		return nil, fmt.Errorf("invalid version %d", msg.Version)
	}
	return &msg, nil
}
