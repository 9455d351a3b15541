package sqlite

import (
	"time"

	"github.com/yegors/atcsim/internal/message"
)

// MessageRecord is a stored controller message
type MessageRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver"`
	Type       string    `json:"type"`
	AircraftID string    `json:"aircraft_id,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message converts the record back to a log entry
func (r *MessageRecord) Message() message.Message {
	return message.New(r.Sender, r.Receiver, message.Type(r.Type), r.AircraftID, r.Content, r.Timestamp)
}

// MessageFilter narrows a message query. Empty fields match everything;
// Since and Until bound the message timestamp inclusively.
type MessageFilter struct {
	Controller string // sender or receiver
	AircraftID string
	Type       string
	Since      time.Time
	Until      time.Time
	Limit      int
}
