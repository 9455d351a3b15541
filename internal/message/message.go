package message

import (
	"fmt"
	"sync"
	"time"
)

// Type tags a controller message.
type Type string

const (
	TypeHandoff        Type = "HANDOFF"
	TypeLandingRequest Type = "LANDING_REQUEST"
	TypeClearance      Type = "CLEARANCE"
	TypeDeparture      Type = "DEPARTURE"
	TypeParking        Type = "PARKING"
	TypeHolding        Type = "HOLDING"
	TypeConflict       Type = "CONFLICT"
	TypeProximity      Type = "PROXIMITY"
	TypeSaturation     Type = "SATURATION"
	TypeRejected       Type = "REJECTED"
	TypeEmergency      Type = "EMERGENCY"
	TypeFault          Type = "FAULT"
	TypeInfo           Type = "INFO"
)

// Message is an immutable entry in a controller's log. The JSON field
// names are the persisted log schema.
type Message struct {
	Sender     string `json:"expediteur"`
	Receiver   string `json:"destinataire"`
	Type       Type   `json:"type"`
	AircraftID string `json:"avionId"`
	Content    string `json:"contenu"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
}

func New(sender, receiver string, typ Type, aircraftID, content string, at time.Time) Message {
	return Message{
		Sender:     sender,
		Receiver:   receiver,
		Type:       typ,
		AircraftID: aircraftID,
		Content:    content,
		Timestamp:  at.UnixMilli(),
	}
}

func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

func (m Message) String() string {
	if m.AircraftID == "" {
		return fmt.Sprintf("[%s] %s -> %s: %s", m.Type, m.Sender, m.Receiver, m.Content)
	}
	return fmt.Sprintf("[%s] %s -> %s (%s): %s", m.Type, m.Sender, m.Receiver, m.AircraftID, m.Content)
}

// Log is an append-only, ordered message log.
type Log struct {
	mu      sync.RWMutex
	entries []Message
}

func (l *Log) Append(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, m)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Message(nil), l.entries...)
}

// Tail returns up to n of the newest entries, oldest first.
func (l *Log) Tail(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]Message(nil), l.entries[len(l.entries)-n:]...)
}

// Filter returns the entries of the given type, oldest first.
func (l *Log) Filter(typ Type) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Message
	for _, m := range l.entries {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}
