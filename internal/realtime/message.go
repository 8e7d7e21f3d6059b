// Package realtime bridges presence and the event hub to websocket clients.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexanderramin/tempo/internal/events"
)

// Client message types that are not event names.
const (
	TypePing  = "PING"
	TypePong  = "PONG"
	TypeError = "ERROR"
)

// Message is the JSON frame exchanged over the socket.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Version   int64           `json:"version,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// FromEvent encodes ev as a wire message.
func FromEvent(ev events.Event) (Message, error) {
	msg := Message{
		Type:      string(ev.Name),
		SessionID: ev.SessionID,
		Version:   ev.Version,
		Timestamp: ev.At,
	}
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return Message{}, fmt.Errorf("encoding %s payload: %w", ev.Name, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}
