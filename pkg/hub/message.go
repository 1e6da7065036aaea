// Package hub fans sync events out to every connected control surface.
// One goroutine owns the client set; clients each get a buffered queue and
// a write pump.
package hub

import (
	"encoding/json"
	"fmt"
)

// Message is one pre-encoded JSON text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage wraps already-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// Encode marshals v into a Message.
func Encode(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode hub message: %w", err)
	}
	return Message{Data: data}, nil
}
