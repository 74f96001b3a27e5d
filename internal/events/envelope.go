package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is one realtime frame: {"type": "...", "data": {...}}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data into a complete frame.
func Encode(eventType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Data: raw})
}

// Decode parses a frame header; Data is left for the handler to decode.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("frame type is required")
	}
	return env, nil
}

// DecodeData unmarshals the envelope's data into v.
func (e Envelope) DecodeData(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: data is required", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}

// Relay carries an encoded frame between instances over pub/sub. Except
// names a user that must not receive it, used to skip a group sender.
type Relay struct {
	Except string          `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}
