package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the frame carrying every event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope builds an envelope with data marshaled as the payload.
// A nil data produces an envelope with no payload.
func NewEnvelope(event string, data any) (Envelope, error) {
	env := Envelope{Event: event}
	if data == nil {
		return env, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env.Data = raw

	return env, nil
}

// ParseEnvelope decodes a raw frame into an envelope.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, errors.New("frame missing event name")
	}
	return env, nil
}

// Encode renders the envelope as a wire frame.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: missing payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}
