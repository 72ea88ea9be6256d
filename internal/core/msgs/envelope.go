package msgs

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Envelope is the wire form used when a message leaves the process.
type Envelope struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

var decoders = map[string]func(json.RawMessage) (Message, error){
	MagnetometerType: decodeAs[Magnetometer],
}

func decodeAs[T Message](raw json.RawMessage) (Message, error) {
	var m T
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Marshal wraps msg in an Envelope addressed to topic and encodes it as JSON.
func Marshal(topic string, msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("nil message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.TypeName(), err)
	}
	return json.Marshal(Envelope{Type: msg.TypeName(), Topic: topic, Payload: payload})
}

// Unmarshal decodes an Envelope and its payload into the concrete message type.
func Unmarshal(data []byte) (Envelope, Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("decode envelope: %w", err)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	msg, err := decode(env.Payload)
	if err != nil {
		return env, nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return env, msg, nil
}
