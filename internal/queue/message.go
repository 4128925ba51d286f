// Package queue carries job messages from the api-service to the workers.
package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedMessage marks a message body the worker cannot interpret.
// Such messages are dropped, never redelivered.
var ErrMalformedMessage = errors.New("malformed queue message")

// Message is the envelope sent once per accepted job. Data is the
// original request body, untouched.
type Message struct {
	JobID  string
	Action string
	Data   json.RawMessage
}

type wireMessage struct {
	JobID  string          `json:"job_id"`
	Action *string         `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Encode renders the envelope; an empty action is sent as null
func (m *Message) Encode() ([]byte, error) {
	wire := wireMessage{
		JobID: m.JobID,
		Data:  m.Data,
	}
	if m.Action != "" {
		action := m.Action
		wire.Action = &action
	}
	if len(wire.Data) == 0 {
		wire.Data = json.RawMessage("{}")
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue message: %w", err)
	}
	return body, nil
}

// DecodeMessage parses an envelope. job_id must be a non-empty string and
// the action and data keys must be present; a null action decodes to "".
func DecodeMessage(body []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var msg Message

	rawID, ok := fields["job_id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	if err := json.Unmarshal(rawID, &msg.JobID); err != nil || msg.JobID == "" {
		return nil, fmt.Errorf("%w: job_id must be a non-empty string", ErrMalformedMessage)
	}

	rawAction, ok := fields["action"]
	if !ok {
		return nil, fmt.Errorf("%w: missing action", ErrMalformedMessage)
	}
	msg.Action = ActionText(rawAction)

	data, ok := fields["data"]
	if !ok {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedMessage)
	}
	msg.Data = data

	return &msg, nil
}

// ActionText renders a raw JSON action value as stored on the job record:
// strings verbatim, null as empty, anything else as its JSON text.
func ActionText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}
