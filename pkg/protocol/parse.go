// ABOUTME: Schema-checked decoding of inbound SendSpin control messages
// ABOUTME: Required fields must be present; missing optional fields stay nil
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingField marks a required payload field that was absent or null
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField marks a field whose value is out of range
	ErrInvalidField = errors.New("invalid field value")
)

// ParseError describes an inbound message that failed schema checks.
// Field is empty when the whole payload could not be decoded.
type ParseError struct {
	Type  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s: field %q: %v", e.Type, e.Field, e.Err)
	}
	if e.Type != "" {
		return fmt.Sprintf("parse %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("parse message: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseEnvelope decodes the outer {type, payload} wrapper
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &ParseError{Err: err}
	}
	if env.Type == "" {
		return Envelope{}, &ParseError{Field: "type", Err: ErrMissingField}
	}
	return env, nil
}

// decodePayload unmarshals raw into v after checking that every named
// top-level field is present and non-null.
func decodePayload(typ string, raw json.RawMessage, v interface{}, required ...string) error {
	if len(raw) == 0 || string(raw) == "null" {
		if len(required) == 0 {
			return nil
		}
		return &ParseError{Type: typ, Field: "payload", Err: ErrMissingField}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &ParseError{Type: typ, Err: err}
	}
	for _, name := range required {
		val, ok := fields[name]
		if !ok || string(val) == "null" {
			return &ParseError{Type: typ, Field: name, Err: ErrMissingField}
		}
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return &ParseError{Type: typ, Err: err}
	}
	return nil
}

// ParseServerHello decodes a server/hello payload
func ParseServerHello(raw json.RawMessage) (ServerHello, error) {
	var hello ServerHello
	if err := decodePayload(TypeServerHello, raw, &hello, "server_id"); err != nil {
		return ServerHello{}, err
	}
	return hello, nil
}

// ParseServerTime decodes a server/time payload; all three timestamps are required
func ParseServerTime(raw json.RawMessage) (ServerTime, error) {
	var st ServerTime
	if err := decodePayload(TypeServerTime, raw, &st,
		"client_transmitted", "server_received", "server_transmitted"); err != nil {
		return ServerTime{}, err
	}
	return st, nil
}

// ParseServerState decodes a server/state payload
func ParseServerState(raw json.RawMessage) (ServerStateMessage, error) {
	var state ServerStateMessage
	if err := decodePayload(TypeServerState, raw, &state); err != nil {
		return ServerStateMessage{}, err
	}
	return state, nil
}

// ParseServerCommand decodes a server/command payload. Volume outside
// 0-100 is rejected rather than clamped.
func ParseServerCommand(raw json.RawMessage) (ServerCommandMessage, error) {
	var cmd ServerCommandMessage
	if err := decodePayload(TypeServerCommand, raw, &cmd, "player"); err != nil {
		return ServerCommandMessage{}, err
	}
	if cmd.Player.Command == "" {
		return ServerCommandMessage{}, &ParseError{Type: TypeServerCommand, Field: "player.command", Err: ErrMissingField}
	}
	if v := cmd.Player.Volume; v != nil && (*v < 0 || *v > 100) {
		return ServerCommandMessage{}, &ParseError{Type: TypeServerCommand, Field: "player.volume", Err: ErrInvalidField}
	}
	return cmd, nil
}

// ParseGroupUpdate decodes a group/update payload
func ParseGroupUpdate(raw json.RawMessage) (GroupUpdate, error) {
	var update GroupUpdate
	if err := decodePayload(TypeGroupUpdate, raw, &update); err != nil {
		return GroupUpdate{}, err
	}
	return update, nil
}

// ParseStreamStart decodes a stream/start payload and validates the format
func ParseStreamStart(raw json.RawMessage) (StreamStart, error) {
	var start StreamStart
	if err := decodePayload(TypeStreamStart, raw, &start, "player"); err != nil {
		return StreamStart{}, err
	}

	p := start.Player
	switch {
	case p.Codec == "":
		return StreamStart{}, &ParseError{Type: TypeStreamStart, Field: "player.codec", Err: ErrMissingField}
	case p.SampleRate <= 0:
		return StreamStart{}, &ParseError{Type: TypeStreamStart, Field: "player.sample_rate", Err: ErrInvalidField}
	case p.Channels <= 0:
		return StreamStart{}, &ParseError{Type: TypeStreamStart, Field: "player.channels", Err: ErrInvalidField}
	case p.BitDepth <= 0:
		return StreamStart{}, &ParseError{Type: TypeStreamStart, Field: "player.bit_depth", Err: ErrInvalidField}
	}
	if _, err := p.Header(); err != nil {
		return StreamStart{}, &ParseError{Type: TypeStreamStart, Field: "player.codec_header", Err: err}
	}
	return start, nil
}

// Header returns the decoded codec header, or nil when none was sent
func (p *StreamStartPlayer) Header() ([]byte, error) {
	if p.CodecHeader == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(p.CodecHeader)
}

// ParseStreamClear decodes a stream/clear payload (may be empty)
func ParseStreamClear(raw json.RawMessage) (StreamClear, error) {
	var clear StreamClear
	if err := decodePayload(TypeStreamClear, raw, &clear); err != nil {
		return StreamClear{}, err
	}
	return clear, nil
}

// ParseStreamEnd decodes a stream/end payload (may be empty)
func ParseStreamEnd(raw json.RawMessage) (StreamEnd, error) {
	var end StreamEnd
	if err := decodePayload(TypeStreamEnd, raw, &end); err != nil {
		return StreamEnd{}, err
	}
	return end, nil
}

// ParseSyncOffset decodes an inbound client/sync_offset payload
func ParseSyncOffset(raw json.RawMessage) (ClientSyncOffset, error) {
	var off ClientSyncOffset
	if err := decodePayload(TypeClientSyncOffset, raw, &off, "offset_ms"); err != nil {
		return ClientSyncOffset{}, err
	}
	return off, nil
}

// Encode wraps a payload in the {type, payload} envelope and marshals it
func Encode(typ string, payload interface{}) (string, error) {
	data, err := json.Marshal(Message{Type: typ, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", typ, err)
	}
	return string(data), nil
}
