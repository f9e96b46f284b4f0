// ABOUTME: Tests for schema-checked inbound message parsing
// ABOUTME: Verifies required fields, explicit optionals and ParseError details
package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"server/time","payload":{"a":1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != TypeServerTime {
		t.Errorf("expected server/time, got %s", env.Type)
	}

	var perr *ParseError
	if _, err := ParseEnvelope([]byte(`not json`)); !errors.As(err, &perr) {
		t.Errorf("expected ParseError for garbage, got %v", err)
	}
	if _, err := ParseEnvelope([]byte(`{"payload":{}}`)); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected missing type error, got %v", err)
	}
}

func TestParseServerTime(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		field   string
		wantErr bool
	}{
		{"complete", `{"client_transmitted":1,"server_received":2,"server_transmitted":3}`, "", false},
		{"missing received", `{"client_transmitted":1,"server_transmitted":3}`, "server_received", true},
		{"null transmitted", `{"client_transmitted":1,"server_received":2,"server_transmitted":null}`, "server_transmitted", true},
		{"no payload", ``, "payload", true},
		{"wrong type", `{"client_transmitted":"x","server_received":2,"server_transmitted":3}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseServerTime(json.RawMessage(tt.raw))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if st.ClientTransmitted != 1 || st.ServerReceived != 2 || st.ServerTransmitted != 3 {
					t.Errorf("unexpected values: %+v", st)
				}
				return
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if perr.Type != TypeServerTime {
				t.Errorf("expected type server/time, got %s", perr.Type)
			}
			if perr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, perr.Field)
			}
		})
	}
}

func TestParseServerStateOptionals(t *testing.T) {
	state, err := ParseServerState(json.RawMessage(`{"metadata":{"title":"","artist":"Band"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := state.Metadata
	if md == nil {
		t.Fatal("expected metadata")
	}
	if md.Title == nil || *md.Title != "" {
		t.Error("empty title must be present and empty")
	}
	if md.Album != nil {
		t.Error("missing album must stay nil")
	}
	if state.Controller != nil {
		t.Error("missing controller must stay nil")
	}
}

func TestParseServerCommand(t *testing.T) {
	cmd, err := ParseServerCommand(json.RawMessage(`{"player":{"command":"volume","volume":35}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Player.Volume == nil || *cmd.Player.Volume != 35 {
		t.Errorf("expected volume 35, got %v", cmd.Player.Volume)
	}

	bad := []string{
		`{}`,
		`{"player":{}}`,
		`{"player":{"command":"volume","volume":101}}`,
	}
	for _, raw := range bad {
		if _, err := ParseServerCommand(json.RawMessage(raw)); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestParseStreamStart(t *testing.T) {
	raw := `{"player":{"codec":"opus","sample_rate":48000,"channels":2,"bit_depth":16,"codec_header":"AQID"}}`
	start, err := ParseStreamStart(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	header, err := start.Player.Header()
	if err != nil {
		t.Fatalf("header decode failed: %v", err)
	}
	if len(header) != 3 || header[0] != 1 || header[2] != 3 {
		t.Errorf("unexpected header %v", header)
	}

	tests := map[string]string{
		"player.sample_rate":  `{"player":{"codec":"pcm","sample_rate":0,"channels":2,"bit_depth":16}}`,
		"player.codec":        `{"player":{"sample_rate":48000,"channels":2,"bit_depth":16}}`,
		"player.codec_header": `{"player":{"codec":"flac","sample_rate":48000,"channels":2,"bit_depth":16,"codec_header":"!!"}}`,
		"player":              `{}`,
	}
	for field, raw := range tests {
		var perr *ParseError
		if _, err := ParseStreamStart(json.RawMessage(raw)); !errors.As(err, &perr) || perr.Field != field {
			t.Errorf("expected error on %s, got %v", field, err)
		}
	}
}

func TestParseEmptyPayloads(t *testing.T) {
	if _, err := ParseStreamClear(nil); err != nil {
		t.Errorf("stream/clear without payload: %v", err)
	}
	if _, err := ParseStreamEnd(json.RawMessage(`null`)); err != nil {
		t.Errorf("stream/end with null payload: %v", err)
	}
	if _, err := ParseGroupUpdate(json.RawMessage(`{}`)); err != nil {
		t.Errorf("empty group/update: %v", err)
	}
}

func TestParseSyncOffset(t *testing.T) {
	off, err := ParseSyncOffset(json.RawMessage(`{"offset_ms":-120.5,"source":"manual"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if off.OffsetMs != -120.5 || off.Source != "manual" {
		t.Errorf("unexpected offset %+v", off)
	}
	if _, err := ParseSyncOffset(json.RawMessage(`{"source":"manual"}`)); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected missing offset_ms, got %v", err)
	}
}
