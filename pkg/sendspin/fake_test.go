// ABOUTME: In-memory Transport and Dialer used by session tests
// ABOUTME: Records outbound messages and lets tests inject inbound ones
package sendspin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-client/pkg/clock"
	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

var errFakeClosed = errors.New("fake transport closed")

type fakeMsg struct {
	kind protocol.MessageKind
	data []byte
}

type fakeTransport struct {
	mu        sync.Mutex
	sent      []protocol.Envelope
	in        chan fakeMsg
	done      chan struct{}
	once      sync.Once
	autoHello bool
}

func newFakeTransport(autoHello bool) *fakeTransport {
	return &fakeTransport{
		in:        make(chan fakeMsg, 256),
		done:      make(chan struct{}),
		autoHello: autoHello,
	}
}

func (f *fakeTransport) SendText(msg string) error {
	select {
	case <-f.done:
		return errFakeClosed
	default:
	}

	env, err := protocol.ParseEnvelope([]byte(msg))
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, env)
	f.mu.Unlock()

	if f.autoHello && env.Type == protocol.TypeClientHello {
		f.pushText(`{"type":"server/hello","payload":{"server_id":"srv-1","name":"Test Server","version":1,"active_roles":["player@v1"],"connection_reason":"playback"}}`)
	}
	return nil
}

func (f *fakeTransport) SendBinary([]byte) error { return nil }

func (f *fakeTransport) ReadMessage() (protocol.MessageKind, []byte, error) {
	select {
	case m := <-f.in:
		return m.kind, m.data, nil
	case <-f.done:
		return 0, nil, errFakeClosed
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

// drop simulates the server going away
func (f *fakeTransport) drop() { f.Close() }

func (f *fakeTransport) pushText(s string) {
	select {
	case f.in <- fakeMsg{protocol.TextMessage, []byte(s)}:
	case <-f.done:
	}
}

func (f *fakeTransport) pushJSON(typ, payload string) {
	f.pushText(fmt.Sprintf(`{"type":%q,"payload":%s}`, typ, payload))
}

func (f *fakeTransport) pushBinary(data []byte) {
	select {
	case f.in <- fakeMsg{protocol.BinaryMessage, data}:
	case <-f.done:
	}
}

func (f *fakeTransport) sentOfType(typ string) []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range f.sent {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeTransport) sentTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, env := range f.sent {
		out[i] = env.Type
	}
	return out
}

// fakeDialer hands out transports in order, or fails when none are left
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dials      int
	addrs      []string
}

func (d *fakeDialer) Dial(_ context.Context, addr string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.addrs = append(d.addrs, addr)
	if len(d.transports) == 0 {
		return nil, errors.New("connection refused")
	}
	t := d.transports[0]
	d.transports = d.transports[1:]
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// testConfig returns a config with fast timers and a quiet sampler
func testConfig(d Dialer) Config {
	return Config{
		ClientID:         "test-client",
		Name:             "Test Player",
		Dialer:           d,
		HandshakeTimeout: time.Second,
		MaxBackoff:       10 * time.Millisecond,
		ReadTimeout:      10 * time.Millisecond,
		Burst: clock.BurstConfig{
			Size:         1,
			Interval:     time.Millisecond,
			Grace:        time.Millisecond,
			Period:       time.Hour,
			WarmupPeriod: time.Hour,
		},
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitEvent returns the first event matching match
func waitEvent(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func isPhase(p Phase) func(Event) bool {
	return func(e Event) bool {
		se, ok := e.(StateEvent)
		return ok && se.State.Phase == p
	}
}
