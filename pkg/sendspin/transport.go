// ABOUTME: Transport capability injected into the session
// ABOUTME: Any full-duplex message stream carrying text and binary messages fits
package sendspin

import (
	"context"

	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

// Transport is one open, already-established connection to a server.
// SendText and SendBinary may be called concurrently with ReadMessage.
// ReadMessage must return freshly allocated buffers. Close unblocks a
// pending ReadMessage.
type Transport interface {
	SendText(msg string) error
	SendBinary(data []byte) error
	ReadMessage() (protocol.MessageKind, []byte, error)
	Close() error
}

// Dialer opens a Transport to an address of the form host:port[/path]
type Dialer interface {
	Dial(ctx context.Context, addr string) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context, addr string) (Transport, error)

// Dial calls f(ctx, addr)
func (f DialerFunc) Dial(ctx context.Context, addr string) (Transport, error) {
	return f(ctx, addr)
}

// Candidate is one way of reaching the server during reconnect, e.g. a
// direct local address or a relay. Candidates are tried in order.
type Candidate struct {
	Name    string
	Address string
	Dialer  Dialer // nil uses Config.Dialer
}
