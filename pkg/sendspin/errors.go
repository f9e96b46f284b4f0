// ABOUTME: Error values returned by the session
// ABOUTME: Only transport and handshake errors end a connection
package sendspin

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrHandshakeTimeout   = errors.New("timed out waiting for server/hello")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrSessionClosed      = errors.New("session closed")
	ErrNoDialer           = errors.New("no dialer configured")
	ErrInvalidCommand     = errors.New("invalid command")
)

// HandshakeError fails a single connect attempt
type HandshakeError struct {
	Reason string
	Err    error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("handshake failed: %s", e.Reason)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// TransportError is a read or write failure on an open connection
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
