// ABOUTME: Connection phase and sync state of a session
// ABOUTME: Snapshots handed to subscribers are plain values
package sendspin

import (
	"fmt"
	"time"
)

// Phase is the session connection phase
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseAwaitingHello
	PhaseConnected
	PhaseReconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseAwaitingHello:
		return "awaiting_hello"
	case PhaseConnected:
		return "connected"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// SyncState is the player state reported to the server
type SyncState string

const (
	SyncSynchronized SyncState = "synchronized"
	SyncError        SyncState = "error"
)

// Valid reports whether s is one of the known states
func (s SyncState) Valid() bool {
	return s == SyncSynchronized || s == SyncError
}

// ConnectionState is a snapshot of the session phase. Attempt and Backoff
// are only set while reconnecting. Unexpected marks a Disconnected state
// caused by a transport failure; a reconnect follows it.
type ConnectionState struct {
	Phase      Phase
	Sync       SyncState
	Address    string
	Attempt    int
	Backoff    time.Duration
	Unexpected bool
}

func (s ConnectionState) String() string {
	switch s.Phase {
	case PhaseConnected:
		return fmt.Sprintf("connected(%s)", s.Sync)
	case PhaseReconnecting:
		return fmt.Sprintf("reconnecting(attempt=%d, backoff=%s)", s.Attempt, s.Backoff)
	case PhaseDisconnected:
		if s.Unexpected {
			return "disconnected(unexpected)"
		}
		return s.Phase.String()
	default:
		return s.Phase.String()
	}
}
