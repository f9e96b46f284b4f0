// ABOUTME: Tagged event types delivered to session subscribers
// ABOUTME: Fan-out never blocks the network reader; slow subscribers lose events
package sendspin

import (
	"sync"
	"time"

	"github.com/Sendspin/sendspin-client/pkg/audio"
	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

// Event is implemented by every event type below. Consumers type-switch
// on the ones they care about.
type Event interface {
	isEvent()
}

// TrackMetadata is now-playing information. Nil fields were not sent;
// an empty string was sent as empty.
type TrackMetadata struct {
	Title       *string
	Artist      *string
	AlbumArtist *string
	Album       *string
	ArtworkURL  *string
	Year        *int
	Track       *int
	Duration    *time.Duration
	Position    *time.Duration
	Repeat      *string
	Shuffle     *bool
}

// GroupInfo is the multi-room group state
type GroupInfo struct {
	GroupID       *string
	GroupName     *string
	PlaybackState *string
}

// StateEvent reports a connection state transition. Buffered is the
// audio still queued locally, so a UI can show "playing from buffer".
type StateEvent struct {
	State    ConnectionState
	Buffered time.Duration
}

// ConnectedEvent is emitted when a handshake completes
type ConnectedEvent struct {
	Server      protocol.ServerHello
	Address     string
	Reconnected bool
}

type MetadataEvent struct{ Metadata TrackMetadata }

type GroupEvent struct{ Group GroupInfo }

// PlaybackEvent carries the controller part of server/state
type PlaybackEvent struct {
	SupportedCommands []string
	GroupVolume       *int
	GroupMuted        *bool
}

type StreamStartEvent struct{ Format audio.Format }

type StreamClearEvent struct{}

type StreamEndEvent struct{}

// ArtworkEvent carries one artwork image; Data is owned by the receiver
type ArtworkEvent struct {
	Channel int
	Data    []byte
}

// VolumeEvent reports a local volume/mute change
type VolumeEvent struct {
	Volume     int
	Muted      bool
	FromServer bool
}

// SyncOffsetEvent reports a manual calibration applied from the server
type SyncOffsetEvent struct {
	RequestedMs float64
	AppliedMs   int
	Source      string
}

// ParseErrorEvent reports one skipped inbound message
type ParseErrorEvent struct {
	Type string
	Err  error
}

// ErrorEvent reports a connection failure. Terminal errors end the session
// until Connect is called again.
type ErrorEvent struct {
	Err      error
	Terminal bool
}

func (StateEvent) isEvent()       {}
func (ConnectedEvent) isEvent()   {}
func (MetadataEvent) isEvent()    {}
func (GroupEvent) isEvent()       {}
func (PlaybackEvent) isEvent()    {}
func (StreamStartEvent) isEvent() {}
func (StreamClearEvent) isEvent() {}
func (StreamEndEvent) isEvent()   {}
func (ArtworkEvent) isEvent()     {}
func (VolumeEvent) isEvent()      {}
func (SyncOffsetEvent) isEvent()  {}
func (ParseErrorEvent) isEvent()  {}
func (ErrorEvent) isEvent()       {}

// broker fans events out to subscribers
type broker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	size   int
	closed bool
	missed int64
}

func newBroker(size int) *broker {
	if size <= 0 {
		size = 64
	}
	return &broker{subs: make(map[int]chan Event), size: size}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.size)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.missed++
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
