// ABOUTME: Session controller owning the connection lifecycle
// ABOUTME: Connects, reconnects with backoff and exposes audio and events to the app
package sendspin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/Sendspin/sendspin-client/pkg/audio"
	"github.com/Sendspin/sendspin-client/pkg/clock"
	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

var log = logging.Logger("sendspin")

// Stats contains session statistics
type Stats struct {
	Queue       audio.QueueStats
	Frames      audio.DemuxStats
	Clock       clock.Estimate
	Bursts      int64
	SyncMisses  int64
	ParseErrors int64
	Reconnects  int64
	Buffered    time.Duration
}

// CommandArgs carries command-specific fields for SendCommand
type CommandArgs struct {
	Volume *int
	Mute   *bool
}

var controllerCommands = map[string]bool{
	"play": true, "pause": true, "stop": true, "next": true,
	"previous": true, "volume": true, "mute": true,
}

// Session is the client engine. One Session owns one clock and one audio
// queue for its whole life; connections come and go underneath it.
type Session struct {
	cfg    Config
	clock  *clock.Clock
	queue  *audio.Queue
	demux  *audio.Demuxer
	events *broker

	mu              sync.Mutex
	state           ConnectionState
	volume          int
	muted           bool
	conn            *conn
	lastAddr        string
	cancelReconnect context.CancelFunc
	closed          bool

	netUp chan struct{}

	bursts      atomic.Int64
	misses      atomic.Int64
	parseErrors atomic.Int64
	reconnects  atomic.Int64
}

// NewSession creates a disconnected session
func NewSession(cfg Config) *Session {
	cfg = cfg.withDefaults()

	s := &Session{
		cfg:    cfg,
		clock:  clock.New(cfg.Filter),
		queue:  audio.NewQueue(cfg.QueueCapacity, cfg.ReadTimeout),
		events: newBroker(cfg.EventBuffer),
		volume: cfg.Volume,
		muted:  cfg.Muted,
		netUp:  make(chan struct{}, 1),
		state:  ConnectionState{Phase: PhaseDisconnected, Sync: SyncSynchronized},
	}
	s.demux = audio.NewDemuxer(s.queue, s.clock, audio.DemuxerConfig{
		OnArtwork:    s.onArtwork,
		OnVisualizer: cfg.OnVisualizer,
		OnDrop:       cfg.Metrics.AudioDropped,
	})
	return s
}

// Connect dials addr and performs the handshake. It returns once the
// session is Connected or the attempt failed; it does not retry.
func (s *Session) Connect(ctx context.Context, addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state.Phase != PhaseDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state.Phase = PhaseConnecting
	s.state.Address = addr
	s.state.Attempt, s.state.Backoff = 0, 0
	s.lastAddr = addr
	s.mu.Unlock()
	s.stateChanged()

	// A previous disconnect marked EOF
	s.queue.Reset()

	c, err := s.establish(ctx, Candidate{Address: addr}, func() {
		s.transition(PhaseAwaitingHello, PhaseConnecting)
	})
	if err != nil {
		s.transition(PhaseDisconnected, PhaseConnecting, PhaseAwaitingHello)
		s.events.publish(ErrorEvent{Err: err, Terminal: true})
		return fmt.Errorf("connect %s: %w", addr, err)
	}

	if !s.adopt(c, false) {
		return fmt.Errorf("connect %s: disconnected during handshake: %w", addr, ErrNotConnected)
	}
	return nil
}

// establish dials one candidate and completes the handshake
func (s *Session) establish(ctx context.Context, cand Candidate, dialed func()) (*conn, error) {
	d := cand.Dialer
	if d == nil {
		d = s.cfg.Dialer
	}
	if d == nil {
		return nil, ErrNoDialer
	}

	log.Infof("Connecting to %s", cand.Address)
	t, err := d.Dial(ctx, cand.Address)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	if dialed != nil {
		dialed()
	}

	c := newConn(s, t, cand.Address)
	if err := c.handshake(ctx, s.cfg.HandshakeTimeout); err != nil {
		t.Close()
		return nil, err
	}
	return c, nil
}

// adopt makes c the live connection, sends the initial player state and
// starts the reader and sampler. It returns false if the session was
// disconnected while c was being established.
func (s *Session) adopt(c *conn, reconnected bool) bool {
	s.mu.Lock()
	if s.closed || s.state.Phase == PhaseDisconnected {
		s.mu.Unlock()
		c.cancel()
		c.cancelled.Store(true)
		c.t.Close()
		return false
	}
	s.conn = c
	s.lastAddr = c.addr
	s.state = ConnectionState{Phase: PhaseConnected, Sync: s.state.Sync, Address: c.addr}
	player := s.playerStateLocked()
	s.mu.Unlock()

	s.stateChanged()
	s.events.publish(ConnectedEvent{Server: c.server, Address: c.addr, Reconnected: reconnected})

	if err := c.sendState(player); err != nil {
		log.Warnf("Failed to send initial state: %v", err)
	}

	go c.sampler.Run(c.ctx)
	go c.readLoop()
	return true
}

// Disconnect ends the connection intentionally. The queue is drained and
// marked EOF but stays usable for the next Connect.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	cancelReconnect := s.cancelReconnect
	s.cancelReconnect = nil
	wasDisconnected := s.state.Phase == PhaseDisconnected
	s.state = ConnectionState{Phase: PhaseDisconnected, Sync: s.state.Sync}
	s.mu.Unlock()

	if cancelReconnect != nil {
		cancelReconnect()
	}

	if c != nil {
		c.cancel()
		c.cancelled.Store(true)
		if err := c.sendGoodbye("user_request"); err != nil {
			log.Debugf("Goodbye not sent: %v", err)
		}
		c.t.Close()
	}

	s.queue.Drain()
	s.queue.MarkEOF()

	if wasDisconnected && c == nil {
		return ErrNotConnected
	}
	s.stateChanged()
	log.Infof("Disconnected")
	return nil
}

// Close disconnects and releases the queue and all subscriptions
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.queue.Close()
	s.events.close()
	return nil
}

// connectionLost handles an unexpected transport failure on c. The queue
// is kept so playback continues from buffer during the gap.
func (s *Session) connectionLost(c *conn, err error) {
	s.mu.Lock()
	if s.conn != c || c.cancelled.Load() {
		s.mu.Unlock()
		return
	}
	c.cancel()
	c.cancelled.Store(true)
	s.conn = nil

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelReconnect = cancel
	addr := s.lastAddr
	lost := ConnectionState{Phase: PhaseDisconnected, Sync: s.state.Sync, Address: c.addr, Unexpected: true}
	s.mu.Unlock()

	c.t.Close()
	log.Warnf("Connection to %s lost: %v", c.addr, err)

	// Announced but not stored: the session stays owned by the reconnect
	// loop, so Connect and adopt must not see a user-level Disconnected.
	buffered := s.demux.BufferedDuration()
	s.cfg.Metrics.StateChanged(lost.Phase)
	s.events.publish(StateEvent{State: lost, Buffered: buffered})
	s.events.publish(ErrorEvent{Err: err})

	go s.reconnect(ctx, cancel, addr)
}

// reconnect retries candidates with exponential backoff
func (s *Session) reconnect(ctx context.Context, cancel context.CancelFunc, addr string) {
	defer cancel()

	candidates := append([]Candidate(nil), s.cfg.Candidates...)
	if addr != "" {
		candidates = append(candidates, Candidate{Name: "last", Address: addr})
	}

	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		wait := Backoff(attempt, s.cfg.MaxBackoff)

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.state = ConnectionState{
			Phase:   PhaseReconnecting,
			Sync:    s.state.Sync,
			Address: addr,
			Attempt: attempt,
			Backoff: wait,
		}
		s.mu.Unlock()
		s.stateChanged()
		s.reconnects.Add(1)
		s.cfg.Metrics.ReconnectAttempt(attempt)

		// Drop a stale network signal from before this wait
		select {
		case <-s.netUp:
		default:
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.netUp:
			timer.Stop()
			log.Infof("Network available, retrying now")
		}

		for _, cand := range candidates {
			c, err := s.establish(ctx, cand, nil)
			if err != nil {
				log.Infof("Reconnect attempt %d via %s failed: %v", attempt, candidateName(cand), err)
				if ctx.Err() != nil {
					return
				}
				continue
			}

			s.mu.Lock()
			if ctx.Err() != nil {
				s.mu.Unlock()
				c.t.Close()
				return
			}
			s.cancelReconnect = nil
			s.mu.Unlock()

			if s.adopt(c, true) {
				log.Infof("Reconnected via %s after %d attempts", candidateName(cand), attempt)
			}
			return
		}
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.cancelReconnect = nil
	s.state = ConnectionState{Phase: PhaseDisconnected, Sync: s.state.Sync}
	s.mu.Unlock()

	log.Errorf("Giving up after %d reconnect attempts", s.cfg.MaxReconnectAttempts)
	s.queue.MarkEOF()
	s.stateChanged()
	s.events.publish(ErrorEvent{Err: ErrReconnectExhausted, Terminal: true})
}

func candidateName(c Candidate) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Address
}

// NetworkAvailable short-circuits the current reconnect backoff
func (s *Session) NetworkAvailable() {
	select {
	case s.netUp <- struct{}{}:
	default:
	}
}

// SendCommand sends a controller command (play, pause, stop, next,
// previous, volume, mute) to the server.
func (s *Session) SendCommand(name string, args CommandArgs) error {
	if !controllerCommands[name] {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}

	cmd := &protocol.ControllerCommand{Command: name}
	switch name {
	case "volume":
		if args.Volume == nil || *args.Volume < 0 || *args.Volume > 100 {
			return fmt.Errorf("%w: volume needs a value 0-100", ErrInvalidCommand)
		}
		cmd.Volume = args.Volume
	case "mute":
		if args.Mute == nil {
			return fmt.Errorf("%w: mute needs a value", ErrInvalidCommand)
		}
		cmd.Mute = args.Mute
	}

	c := s.current()
	if c == nil {
		return ErrNotConnected
	}
	return c.send(protocol.TypeClientCommand, protocol.ClientCommandMessage{Controller: cmd})
}

// SetVolume sets the local volume (clamped to 0-100) and reports it to the
// server when connected.
func (s *Session) SetVolume(volume int) error {
	s.mu.Lock()
	s.volume = clampVolume(volume)
	ev := VolumeEvent{Volume: s.volume, Muted: s.muted}
	s.mu.Unlock()

	s.events.publish(ev)
	return s.reportState()
}

// SetMuted sets the local mute flag and reports it to the server when connected
func (s *Session) SetMuted(muted bool) error {
	s.mu.Lock()
	s.muted = muted
	ev := VolumeEvent{Volume: s.volume, Muted: s.muted}
	s.mu.Unlock()

	s.events.publish(ev)
	return s.reportState()
}

// SetSyncState sets the reported player state
func (s *Session) SetSyncState(state SyncState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid sync state %q", state)
	}

	s.mu.Lock()
	changed := s.state.Sync != state
	s.state.Sync = state
	s.mu.Unlock()

	if changed {
		s.stateChanged()
	}
	return s.reportState()
}

// Volume returns the current local volume and mute flag
func (s *Session) Volume() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, s.muted
}

func (s *Session) applyServerCommand(c *conn, cmd *protocol.PlayerCommand) {
	s.mu.Lock()
	switch cmd.Command {
	case "volume":
		if cmd.Volume == nil {
			s.mu.Unlock()
			s.parseError(protocol.TypeServerCommand, &protocol.ParseError{
				Type: protocol.TypeServerCommand, Field: "player.volume", Err: protocol.ErrMissingField,
			})
			return
		}
		s.volume = *cmd.Volume
	case "mute":
		if cmd.Mute == nil {
			s.mu.Unlock()
			s.parseError(protocol.TypeServerCommand, &protocol.ParseError{
				Type: protocol.TypeServerCommand, Field: "player.mute", Err: protocol.ErrMissingField,
			})
			return
		}
		s.muted = *cmd.Mute
	default:
		s.mu.Unlock()
		log.Debugf("Ignoring unknown server command: %s", cmd.Command)
		return
	}
	ev := VolumeEvent{Volume: s.volume, Muted: s.muted, FromServer: true}
	player := s.playerStateLocked()
	s.mu.Unlock()

	log.Infof("Server command %s: volume=%d muted=%v", cmd.Command, ev.Volume, ev.Muted)
	s.events.publish(ev)

	if err := c.sendState(player); err != nil {
		log.Warnf("Failed to echo player state: %v", err)
	}
}

// reportState sends client/state if connected
func (s *Session) reportState() error {
	s.mu.Lock()
	c := s.conn
	player := s.playerStateLocked()
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.sendState(player)
}

func (s *Session) playerStateLocked() protocol.PlayerState {
	return protocol.PlayerState{
		State:  string(s.state.Sync),
		Volume: s.volume,
		Muted:  s.muted,
	}
}

func (s *Session) current() *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// transition moves to phase to if the current phase is one of from
func (s *Session) transition(to Phase, from ...Phase) bool {
	s.mu.Lock()
	ok := false
	for _, p := range from {
		if s.state.Phase == p {
			ok = true
			break
		}
	}
	if ok {
		s.state.Phase = to
		if to == PhaseDisconnected {
			s.state.Address = ""
		}
	}
	s.mu.Unlock()

	if ok {
		s.stateChanged()
	}
	return ok
}

// stateChanged publishes the current state with the buffered duration
func (s *Session) stateChanged() {
	st := s.State()
	buffered := s.demux.BufferedDuration()
	s.cfg.Metrics.StateChanged(st.Phase)
	s.cfg.Metrics.BufferedAudio(buffered)
	log.Debugf("State: %s (buffered %s)", st, buffered)
	s.events.publish(StateEvent{State: st, Buffered: buffered})
}

func (s *Session) parseError(msgType string, err error) {
	s.parseErrors.Add(1)
	s.cfg.Metrics.ParseError(msgType)
	log.Warnf("Skipping malformed %s message: %v", msgType, err)
	s.events.publish(ParseErrorEvent{Type: msgType, Err: err})
}

func (s *Session) onBurst(best clock.Measurement, ok bool) {
	if ok {
		s.bursts.Add(1)
	} else {
		s.misses.Add(1)
	}
	s.cfg.Metrics.SyncBurst(ok, time.Duration(best.RTT)*time.Microsecond)
	s.cfg.Metrics.ClockEstimate(s.clock.Estimate())
	s.cfg.Metrics.BufferedAudio(s.demux.BufferedDuration())
}

func (s *Session) onArtwork(channel int, data []byte) {
	if s.cfg.OnArtwork != nil {
		s.cfg.OnArtwork(channel, data)
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	s.events.publish(ArtworkEvent{Channel: channel, Data: owned})
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. Events are dropped for a subscriber whose buffer is full.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// Read copies queued audio into p: (n, nil) with data, (0, nil) on
// timeout, (0, io.EOF) at end of stream.
func (s *Session) Read(p []byte) (int, error) {
	return s.queue.Read(p)
}

// Next returns the next whole audio chunk with its presentation time
func (s *Session) Next(timeout time.Duration) (audio.Chunk, bool, error) {
	return s.queue.Next(timeout)
}

// Format returns the current stream format, if a stream is active
func (s *Session) Format() (audio.Format, bool) {
	return s.demux.Format()
}

// State returns the current connection state
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Clock returns the session clock
func (s *Session) Clock() *clock.Clock {
	return s.clock
}

// Stats returns a snapshot of session counters
func (s *Session) Stats() Stats {
	return Stats{
		Queue:       s.queue.Stats(),
		Frames:      s.demux.Stats(),
		Clock:       s.clock.Estimate(),
		Bursts:      s.bursts.Load(),
		SyncMisses:  s.misses.Load(),
		ParseErrors: s.parseErrors.Load(),
		Reconnects:  s.reconnects.Load(),
		Buffered:    s.demux.BufferedDuration(),
	}
}
