// ABOUTME: Per-connection message dispatcher for the SendSpin protocol
// ABOUTME: Performs the handshake, then routes text messages and binary frames
package sendspin

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/Sendspin/sendspin-client/pkg/audio"
	"github.com/Sendspin/sendspin-client/pkg/clock"
	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

// conn is one established transport plus its reader and sampler. It is
// discarded on disconnect; the session's clock and queue outlive it.
type conn struct {
	s       *Session
	t       Transport
	addr    string
	server  protocol.ServerHello
	sampler *clock.Sampler

	ctx    context.Context
	cancel context.CancelFunc

	// cancelled is checked before every read and every dispatch so a reader
	// racing a disconnect never delivers a stale callback.
	cancelled atomic.Bool
}

func newConn(s *Session, t Transport, addr string) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{s: s, t: t, addr: addr, ctx: ctx, cancel: cancel}
	c.sampler = clock.NewSampler(s.clock, c.sendTime, s.cfg.Burst)
	c.sampler.OnBurst = s.onBurst
	return c
}

// send wraps payload in the message envelope and writes it
func (c *conn) send(typ string, payload interface{}) error {
	msg, err := protocol.Encode(typ, payload)
	if err != nil {
		return err
	}
	if err := c.t.SendText(msg); err != nil {
		return &TransportError{Op: "write " + typ, Err: err}
	}
	return nil
}

func (c *conn) sendHello() error {
	cfg := c.s.cfg

	// Versioned role list
	roles := []string{"player@v1", "metadata@v1", "controller@v1"}
	if cfg.Artwork != nil {
		roles = append(roles, "artwork@v1")
	}
	if cfg.Visualizer != nil {
		roles = append(roles, "visualizer@v1")
	}

	device := cfg.DeviceInfo
	hello := protocol.ClientHello{
		ClientID:       cfg.ClientID,
		Name:           cfg.Name,
		Version:        1,
		SupportedRoles: roles,
		DeviceInfo:     &device,
		PlayerV1Support: &protocol.PlayerV1Support{
			SupportedFormats:  cfg.SupportedFormats,
			BufferCapacity:    cfg.BufferCapacity,
			SupportedCommands: []string{"volume", "mute"},
		},
		ArtworkV1Support:    cfg.Artwork,
		VisualizerV1Support: cfg.Visualizer,
	}
	return c.send(protocol.TypeClientHello, hello)
}

func (c *conn) sendTime(t1 int64) error {
	if c.cancelled.Load() {
		return ErrNotConnected
	}
	return c.send(protocol.TypeClientTime, protocol.ClientTime{ClientTransmitted: t1})
}

func (c *conn) sendState(state protocol.PlayerState) error {
	return c.send(protocol.TypeClientState, protocol.ClientStateMessage{Player: &state})
}

func (c *conn) sendGoodbye(reason string) error {
	return c.send(protocol.TypeClientGoodbye, protocol.ClientGoodbye{Reason: reason})
}

type readResult struct {
	kind protocol.MessageKind
	data []byte
	err  error
}

// handshake sends client/hello and waits for server/hello. On timeout or
// cancellation the transport is closed to unblock the pending read.
func (c *conn) handshake(ctx context.Context, timeout time.Duration) error {
	if err := c.sendHello(); err != nil {
		return &HandshakeError{Reason: "send client/hello", Err: err}
	}

	result := make(chan readResult, 1)
	go func() {
		kind, data, err := c.t.ReadMessage()
		result <- readResult{kind, data, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var r readResult
	select {
	case r = <-result:
	case <-timer.C:
		c.t.Close()
		return &HandshakeError{Reason: "timeout", Err: ErrHandshakeTimeout}
	case <-ctx.Done():
		c.t.Close()
		return &HandshakeError{Reason: "cancelled", Err: ctx.Err()}
	}

	if r.err != nil {
		return &HandshakeError{Reason: "read server/hello", Err: &TransportError{Op: "read", Err: r.err}}
	}
	if r.kind != protocol.TextMessage {
		return &HandshakeError{Reason: fmt.Sprintf("expected server/hello, got %s message", r.kind)}
	}

	env, err := protocol.ParseEnvelope(r.data)
	if err != nil {
		return &HandshakeError{Reason: "malformed server/hello", Err: err}
	}
	if env.Type != protocol.TypeServerHello {
		return &HandshakeError{Reason: fmt.Sprintf("expected server/hello, got %s", env.Type)}
	}
	hello, err := protocol.ParseServerHello(env.Payload)
	if err != nil {
		return &HandshakeError{Reason: "malformed server/hello", Err: err}
	}

	c.server = hello
	log.Infof("Handshake complete with %s (%s), roles=%v, reason=%s",
		hello.Name, hello.ServerID, hello.ActiveRoles, hello.ConnectionReason)
	return nil
}

// readLoop reads until the transport fails or the connection is cancelled
func (c *conn) readLoop() {
	for {
		if c.cancelled.Load() {
			return
		}

		kind, data, err := c.t.ReadMessage()
		received := c.s.clock.Now()

		if c.cancelled.Load() {
			return
		}
		if err != nil {
			c.s.connectionLost(c, &TransportError{Op: "read", Err: err})
			return
		}

		switch kind {
		case protocol.TextMessage:
			c.handleText(data, received)
		case protocol.BinaryMessage:
			c.handleBinary(data)
		default:
			log.Debugf("Ignoring transport message of kind %d", kind)
		}
	}
}

func (c *conn) handleBinary(data []byte) {
	f, err := protocol.DecodeFrame(data)
	if err != nil {
		c.s.parseError("binary", err)
		return
	}
	if f.Kind == protocol.FrameUnknown {
		c.s.cfg.Metrics.UnknownFrame()
	}
	c.s.demux.Handle(f)
}

func (c *conn) handleText(data []byte, received int64) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		c.s.parseError("envelope", err)
		return
	}

	s := c.s
	switch env.Type {
	case protocol.TypeServerTime:
		st, err := protocol.ParseServerTime(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		c.sampler.Add(clock.NewMeasurement(st.ClientTransmitted, st.ServerReceived, st.ServerTransmitted, received))

	case protocol.TypeServerState:
		state, err := protocol.ParseServerState(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		if state.Metadata != nil {
			s.events.publish(MetadataEvent{Metadata: convertMetadata(state.Metadata)})
		}
		if ctl := state.Controller; ctl != nil {
			s.events.publish(PlaybackEvent{
				SupportedCommands: ctl.SupportedCommands,
				GroupVolume:       ctl.Volume,
				GroupMuted:        ctl.Muted,
			})
		}

	case protocol.TypeServerCommand:
		cmd, err := protocol.ParseServerCommand(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		s.applyServerCommand(c, cmd.Player)

	case protocol.TypeGroupUpdate:
		update, err := protocol.ParseGroupUpdate(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		s.events.publish(GroupEvent{Group: GroupInfo{
			GroupID:       update.GroupID,
			GroupName:     update.GroupName,
			PlaybackState: update.PlaybackState,
		}})
		if update.Metadata != nil {
			s.events.publish(MetadataEvent{Metadata: convertMetadata(update.Metadata)})
		}

	case protocol.TypeStreamStart:
		start, err := protocol.ParseStreamStart(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		header, _ := start.Player.Header()
		format := audio.Format{
			Codec:       start.Player.Codec,
			SampleRate:  start.Player.SampleRate,
			Channels:    start.Player.Channels,
			BitDepth:    start.Player.BitDepth,
			CodecHeader: header,
		}
		s.demux.Start(format)
		s.events.publish(StreamStartEvent{Format: format})

	case protocol.TypeStreamClear:
		clear, err := protocol.ParseStreamClear(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		if includesPlayer(clear.Roles) {
			s.demux.Clear()
			s.events.publish(StreamClearEvent{})
		}

	case protocol.TypeStreamEnd:
		end, err := protocol.ParseStreamEnd(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		if includesPlayer(end.Roles) {
			s.demux.End()
			s.events.publish(StreamEndEvent{})
		}

	case protocol.TypeClientSyncOffset:
		off, err := protocol.ParseSyncOffset(env.Payload)
		if err != nil {
			s.parseError(env.Type, err)
			return
		}
		applied := s.clock.SetStaticDelay(roundMs(off.OffsetMs))
		if float64(applied) != math.Round(off.OffsetMs) {
			log.Warnf("Sync offset %.1fms out of range, clamped to %dms", off.OffsetMs, applied)
		}
		s.events.publish(SyncOffsetEvent{RequestedMs: off.OffsetMs, AppliedMs: applied, Source: off.Source})

	case protocol.TypeServerHello:
		log.Debugf("Ignoring repeated server/hello")

	default:
		log.Debugf("Ignoring unknown message type: %s", env.Type)
	}
}

// roundMs converts a float millisecond value to int without overflowing
func roundMs(ms float64) int {
	switch {
	case math.IsNaN(ms):
		return 0
	case ms > math.MaxInt32:
		return math.MaxInt32
	case ms < math.MinInt32:
		return math.MinInt32
	}
	return int(math.Round(ms))
}

// includesPlayer reports whether a role filter addresses the player role.
// An empty list means all roles.
func includesPlayer(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == "player" || r == "player@v1" {
			return true
		}
	}
	return false
}

func convertMetadata(m *protocol.MetadataState) TrackMetadata {
	md := TrackMetadata{
		Title:       m.Title,
		Artist:      m.Artist,
		AlbumArtist: m.AlbumArtist,
		Album:       m.Album,
		ArtworkURL:  m.ArtworkURL,
		Year:        m.Year,
		Track:       m.Track,
		Repeat:      m.Repeat,
		Shuffle:     m.Shuffle,
	}
	if p := m.Progress; p != nil {
		pos := time.Duration(p.TrackProgress) * time.Millisecond
		md.Position = &pos
		// 0 means unknown duration
		if p.TrackDuration > 0 {
			d := time.Duration(p.TrackDuration) * time.Millisecond
			md.Duration = &d
		}
	}
	return md
}
