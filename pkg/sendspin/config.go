// ABOUTME: Session configuration and defaults
// ABOUTME: Zero values select the standard client behaviour
package sendspin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Sendspin/sendspin-client/internal/transport"
	"github.com/Sendspin/sendspin-client/internal/version"
	"github.com/Sendspin/sendspin-client/pkg/clock"
	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

const (
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultMaxReconnectAttempts = 6
	DefaultMaxBackoff           = 30 * time.Second
	DefaultBufferCapacity       = 1048576
)

// Config holds session configuration
type Config struct {
	// ClientID identifies this player; a random UUID when empty
	ClientID string

	// Name is the display name for this player
	Name string

	// DeviceInfo provides device identification
	DeviceInfo protocol.DeviceInfo

	// SupportedFormats are advertised in client/hello, preferred first
	SupportedFormats []protocol.AudioFormat

	// BufferCapacity is the byte capacity advertised to the server
	BufferCapacity int

	// Artwork and Visualizer enable the optional roles when non-nil
	Artwork    *protocol.ArtworkV1Support
	Visualizer *protocol.VisualizerV1Support

	// Volume is the initial volume (0-100, default: 100)
	Volume int
	Muted  bool

	// Dialer opens connections; the websocket dialer when nil
	Dialer Dialer

	// Candidates are tried in order on reconnect, before the last address
	Candidates []Candidate

	// QueueCapacity is the number of audio chunks buffered (default: 100)
	QueueCapacity int

	// ReadTimeout bounds Session.Read (default: 20ms)
	ReadTimeout time.Duration

	HandshakeTimeout     time.Duration
	MaxReconnectAttempts int
	MaxBackoff           time.Duration

	// Burst controls clock sync probing
	Burst clock.BurstConfig

	// Filter replaces the default Kalman filter
	Filter clock.Filter

	// Metrics receives engine measurements
	Metrics Metrics

	// OnArtwork is called synchronously on the reader goroutine for each
	// artwork frame, in addition to the ArtworkEvent.
	OnArtwork func(channel int, data []byte)

	// OnVisualizer is called synchronously for each visualizer frame
	OnVisualizer func(timestamp int64, data []byte)

	// EventBuffer is the per-subscriber channel size (default: 64)
	EventBuffer int
}

// DefaultFormats are advertised when Config.SupportedFormats is empty
func DefaultFormats() []protocol.AudioFormat {
	return []protocol.AudioFormat{
		{Codec: "pcm", Channels: 2, SampleRate: 48000, BitDepth: 16},
		{Codec: "pcm", Channels: 2, SampleRate: 44100, BitDepth: 16},
		{Codec: "pcm", Channels: 2, SampleRate: 96000, BitDepth: 24},
		{Codec: "opus", Channels: 2, SampleRate: 48000, BitDepth: 16},
		{Codec: "flac", Channels: 2, SampleRate: 48000, BitDepth: 16},
	}
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = uuid.New().String()
	}
	if c.Name == "" {
		c.Name = "SendSpin Player"
	}
	if c.DeviceInfo.ProductName == "" {
		c.DeviceInfo.ProductName = version.Product
	}
	if c.DeviceInfo.Manufacturer == "" {
		c.DeviceInfo.Manufacturer = version.Manufacturer
	}
	if c.DeviceInfo.SoftwareVersion == "" {
		c.DeviceInfo.SoftwareVersion = version.Version
	}
	if len(c.SupportedFormats) == 0 {
		c.SupportedFormats = DefaultFormats()
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = DefaultBufferCapacity
	}
	if c.Volume == 0 {
		c.Volume = 100
	}
	c.Volume = clampVolume(c.Volume)
	if c.Dialer == nil {
		c.Dialer = transportDialer{transport.NewDialer(transport.Options{})}
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	return c
}

// transportDialer adapts the websocket dialer to the Dialer interface
type transportDialer struct {
	d *transport.Dialer
}

func (t transportDialer) Dial(ctx context.Context, addr string) (Transport, error) {
	conn, err := t.d.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
