// ABOUTME: WebSocket transport for SendSpin connections
// ABOUTME: Dials ws:// or wss:// servers and carries text and binary messages
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

var log = logging.Logger("sendspin/transport")

// DefaultPath is the endpoint path used when an address carries none
const DefaultPath = "/sendspin"

// ErrInvalidAddress is returned for addresses that cannot name a server
var ErrInvalidAddress = errors.New("invalid server address")

// Options configures a Dialer
type Options struct {
	Path             string        // Default endpoint path
	HandshakeTimeout time.Duration // WebSocket upgrade timeout
	WriteTimeout     time.Duration // Per-message write deadline, 0 for none
	ReadLimit        int64         // Maximum inbound message size, 0 for unlimited
	Header           http.Header   // Extra request headers
}

// Dialer opens WebSocket connections to SendSpin servers
type Dialer struct {
	opts Options
	ws   *websocket.Dialer
}

// NewDialer creates a dialer, filling unset options with defaults
func NewDialer(opts Options) *Dialer {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	return &Dialer{
		opts: opts,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  16 * 1024,
		},
	}
}

// Dial connects to addr, which is either host:port[/path] or a full
// ws:// or wss:// URL.
func (d *Dialer) Dial(ctx context.Context, addr string) (*Conn, error) {
	u, err := ServerURL(addr, d.opts.Path)
	if err != nil {
		return nil, err
	}

	log.Debugf("Dialing %s", u)
	ws, resp, err := d.ws.DialContext(ctx, u, d.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", u, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	if d.opts.ReadLimit > 0 {
		ws.SetReadLimit(d.opts.ReadLimit)
	}

	log.Infof("Connected to %s", u)
	return &Conn{ws: ws, url: u, writeTimeout: d.opts.WriteTimeout}, nil
}

// ServerURL turns a SendSpin address into a WebSocket URL
func ServerURL(addr, defaultPath string) (string, error) {
	addr = strings.TrimSpace(addr)
	if defaultPath == "" {
		defaultPath = DefaultPath
	}

	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		switch u.Scheme {
		case "ws", "wss":
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		default:
			return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddress, u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("%w: missing host in %q", ErrInvalidAddress, addr)
		}
		if u.Path == "" {
			u.Path = defaultPath
		}
		return u.String(), nil
	}

	host, path := addr, defaultPath
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		host, path = addr[:i], addr[i:]
		if path == "/" {
			path = defaultPath
		}
	}
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidAddress, addr)
	}

	u := url.URL{Scheme: "ws", Host: host, Path: path}
	return u.String(), nil
}

// Conn is one WebSocket connection. Writes are serialized; a single
// goroutine may read concurrently with writers.
type Conn struct {
	ws           *websocket.Conn
	url          string
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// SendText writes a text message
func (c *Conn) SendText(msg string) error {
	return c.write(websocket.TextMessage, []byte(msg))
}

// SendBinary writes a binary message
func (c *Conn) SendBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(messageType, data)
}

// ReadMessage blocks for the next message. Control frames are handled
// internally; only text and binary messages are returned.
func (c *Conn) ReadMessage() (protocol.MessageKind, []byte, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, nil, err
		}
		switch messageType {
		case websocket.TextMessage:
			return protocol.TextMessage, data, nil
		case websocket.BinaryMessage:
			return protocol.BinaryMessage, data, nil
		}
	}
}

// Close sends a close frame and closes the socket. It is safe to call
// more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// URL returns the URL this connection was dialed with
func (c *Conn) URL() string { return c.url }

// RemoteAddr returns the peer's network address
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }
