// ABOUTME: mDNS discovery of SendSpin servers
// ABOUTME: Browses _sendspin-server._tcp and yields dialable host:port/path addresses
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("sendspin/discovery")

// ServiceType is the mDNS service SendSpin servers advertise
const ServiceType = "_sendspin-server._tcp"

// Config holds discovery configuration
type Config struct {
	Service  string        // Defaults to ServiceType
	Domain   string        // Defaults to "local"
	Timeout  time.Duration // Per-query listen time
	Interval time.Duration // Pause between queries
	Path     string        // Used when a server advertises no path
}

// Server describes a discovered server
type Server struct {
	Name string
	Host string
	Port int
	Path string
}

// Address returns the server as host:port/path
func (s Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + s.Path
}

// Browser repeatedly queries for servers and reports each one once
type Browser struct {
	config  Config
	query   func(*mdns.QueryParam) error
	servers chan Server

	mu   sync.Mutex
	seen map[string]bool
}

// NewBrowser creates a browser
func NewBrowser(config Config) *Browser {
	if config.Service == "" {
		config.Service = ServiceType
	}
	if config.Domain == "" {
		config.Domain = "local"
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	if config.Path == "" {
		config.Path = "/sendspin"
	}

	return &Browser{
		config:  config,
		query:   mdns.Query,
		servers: make(chan Server, 10),
		seen:    make(map[string]bool),
	}
}

// Servers returns the channel of newly discovered servers
func (b *Browser) Servers() <-chan Server {
	return b.servers
}

// Run browses until ctx is cancelled
func (b *Browser) Run(ctx context.Context) error {
	log.Infof("Browsing for %s", b.config.Service)
	for {
		if err := b.queryOnce(ctx); err != nil {
			log.Debugf("mDNS query failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.config.Interval):
		}
	}
}

func (b *Browser) queryOnce(ctx context.Context) error {
	entries := make(chan *mdns.ServiceEntry, 10)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			srv, ok := b.fromEntry(entry)
			if !ok || !b.markSeen(srv) {
				continue
			}
			log.Infof("Discovered server: %s at %s", srv.Name, srv.Address())
			select {
			case b.servers <- srv:
			case <-ctx.Done():
			}
		}
	}()

	err := b.query(&mdns.QueryParam{
		Service:     b.config.Service,
		Domain:      b.config.Domain,
		Timeout:     b.config.Timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	<-done
	return err
}

func (b *Browser) markSeen(s Server) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := s.Address()
	if b.seen[key] {
		return false
	}
	b.seen[key] = true
	return true
}

// fromEntry converts an mDNS answer, reading the path TXT record
func (b *Browser) fromEntry(e *mdns.ServiceEntry) (Server, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Server{}, false
	}

	srv := Server{
		Name: instanceName(e.Name, b.config.Service),
		Host: e.AddrV4.String(),
		Port: e.Port,
		Path: b.config.Path,
	}
	for _, field := range e.InfoFields {
		if v, ok := strings.CutPrefix(field, "path="); ok && v != "" {
			if !strings.HasPrefix(v, "/") {
				v = "/" + v
			}
			srv.Path = v
		}
	}
	return srv, true
}

// instanceName strips the service suffix from a full instance name
func instanceName(full, service string) string {
	if i := strings.Index(full, "."+service); i > 0 {
		full = full[:i]
	}
	return strings.ReplaceAll(full, `\ `, " ")
}

// First browses until one server is found or ctx ends
func First(ctx context.Context, config Config) (Server, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := NewBrowser(config)
	go b.Run(ctx)

	select {
	case srv := <-b.Servers():
		return srv, nil
	case <-ctx.Done():
		return Server{}, ctx.Err()
	}
}
