// ABOUTME: Tests for mDNS discovery
// ABOUTME: Uses a fake query function to feed service entries
package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewBrowserDefaults(t *testing.T) {
	b := NewBrowser(Config{})

	if b.config.Service != ServiceType {
		t.Errorf("expected service %s, got %s", ServiceType, b.config.Service)
	}
	if b.config.Domain != "local" {
		t.Errorf("expected domain local, got %s", b.config.Domain)
	}
	if b.config.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", b.config.Timeout)
	}
}

func TestFromEntry(t *testing.T) {
	b := NewBrowser(Config{})

	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  string
		ok    bool
	}{
		{
			name: "path from txt",
			entry: &mdns.ServiceEntry{
				Name: `Living\ Room._sendspin-server._tcp.local.`, AddrV4: net.IPv4(192, 168, 1, 10),
				Port: 8927, InfoFields: []string{"path=/custom"},
			},
			want: "192.168.1.10:8927/custom",
			ok:   true,
		},
		{
			name:  "default path",
			entry: &mdns.ServiceEntry{Name: "x", AddrV4: net.IPv4(10, 0, 0, 1), Port: 8927},
			want:  "10.0.0.1:8927/sendspin",
			ok:    true,
		},
		{
			name:  "path without slash",
			entry: &mdns.ServiceEntry{Name: "x", AddrV4: net.IPv4(10, 0, 0, 1), Port: 1, InfoFields: []string{"path=ws"}},
			want:  "10.0.0.1:1/ws",
			ok:    true,
		},
		{name: "no ipv4", entry: &mdns.ServiceEntry{Name: "x", Port: 8927}},
		{name: "no port", entry: &mdns.ServiceEntry{Name: "x", AddrV4: net.IPv4(10, 0, 0, 1)}},
		{name: "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ok := b.fromEntry(tt.entry)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && srv.Address() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, srv.Address())
			}
		})
	}
}

func TestInstanceName(t *testing.T) {
	got := instanceName(`Living\ Room._sendspin-server._tcp.local.`, ServiceType)
	if got != "Living Room" {
		t.Errorf("expected 'Living Room', got %q", got)
	}
}

func TestBrowserReportsEachServerOnce(t *testing.T) {
	b := NewBrowser(Config{Interval: time.Millisecond})
	b.query = func(p *mdns.QueryParam) error {
		if p.Service != ServiceType {
			t.Errorf("unexpected service %s", p.Service)
		}
		p.Entries <- &mdns.ServiceEntry{Name: "a", AddrV4: net.IPv4(10, 0, 0, 1), Port: 8927}
		p.Entries <- &mdns.ServiceEntry{Name: "a", AddrV4: net.IPv4(10, 0, 0, 1), Port: 8927}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	select {
	case srv := <-b.Servers():
		if srv.Address() != "10.0.0.1:8927/sendspin" {
			t.Errorf("unexpected server %s", srv.Address())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no server discovered")
	}

	select {
	case srv := <-b.Servers():
		t.Errorf("server reported twice: %s", srv.Address())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	b := NewBrowser(Config{Interval: time.Hour})
	b.query = func(*mdns.QueryParam) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
