// ABOUTME: Tests for the headless event loop of the player
// ABOUTME: Checks that artwork downloads never hold up session events
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-client/internal/artwork"
	"github.com/Sendspin/sendspin-client/pkg/sendspin"
)

func TestHandleEventsDoesNotWaitForArtwork(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	store, err := artwork.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	events := make(chan sendspin.Event, 4)
	url := srv.URL + "/cover.jpg"
	events <- sendspin.MetadataEvent{Metadata: sendspin.TrackMetadata{ArtworkURL: &url}}
	fatal := errors.New("server went away")
	events <- sendspin.ErrorEvent{Err: fatal, Terminal: true}

	done := make(chan error, 1)
	go func() { done <- handleEvents(context.Background(), events, store, false) }()

	select {
	case err := <-done:
		if !errors.Is(err, fatal) {
			t.Errorf("expected the terminal error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("event loop blocked behind the artwork download")
	}
}

func TestHandleEventsDownloadsArtwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	defer srv.Close()

	store, err := artwork.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan sendspin.Event, 1)
	url := srv.URL + "/cover.jpg"
	events <- sendspin.MetadataEvent{Metadata: sendspin.TrackMetadata{ArtworkURL: &url}}

	done := make(chan error, 1)
	go func() { done <- handleEvents(ctx, events, store, false) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.CurrentPath() == "" {
		if time.Now().After(deadline) {
			t.Fatal("artwork was never downloaded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected clean exit, got %v", err)
	}
}
