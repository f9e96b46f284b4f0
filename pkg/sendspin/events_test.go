// ABOUTME: Tests for event fan-out
// ABOUTME: Verifies non-blocking publish and unsubscribe behaviour
package sendspin

import (
	"testing"
	"time"
)

func TestBrokerDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := newBroker(2)
	slow, _ := b.subscribe()
	fast, cancel := b.subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.publish(StreamClearEvent{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if len(slow) != 2 || len(fast) != 2 {
		t.Errorf("expected both buffers full, got %d and %d", len(slow), len(fast))
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := newBroker(4)
	ch, cancel := b.subscribe()
	cancel()
	cancel() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	b.publish(StreamEndEvent{})
}

func TestBrokerClose(t *testing.T) {
	b := newBroker(4)
	ch, cancel := b.subscribe()
	b.close()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after broker close")
	}

	late, _ := b.subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after close should be closed")
	}
}
