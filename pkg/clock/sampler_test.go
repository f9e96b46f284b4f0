// ABOUTME: Tests for burst sampling
// ABOUTME: Verifies best-of-burst selection, misses and the periodic loop
package clock

import (
	"context"
	"sync"
	"testing"
	"time"
)

type update struct {
	offset, maxError, timestamp int64
}

// recordingFilter captures every Update call
type recordingFilter struct {
	mu      sync.Mutex
	updates []update
}

func (r *recordingFilter) Update(offset, maxError, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update{offset, maxError, timestamp})
}

func (r *recordingFilter) calls() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.updates...)
}

func (r *recordingFilter) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return 0
	}
	return r.updates[len(r.updates)-1].offset
}

func (r *recordingFilter) Error() int64      { return 0 }
func (r *recordingFilter) DriftPPM() float64 { return 0 }
func (r *recordingFilter) Ready() bool       { return r.Count() >= 2 }
func (r *recordingFilter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func TestBurstSelectsLowestRTT(t *testing.T) {
	f := &recordingFilter{}
	s := NewSampler(New(f), func(int64) error { return nil }, DefaultBurstConfig())

	s.Open()
	s.Add(Measurement{Offset: 111, RTT: 50_000, ClientReceived: 1})
	s.Add(Measurement{Offset: 222, RTT: 10_000, ClientReceived: 2})
	s.Add(Measurement{Offset: 333, RTT: 80_000, ClientReceived: 3})

	if n := len(f.calls()); n != 0 {
		t.Fatalf("samples inside a burst must be buffered, got %d updates", n)
	}

	best, ok := s.Close()
	if !ok || best.RTT != 10_000 {
		t.Fatalf("expected the 10ms sample, got %+v ok=%v", best, ok)
	}

	calls := f.calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(calls))
	}
	if calls[0].offset != 222 || calls[0].maxError != 5_000 || calls[0].timestamp != 2 {
		t.Errorf("unexpected update %+v", calls[0])
	}
}

func TestEmptyBurstIsNoop(t *testing.T) {
	clk := New(nil)
	clk.Update(1234, 100, 0)
	clk.Update(1234, 100, 1_000_000)
	before := clk.Estimate()

	s := NewSampler(clk, func(int64) error { return nil }, DefaultBurstConfig())
	var missed bool
	s.OnBurst = func(_ Measurement, ok bool) { missed = !ok }

	s.Open()
	if _, ok := s.Close(); ok {
		t.Fatal("empty burst must report no sample")
	}

	after := clk.Estimate()
	if after != before {
		t.Errorf("estimate changed on empty burst: before=%+v after=%+v", before, after)
	}
	if !missed {
		t.Error("OnBurst should report a miss")
	}
	if st := s.Stats(); st.Misses != 1 || st.Bursts != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestAddOutsideBurstAppliesDirectly(t *testing.T) {
	f := &recordingFilter{}
	s := NewSampler(New(f), func(int64) error { return nil }, DefaultBurstConfig())

	s.Add(Measurement{Offset: 9, RTT: 400, ClientReceived: 77})

	calls := f.calls()
	if len(calls) != 1 || calls[0].maxError != 200 || calls[0].timestamp != 77 {
		t.Errorf("expected direct update with error 200, got %+v", calls)
	}
}

func TestBurstSendsProbesAndAppliesOnce(t *testing.T) {
	f := &recordingFilter{}
	clk := New(f)

	var s *Sampler
	rtts := []int64{30_000, 4_000, 20_000, 9_000}
	var probes int
	s = NewSampler(clk, func(t1 int64) error {
		rtt := rtts[probes%len(rtts)]
		probes++
		// Reply arrives synchronously
		s.Add(Measurement{Offset: rtt, RTT: rtt, ClientTransmitted: t1, ClientReceived: t1 + rtt})
		return nil
	}, BurstConfig{Size: 4, Interval: time.Millisecond, Grace: time.Millisecond, Period: time.Hour})

	s.Burst(context.Background())

	if probes != 4 {
		t.Errorf("expected 4 probes, got %d", probes)
	}
	calls := f.calls()
	if len(calls) != 1 || calls[0].offset != 4_000 || calls[0].maxError != 2_000 {
		t.Errorf("expected single update from the 4ms sample, got %+v", calls)
	}
}

func TestBurstCancelledDoesNotUpdate(t *testing.T) {
	f := &recordingFilter{}
	var s *Sampler
	ctx, cancel := context.WithCancel(context.Background())

	s = NewSampler(New(f), func(t1 int64) error {
		s.Add(Measurement{RTT: 1000})
		cancel()
		return nil
	}, BurstConfig{Size: 8, Interval: 10 * time.Millisecond, Grace: 10 * time.Millisecond})

	s.Burst(ctx)

	if n := len(f.calls()); n != 0 {
		t.Errorf("cancelled burst must not update the filter, got %d", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := &recordingFilter{}
	var s *Sampler
	s = NewSampler(New(f), func(t1 int64) error {
		go s.Add(Measurement{RTT: 100, ClientTransmitted: t1, ClientReceived: t1 + 100})
		return nil
	}, BurstConfig{Size: 2, Interval: time.Millisecond, Grace: 20 * time.Millisecond, Period: time.Millisecond, WarmupPeriod: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.Count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if f.Count() < 2 {
		t.Errorf("expected at least two bursts, got %d updates", f.Count())
	}
}
