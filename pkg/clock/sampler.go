// ABOUTME: Burst sampler driving periodic client/time probes
// ABOUTME: Keeps only the lowest-RTT response of each burst for the filter
package clock

import (
	"context"
	"sync"
	"time"
)

// BurstConfig controls probe bursts
type BurstConfig struct {
	Size         int           // Probes per burst
	Interval     time.Duration // Delay between probes in a burst
	Grace        time.Duration // Wait after the last probe for trailing replies
	Period       time.Duration // Delay between bursts once the clock is ready
	WarmupPeriod time.Duration // Delay between bursts until the clock is ready
}

// DefaultBurstConfig returns the standard burst schedule
func DefaultBurstConfig() BurstConfig {
	return BurstConfig{
		Size:         8,
		Interval:     50 * time.Millisecond,
		Grace:        100 * time.Millisecond,
		Period:       5 * time.Second,
		WarmupPeriod: 500 * time.Millisecond,
	}
}

func (c BurstConfig) withDefaults() BurstConfig {
	d := DefaultBurstConfig()
	if c.Size <= 0 {
		c.Size = d.Size
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Grace < 0 {
		c.Grace = 0
	}
	if c.Period <= 0 {
		c.Period = d.Period
	}
	if c.WarmupPeriod <= 0 {
		c.WarmupPeriod = c.Period
	}
	return c
}

// ProbeFunc sends one client/time probe carrying t1
type ProbeFunc func(t1 int64) error

// SamplerStats counts burst outcomes
type SamplerStats struct {
	Bursts  int64 // Bursts that fed the filter
	Misses  int64 // Bursts with zero replies
	Samples int64 // Replies received, in or out of a burst
}

// Sampler collects probe replies into bursts and applies the best one.
// It is driven by Run on one goroutine and fed by Add from another.
type Sampler struct {
	clock *Clock
	probe ProbeFunc
	cfg   BurstConfig

	mu      sync.Mutex
	open    bool
	samples []Measurement
	stats   SamplerStats

	// OnBurst, if set, is called after each burst closes. ok is false for a miss.
	OnBurst func(best Measurement, ok bool)
}

// NewSampler creates a sampler feeding clk
func NewSampler(clk *Clock, probe ProbeFunc, cfg BurstConfig) *Sampler {
	cfg = cfg.withDefaults()
	return &Sampler{
		clock:   clk,
		probe:   probe,
		cfg:     cfg,
		samples: make([]Measurement, 0, cfg.Size),
	}
}

// Run fires a burst immediately and then periodically until ctx is done
func (s *Sampler) Run(ctx context.Context) {
	for {
		s.Burst(ctx)

		wait := s.cfg.Period
		if !s.clock.Ready() {
			wait = s.cfg.WarmupPeriod
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Burst sends one burst of probes, waits the grace window and closes it.
// A cancelled context abandons the burst without touching the filter.
func (s *Sampler) Burst(ctx context.Context) {
	s.Open()

	for i := 0; i < s.cfg.Size; i++ {
		if i > 0 && !sleep(ctx, s.cfg.Interval) {
			s.abandon()
			return
		}
		if err := s.probe(s.clock.Now()); err != nil {
			log.Debugf("Probe %d failed: %v", i, err)
			break
		}
	}

	if !sleep(ctx, s.cfg.Grace) {
		s.abandon()
		return
	}
	s.Close()
}

// Open starts buffering replies
func (s *Sampler) Open() {
	s.mu.Lock()
	s.open = true
	s.samples = s.samples[:0]
	s.mu.Unlock()
}

// Add records one reply. Inside a burst it is buffered; otherwise it is
// applied directly with error bound rtt/2.
func (s *Sampler) Add(m Measurement) {
	s.mu.Lock()
	s.stats.Samples++
	if s.open {
		s.samples = append(s.samples, m)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.clock.Apply(m)
}

// Close ends the burst and feeds the lowest-RTT sample to the filter.
// It returns false when the burst received no replies.
func (s *Sampler) Close() (Measurement, bool) {
	s.mu.Lock()
	s.open = false
	best, ok := lowestRTT(s.samples)
	s.samples = s.samples[:0]
	if ok {
		s.stats.Bursts++
	} else {
		s.stats.Misses++
	}
	onBurst := s.OnBurst
	s.mu.Unlock()

	if ok {
		s.clock.Apply(best)
	} else {
		log.Debugf("Sync burst received no replies")
	}
	if onBurst != nil {
		onBurst(best, ok)
	}
	return best, ok
}

func (s *Sampler) abandon() {
	s.mu.Lock()
	s.open = false
	s.samples = s.samples[:0]
	s.mu.Unlock()
}

// Stats returns burst counters
func (s *Sampler) Stats() SamplerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func lowestRTT(samples []Measurement) (Measurement, bool) {
	if len(samples) == 0 {
		return Measurement{}, false
	}
	best := samples[0]
	for _, m := range samples[1:] {
		if m.RTT < best.RTT {
			best = m
		}
	}
	return best, true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
