// ABOUTME: Clock owns the filtered offset/drift estimate and manual calibration
// ABOUTME: Converts server timestamps to local presentation time and back
package clock

import (
	"math"
	"sync"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("sendspin/clock")

// MaxStaticDelayMs bounds the manual calibration in both directions
const MaxStaticDelayMs = 5000

// Estimate is a snapshot of the clock model
type Estimate struct {
	OffsetMicros  int64
	ErrorMicros   int64
	DriftPPM      float64
	StaticDelayMs int
	Ready         bool
	Measurements  int
}

// Clock wraps a Filter with locking and the static delay. One Clock lives
// for the whole session so calibration survives reconnects.
type Clock struct {
	mu            sync.RWMutex
	filter        Filter
	staticDelayMs int
	lastUpdate    int64
	now           func() int64
}

// New creates a Clock around f. A nil filter selects the Kalman filter.
func New(f Filter) *Clock {
	if f == nil {
		f = NewKalmanFilter()
	}
	return &Clock{filter: f, now: Monotonic}
}

// Now returns the current local time in microseconds
func (c *Clock) Now() int64 {
	return c.now()
}

// Apply feeds a measurement to the filter with error bound rtt/2
func (c *Clock) Apply(m Measurement) {
	c.Update(m.Offset, m.MaxError(), m.ClientReceived)
}

// Update feeds a raw sample to the filter
func (c *Clock) Update(offset, maxError, timestamp int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filter.Update(offset, maxError, timestamp)
	c.lastUpdate = timestamp

	if n := c.filter.Count(); n <= 3 || n%20 == 0 {
		log.Debugf("Sync #%d: offset=%dμs (±%dμs) drift=%.2fppm",
			n, c.filter.Offset(), c.filter.Error(), c.filter.DriftPPM())
	}
}

// SetStaticDelay stores the manual calibration clamped to ±5000 ms and
// returns the stored value.
func (c *Clock) SetStaticDelay(ms int) int {
	if ms > MaxStaticDelayMs {
		ms = MaxStaticDelayMs
	} else if ms < -MaxStaticDelayMs {
		ms = -MaxStaticDelayMs
	}

	c.mu.Lock()
	c.staticDelayMs = ms
	c.mu.Unlock()
	return ms
}

// StaticDelay returns the stored calibration in milliseconds
func (c *Clock) StaticDelay() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staticDelayMs
}

// Ready reports whether the filter estimate is usable
func (c *Clock) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.Ready()
}

// Estimate returns a consistent snapshot of the clock model
func (c *Clock) Estimate() Estimate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Estimate{
		OffsetMicros:  c.filter.Offset(),
		ErrorMicros:   c.filter.Error(),
		DriftPPM:      c.filter.DriftPPM(),
		StaticDelayMs: c.staticDelayMs,
		Ready:         c.filter.Ready(),
		Measurements:  c.filter.Count(),
	}
}

// offsetAt returns the offset projected to local time t. Drift is only
// applied once the filter is ready. Caller holds mu.
func (c *Clock) offsetAt(t int64) float64 {
	offset := float64(c.filter.Offset())
	if c.filter.Ready() {
		offset += c.filter.DriftPPM() * float64(t-c.lastUpdate) / 1e6
	}
	return offset
}

// ServerToLocal converts a server timestamp to the local time at which it
// should be presented. A positive static delay presents later.
func (c *Clock) ServerToLocal(serverMicros int64) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	local := float64(serverMicros) - c.offsetAt(c.now())
	return int64(math.Round(local)) + int64(c.staticDelayMs)*1000
}

// LocalToServer converts local microseconds to the server timeline
func (c *Clock) LocalToServer(localMicros int64) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return localMicros + int64(math.Round(c.offsetAt(localMicros)))
}
