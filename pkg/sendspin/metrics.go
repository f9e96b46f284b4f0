// ABOUTME: Metrics hook for session observability
// ABOUTME: The default implementation discards everything
package sendspin

import (
	"time"

	"github.com/Sendspin/sendspin-client/pkg/clock"
)

// Metrics receives engine measurements. Methods are called from the
// network reader and sampler goroutines and must not block.
type Metrics interface {
	AudioDropped()
	ParseError(msgType string)
	UnknownFrame()
	SyncBurst(ok bool, rtt time.Duration)
	ClockEstimate(e clock.Estimate)
	StateChanged(p Phase)
	ReconnectAttempt(attempt int)
	BufferedAudio(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) AudioDropped()                 {}
func (noopMetrics) ParseError(string)             {}
func (noopMetrics) UnknownFrame()                 {}
func (noopMetrics) SyncBurst(bool, time.Duration) {}
func (noopMetrics) ClockEstimate(clock.Estimate)  {}
func (noopMetrics) StateChanged(Phase)            {}
func (noopMetrics) ReconnectAttempt(int)          {}
func (noopMetrics) BufferedAudio(time.Duration)   {}
