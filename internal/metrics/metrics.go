// ABOUTME: Prometheus implementation of the session metrics hook
// ABOUTME: Exposes queue, sync, clock and connection metrics over HTTP
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sendspin/sendspin-client/pkg/clock"
	"github.com/Sendspin/sendspin-client/pkg/sendspin"
)

var phases = []sendspin.Phase{
	sendspin.PhaseDisconnected,
	sendspin.PhaseConnecting,
	sendspin.PhaseAwaitingHello,
	sendspin.PhaseConnected,
	sendspin.PhaseReconnecting,
}

// PrometheusCollector implements sendspin.Metrics on its own registry
type PrometheusCollector struct {
	registry *prometheus.Registry

	// Audio
	audioDropped  prometheus.Counter
	unknownFrames prometheus.Counter
	buffered      prometheus.Gauge

	// Protocol
	parseErrors *prometheus.CounterVec

	// Clock
	syncBursts  *prometheus.CounterVec
	syncRTT     prometheus.Histogram
	clockOffset prometheus.Gauge
	clockError  prometheus.Gauge
	clockDrift  prometheus.Gauge
	clockReady  prometheus.Gauge

	// Connection
	phase      *prometheus.GaugeVec
	reconnects prometheus.Counter
}

// NewPrometheusCollector creates a collector with a fresh registry
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		audioDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_audio_dropped_total",
			Help: "Audio chunks dropped because the queue was full",
		}),
		unknownFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_unknown_frames_total",
			Help: "Binary frames with an unknown tag",
		}),
		buffered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_buffered_audio_seconds",
			Help: "Audio waiting in the queue",
		}),

		parseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendspin_parse_errors_total",
				Help: "Inbound messages skipped as malformed",
			},
			[]string{"message_type"},
		),

		syncBursts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendspin_sync_bursts_total",
				Help: "Clock sync bursts by result",
			},
			[]string{"result"},
		),
		syncRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sendspin_sync_rtt_seconds",
			Help:    "Best round-trip time per sync burst",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
		clockOffset: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_clock_offset_microseconds",
			Help: "Estimated server minus client clock offset",
		}),
		clockError: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_clock_error_microseconds",
			Help: "Estimated offset uncertainty",
		}),
		clockDrift: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_clock_drift_ppm",
			Help: "Estimated clock drift",
		}),
		clockReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_clock_ready",
			Help: "1 once the clock estimate is usable",
		}),

		phase: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sendspin_session_phase",
				Help: "1 for the current connection phase, 0 otherwise",
			},
			[]string{"phase"},
		),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_reconnect_attempts_total",
			Help: "Reconnect attempts after unexpected drops",
		}),
	}
}

// AudioDropped records a dropped audio chunk
func (c *PrometheusCollector) AudioDropped() { c.audioDropped.Inc() }

// ParseError records a skipped message
func (c *PrometheusCollector) ParseError(msgType string) {
	c.parseErrors.WithLabelValues(msgType).Inc()
}

// UnknownFrame records a frame with an unrecognised tag
func (c *PrometheusCollector) UnknownFrame() { c.unknownFrames.Inc() }

// SyncBurst records the outcome of one sync burst
func (c *PrometheusCollector) SyncBurst(ok bool, rtt time.Duration) {
	if !ok {
		c.syncBursts.WithLabelValues("miss").Inc()
		return
	}
	c.syncBursts.WithLabelValues("ok").Inc()
	c.syncRTT.Observe(rtt.Seconds())
}

// ClockEstimate publishes the current clock estimate
func (c *PrometheusCollector) ClockEstimate(e clock.Estimate) {
	c.clockOffset.Set(float64(e.OffsetMicros))
	c.clockError.Set(float64(e.ErrorMicros))
	c.clockDrift.Set(e.DriftPPM)
	if e.Ready {
		c.clockReady.Set(1)
	} else {
		c.clockReady.Set(0)
	}
}

// StateChanged marks p as the current phase
func (c *PrometheusCollector) StateChanged(p sendspin.Phase) {
	for _, ph := range phases {
		v := 0.0
		if ph == p {
			v = 1
		}
		c.phase.WithLabelValues(ph.String()).Set(v)
	}
}

// ReconnectAttempt records one reconnect attempt
func (c *PrometheusCollector) ReconnectAttempt(int) { c.reconnects.Inc() }

// BufferedAudio publishes the buffered duration
func (c *PrometheusCollector) BufferedAudio(d time.Duration) { c.buffered.Set(d.Seconds()) }

// Registry returns the registry the collector's metrics live in
func (c *PrometheusCollector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler for the metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *PrometheusCollector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ sendspin.Metrics = (*PrometheusCollector)(nil)
