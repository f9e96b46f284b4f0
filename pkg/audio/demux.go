// ABOUTME: Routes decoded binary frames to the audio queue and side channels
// ABOUTME: Artwork and visualizer frames bypass the queue via callbacks
package audio

import (
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/time/rate"

	"github.com/Sendspin/sendspin-client/pkg/clock"
	"github.com/Sendspin/sendspin-client/pkg/protocol"
)

var log = logging.Logger("sendspin/audio")

// DemuxerConfig holds optional frame callbacks. Both run on the network
// reader goroutine and must return quickly.
type DemuxerConfig struct {
	OnArtwork    func(channel int, data []byte)
	OnVisualizer func(timestamp int64, data []byte)
	// OnDrop is called when an audio chunk is dropped on a full queue
	OnDrop func()
}

// DemuxStats counts routed frames
type DemuxStats struct {
	Audio      int64
	Artwork    int64
	Visualizer int64
	Unknown    int64
}

// Demuxer consumes frames from the dispatcher. The queue it feeds outlives
// individual connections.
type Demuxer struct {
	queue *Queue
	clock *clock.Clock
	cfg   DemuxerConfig

	mu     sync.RWMutex
	format *Format

	audio      atomic.Int64
	artwork    atomic.Int64
	visualizer atomic.Int64
	unknown    atomic.Int64

	dropLog    rate.Sometimes
	unknownLog rate.Sometimes
}

// NewDemuxer creates a demuxer feeding q. clk stamps presentation times and
// may be nil, in which case PlayAt is left zero.
func NewDemuxer(q *Queue, clk *clock.Clock, cfg DemuxerConfig) *Demuxer {
	return &Demuxer{
		queue:      q,
		clock:      clk,
		cfg:        cfg,
		dropLog:    rate.Sometimes{First: 1, Interval: 5 * time.Second},
		unknownLog: rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
}

// Handle routes one frame. It never blocks on the consumer.
func (d *Demuxer) Handle(f protocol.Frame) {
	switch f.Kind {
	case protocol.FrameAudio:
		d.audio.Add(1)
		// The frame buffer is not retained past dispatch
		data := make([]byte, len(f.Payload))
		copy(data, f.Payload)

		d.mu.RLock()
		format := d.format
		d.mu.RUnlock()

		c := Chunk{Timestamp: f.Timestamp, Slot: f.Slot, Data: data, Format: format}
		if d.clock != nil {
			c.PlayAt = d.clock.ServerToLocal(f.Timestamp)
		}
		if !d.queue.Push(c) {
			d.dropLog.Do(func() {
				log.Warnf("Audio queue full (%d chunks), dropping newest; %d dropped so far",
					d.queue.Cap(), d.queue.Stats().Dropped)
			})
			if d.cfg.OnDrop != nil {
				d.cfg.OnDrop()
			}
		}

	case protocol.FrameArtwork:
		d.artwork.Add(1)
		if d.cfg.OnArtwork != nil {
			d.cfg.OnArtwork(f.Channel, f.Payload)
		}

	case protocol.FrameVisualizer:
		d.visualizer.Add(1)
		if d.cfg.OnVisualizer != nil {
			d.cfg.OnVisualizer(f.Timestamp, f.Payload)
		}

	default:
		d.unknown.Add(1)
		d.unknownLog.Do(func() {
			log.Debugf("Ignoring binary frame with unknown tag %d (%d bytes)", f.Tag, len(f.Payload))
		})
	}
}

// Start installs a new stream format and reinitializes the queue
func (d *Demuxer) Start(format Format) {
	// Always a fresh pointer; queued chunks share the old one read-only
	d.mu.Lock()
	d.format = &format
	d.mu.Unlock()

	d.queue.Drain()
	d.queue.Reset()
	log.Infof("Stream started: %s %dHz %dch %dbit", format.Codec, format.SampleRate, format.Channels, format.BitDepth)
}

// Clear flushes pending audio and keeps the stream open
func (d *Demuxer) Clear() {
	n := d.queue.Drain()
	log.Debugf("Stream cleared, discarded %d chunks", n)
}

// End marks end-of-stream for the consumer and invalidates the format.
// Chunks already queued keep the format they were stamped with.
func (d *Demuxer) End() {
	d.mu.Lock()
	d.format = nil
	d.mu.Unlock()

	d.queue.MarkEOF()
	log.Infof("Stream ended")
}

// Format returns the current stream format, if any
func (d *Demuxer) Format() (Format, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.format == nil {
		return Format{}, false
	}
	return *d.format, true
}

// BufferedDuration estimates how much audio is still queued. PCM uses the
// byte count; compressed codecs fall back to the timestamp span.
func (d *Demuxer) BufferedDuration() time.Duration {
	if f, ok := d.Format(); ok && f.BytesPerSecond() > 0 {
		return f.Duration(d.queue.BufferedBytes())
	}
	return d.queue.Span()
}

// Stats returns frame counters
func (d *Demuxer) Stats() DemuxStats {
	return DemuxStats{
		Audio:      d.audio.Load(),
		Artwork:    d.artwork.Load(),
		Visualizer: d.visualizer.Load(),
		Unknown:    d.unknown.Load(),
	}
}
