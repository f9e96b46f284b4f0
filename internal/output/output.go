// ABOUTME: Playback consumer pulling timed chunks from the session
// ABOUTME: Decodes each chunk, waits for its presentation time, drops late ones and applies volume
package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/time/rate"

	"github.com/Sendspin/sendspin-client/pkg/audio"
	"github.com/Sendspin/sendspin-client/pkg/audio/decode"
	"github.com/Sendspin/sendspin-client/pkg/audio/resample"
	"github.com/Sendspin/sendspin-client/pkg/clock"
)

var log = logging.Logger("sendspin/output")

// Source supplies timed audio chunks and the current stream settings
type Source interface {
	Next(timeout time.Duration) (audio.Chunk, bool, error)
	Format() (audio.Format, bool)
	Volume() (int, bool)
}

// Sink is an audio device accepting interleaved 16-bit little-endian PCM
type Sink interface {
	Open(sampleRate, channels int) error
	Write(pcm []byte) error
	Close() error
}

// Options tunes playback timing
type Options struct {
	// LateThreshold is how far past its presentation time a chunk may be
	// and still play (default: 50ms)
	LateThreshold time.Duration
	// Latency is the device buffering subtracted from each wait
	Latency time.Duration
}

// Stats tracks playback
type Stats struct {
	Played  int64
	Late    int64
	Skipped int64 // Chunks that could not be decoded
}

// Player moves audio from a Source to a Sink on its own goroutine
type Player struct {
	src  Source
	sink Sink
	opts Options

	now   func() int64
	sleep func(ctx context.Context, d time.Duration)

	opened   bool
	rate     int
	channels int

	dec       decode.Decoder
	decFormat audio.Format
	resampler *resample.Resampler

	played  atomic.Int64
	late    atomic.Int64
	skipped atomic.Int64

	lateLog rate.Sometimes
	skipLog rate.Sometimes
}

// NewPlayer creates a playback consumer
func NewPlayer(src Source, sink Sink, opts Options) *Player {
	if opts.LateThreshold <= 0 {
		opts.LateThreshold = 50 * time.Millisecond
	}
	return &Player{
		src:     src,
		sink:    sink,
		opts:    opts,
		now:     clock.Monotonic,
		sleep:   sleepCtx,
		lateLog: rate.Sometimes{First: 3, Interval: 5 * time.Second},
		skipLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run plays until ctx is cancelled. End of stream is not an error; the
// player waits for the next stream.
func (p *Player) Run(ctx context.Context) error {
	defer p.sink.Close()
	defer p.closeDecoder()

	for {
		if ctx.Err() != nil {
			return nil
		}

		c, ok, err := p.src.Next(20 * time.Millisecond)
		if errors.Is(err, io.EOF) {
			p.sleep(ctx, 50*time.Millisecond)
			continue
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if err := p.play(ctx, c); err != nil {
			return err
		}
	}
}

// chunkFormat prefers the format a chunk was queued under, so the tail of
// a stream still plays after stream/end.
func (p *Player) chunkFormat(c audio.Chunk) (audio.Format, bool) {
	if c.Format != nil {
		return *c.Format, true
	}
	return p.src.Format()
}

func (p *Player) play(ctx context.Context, c audio.Chunk) error {
	format, ok := p.chunkFormat(c)
	if !ok {
		p.skipped.Add(1)
		return nil
	}
	dec, err := p.decoder(format)
	if err != nil {
		p.skipped.Add(1)
		p.skipLog.Do(func() {
			log.Warnf("Cannot play %s %d-bit audio, skipping: %v", format.Codec, format.BitDepth, err)
		})
		return nil
	}

	if err := p.ensureOpen(format); err != nil {
		return err
	}

	delay := time.Duration(c.PlayAt-p.now())*time.Microsecond - p.opts.Latency
	if delay < -p.opts.LateThreshold {
		p.late.Add(1)
		p.lateLog.Do(func() {
			log.Debugf("Dropped late chunk: %v late", -delay)
		})
		return nil
	}

	// Decode before waiting so the write lands on time
	samples, err := dec.Decode(c.Data)
	if err != nil {
		p.skipped.Add(1)
		p.skipLog.Do(func() {
			log.Warnf("Decode %s chunk: %v", format.Codec, err)
		})
		return nil
	}

	if delay > 0 {
		p.sleep(ctx, delay)
		if ctx.Err() != nil {
			return nil
		}
	}

	volume, muted := p.src.Volume()
	if err := p.sink.Write(Scale(p.convert(format, samples), volume, muted)); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	p.played.Add(1)
	return nil
}

// decoder returns a decoder for format, replacing the current one when the
// stream format changes.
func (p *Player) decoder(f audio.Format) (decode.Decoder, error) {
	if p.dec != nil && sameFormat(p.decFormat, f) {
		return p.dec, nil
	}
	p.closeDecoder()

	dec, err := decode.New(f)
	if err != nil {
		return nil, err
	}
	log.Infof("Decoding %s %dHz %dch %d-bit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
	p.dec, p.decFormat = dec, f
	return dec, nil
}

func (p *Player) closeDecoder() {
	if p.dec != nil {
		p.dec.Close()
		p.dec = nil
	}
}

func sameFormat(a, b audio.Format) bool {
	return a.Codec == b.Codec && a.SampleRate == b.SampleRate && a.Channels == b.Channels &&
		a.BitDepth == b.BitDepth && bytes.Equal(a.CodecHeader, b.CodecHeader)
}

// ensureOpen opens the sink for the first stream. Later streams in another
// format are converted to the device format.
func (p *Player) ensureOpen(f audio.Format) error {
	if p.opened {
		switch {
		case f.SampleRate == p.rate:
			p.resampler = nil
		case p.resampler == nil || p.resampler.InputRate() != f.SampleRate:
			log.Infof("Resampling %dHz to device rate %dHz", f.SampleRate, p.rate)
			p.resampler = resample.New(f.SampleRate, p.rate, p.channels)
		}
		return nil
	}
	if err := p.sink.Open(f.SampleRate, f.Channels); err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	p.opened = true
	p.rate, p.channels = f.SampleRate, f.Channels
	return nil
}

// convert maps decoded samples onto the device format
func (p *Player) convert(f audio.Format, samples []int32) []int32 {
	samples = resample.Remix(samples, f.Channels, p.channels)
	if p.resampler != nil {
		samples = p.resampler.Resample(samples)
	}
	return samples
}

// Stats returns playback counters
func (p *Player) Stats() Stats {
	return Stats{
		Played:  p.played.Load(),
		Late:    p.late.Load(),
		Skipped: p.skipped.Load(),
	}
}

// ToInt16LE converts little-endian 16 or 24-bit PCM to 16-bit, applying
// volume (0-100) and mute.
func ToInt16LE(data []byte, bitDepth, volume int, muted bool) []byte {
	return Scale(decode.PCMSamples(data, bitDepth), volume, muted)
}

// Scale applies volume and mute to 24-bit range samples and packs them as
// 16-bit little-endian PCM.
func Scale(samples []int32, volume int, muted bool) []byte {
	multiplier := float64(volume) / 100.0
	if muted {
		multiplier = 0
	}

	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		scaled := int64(float64(sample) * multiplier)
		if scaled > audio.Max24Bit {
			scaled = audio.Max24Bit
		} else if scaled < audio.Min24Bit {
			scaled = audio.Min24Bit
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.SampleToInt16(int32(scaled))))
	}
	return out
}
