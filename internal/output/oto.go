// ABOUTME: Oto-based audio sink
// ABOUTME: Streams 16-bit PCM to the system device through a pipe-fed oto player
package output

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
	otoChan int
)

// Oto is a Sink backed by the oto library
type Oto struct {
	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

// NewOto creates an unopened oto sink
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the device. Later opens with a different format reuse
// the first context.
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return nil
	}

	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx, otoRate, otoChan = ctx, sampleRate, channels
	})
	if otoErr != nil {
		return otoErr
	}
	if otoRate != sampleRate || otoChan != channels {
		log.Warnf("Oto context is %dHz %dch, stream is %dHz %dch", otoRate, otoChan, sampleRate, channels)
	}

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()

	log.Infof("Audio output initialized: %dHz, %d channels", otoRate, otoChan)
	return nil
}

// Write blocks until the player has taken pcm
func (o *Oto) Write(pcm []byte) error {
	o.mu.Lock()
	w := o.pipeWriter
	o.mu.Unlock()

	if w == nil {
		return errors.New("output not initialized")
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close releases the player
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	return nil
}

var _ Sink = (*Oto)(nil)
