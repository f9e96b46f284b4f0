// ABOUTME: Opus audio decoder
// ABOUTME: Decodes Opus packets to int32 samples
package decode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/Sendspin/sendspin-client/pkg/audio"
)

// maxOpusFrame is the largest Opus frame (120ms at 48kHz) per channel
const maxOpusFrame = 5760

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	pcm     []int16
	format  audio.Format
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		pcm:     make([]int16, maxOpusFrame*format.Channels),
		format:  format,
	}, nil
}

// Decode converts one Opus packet to int32 samples
func (d *OpusDecoder) Decode(data []byte) ([]int32, error) {
	n, err := d.decoder.Decode(data, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	// n is per channel; Opus is always 16-bit
	total := n * d.format.Channels
	out := make([]int32, total)
	for i := 0; i < total; i++ {
		out[i] = audio.SampleFromInt16(d.pcm[i])
	}
	return out, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
