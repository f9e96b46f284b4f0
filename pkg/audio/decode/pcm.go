// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit PCM audio to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Sendspin/sendspin-client/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	bitDepth int
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{
		bitDepth: format.BitDepth,
	}, nil
}

// Decode converts PCM bytes to int32 samples. A trailing partial sample is
// ignored.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	return PCMSamples(data, d.bitDepth), nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// PCMSamples converts little-endian 16 or 24-bit PCM to 24-bit range samples
func PCMSamples(data []byte, bitDepth int) []int32 {
	if bitDepth == 24 {
		n := len(data) / 3
		samples := make([]int32, n)
		for i := 0; i < n; i++ {
			samples[i] = audio.SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]})
		}
		return samples
	}

	n := len(data) / 2
	samples := make([]int32, n)
	for i := 0; i < n; i++ {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return samples
}
