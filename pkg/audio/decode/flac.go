// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to int32 samples using the stream header from stream/start
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/Sendspin/sendspin-client/pkg/audio"
)

var flacSignature = []byte("fLaC")

// FLACDecoder decodes FLAC audio. Each payload holds whole frames; they are
// parsed behind the stream header announced in stream/start.
type FLACDecoder struct {
	header []byte
	format audio.Format
}

// NewFLAC creates a new FLAC decoder
func NewFLAC(format audio.Format) (Decoder, error) {
	if format.Codec != "flac" {
		return nil, fmt.Errorf("invalid codec for FLAC decoder: %s", format.Codec)
	}

	header := format.CodecHeader
	switch {
	case len(header) == 0:
		if format.SampleRate <= 0 || format.Channels < 1 || format.Channels > 8 ||
			format.BitDepth < 4 || format.BitDepth > 32 {
			return nil, fmt.Errorf("no FLAC stream header and invalid format %dHz %dch %d-bit",
				format.SampleRate, format.Channels, format.BitDepth)
		}
		header = streamInfoHeader(format)
	case !bytes.HasPrefix(header, flacSignature):
		// Bare metadata blocks without the stream marker
		header = append(append([]byte{}, flacSignature...), header...)
	}

	// Fail now rather than on every chunk
	if _, err := flac.New(bytes.NewReader(header)); err != nil {
		return nil, fmt.Errorf("invalid FLAC stream header: %w", err)
	}

	return &FLACDecoder{
		header: header,
		format: format,
	}, nil
}

// Decode converts the FLAC frames in data to interleaved int32 samples
func (d *FLACDecoder) Decode(data []byte) ([]int32, error) {
	stream, err := flac.New(io.MultiReader(bytes.NewReader(d.header), bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("flac stream: %w", err)
	}

	var out []int32
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("flac decode failed: %w", err)
		}

		bps := int(frame.BitsPerSample)
		if bps == 0 {
			bps = int(stream.Info.BitsPerSample)
		}
		channels := len(frame.Subframes)
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				out = append(out, to24Bit(frame.Subframes[ch].Samples[i], bps))
			}
		}
	}
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return nil
}

// to24Bit rescales a sample of the given bit depth to 24-bit range
func to24Bit(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}

// streamInfoHeader builds a minimal stream header from the announced format
// for servers that omit the codec header.
func streamInfoHeader(f audio.Format) []byte {
	h := make([]byte, 4+4+34)
	copy(h, flacSignature)

	// Metadata block header: last block, type STREAMINFO, 34 bytes
	h[4] = 0x80
	h[7] = 34

	si := h[8:]
	binary.BigEndian.PutUint16(si[0:], 16)    // min block size
	binary.BigEndian.PutUint16(si[2:], 65535) // max block size
	packed := uint64(f.SampleRate)<<44 |
		uint64(f.Channels-1)<<41 |
		uint64(f.BitDepth-1)<<36
	binary.BigEndian.PutUint64(si[10:], packed)
	return h
}
