// ABOUTME: Binary frame codec for SendSpin binary messages
// ABOUTME: Splits the 9-byte header (tag + timestamp) from the opaque payload
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// BinaryMessageHeaderSize is the size of binary message header (type byte + timestamp)
	BinaryMessageHeaderSize = 1 + 8

	// Tags 0-7 carry audio (tag is the slot), 8-11 artwork (tag-8 is the channel)
	audioTagFirst   = 0
	audioTagLast    = 7
	artworkTagFirst = 8
	artworkTagLast  = 11

	// VisualizerTag carries visualizer data
	VisualizerTag = 16
)

// ErrFrameTooShort is returned for binary messages smaller than the header
var ErrFrameTooShort = errors.New("binary frame shorter than header")

// FrameKind identifies the variant of a decoded binary frame
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameAudio
	FrameArtwork
	FrameVisualizer
)

func (k FrameKind) String() string {
	switch k {
	case FrameAudio:
		return "audio"
	case FrameArtwork:
		return "artwork"
	case FrameVisualizer:
		return "visualizer"
	default:
		return "unknown"
	}
}

// Frame is one decoded binary message. Slot is set for audio, Channel for
// artwork; Tag is always the raw header byte.
type Frame struct {
	Kind      FrameKind
	Tag       byte
	Timestamp int64 // Microseconds, sender clock
	Slot      int
	Channel   int
	Payload   []byte
}

// DecodeFrame parses a binary message. Unrecognized tags yield FrameUnknown,
// never an error; only undersized input fails.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < BinaryMessageHeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(data))
	}

	tag := data[0]
	f := Frame{
		Tag:       tag,
		Timestamp: int64(binary.BigEndian.Uint64(data[1:BinaryMessageHeaderSize])),
		Payload:   data[BinaryMessageHeaderSize:],
	}

	switch {
	case tag <= audioTagLast:
		f.Kind = FrameAudio
		f.Slot = int(tag - audioTagFirst)
	case tag >= artworkTagFirst && tag <= artworkTagLast:
		f.Kind = FrameArtwork
		f.Channel = int(tag - artworkTagFirst)
	case tag == VisualizerTag:
		f.Kind = FrameVisualizer
	default:
		f.Kind = FrameUnknown
	}

	return f, nil
}

// EncodeFrame is the inverse of DecodeFrame. The header tag is taken from
// Tag, so frames built by the constructors below round-trip exactly.
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, BinaryMessageHeaderSize+len(f.Payload))
	buf[0] = f.Tag
	binary.BigEndian.PutUint64(buf[1:BinaryMessageHeaderSize], uint64(f.Timestamp))
	copy(buf[BinaryMessageHeaderSize:], f.Payload)
	return buf
}

// AudioFrame builds an audio frame for slot 0-7
func AudioFrame(slot int, timestamp int64, payload []byte) Frame {
	return Frame{
		Kind:      FrameAudio,
		Tag:       byte(audioTagFirst + slot),
		Timestamp: timestamp,
		Slot:      slot,
		Payload:   payload,
	}
}

// ArtworkFrame builds an artwork frame for channel 0-3
func ArtworkFrame(channel int, timestamp int64, payload []byte) Frame {
	return Frame{
		Kind:      FrameArtwork,
		Tag:       byte(artworkTagFirst + channel),
		Timestamp: timestamp,
		Channel:   channel,
		Payload:   payload,
	}
}
