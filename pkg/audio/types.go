// ABOUTME: Audio type definitions
// ABOUTME: Defines the stream format, queued chunks and PCM sample helpers
package audio

import "time"

const (
	// Sample range for 24-bit PCM held in an int32
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes audio stream format as announced by stream/start
type Format struct {
	Codec       string
	SampleRate  int
	Channels    int
	BitDepth    int
	CodecHeader []byte // For FLAC, Opus, etc.
}

// BytesPerSecond returns the PCM byte rate, or 0 for compressed codecs
func (f Format) BytesPerSecond() int {
	if f.Codec != "pcm" {
		return 0
	}
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// Duration returns the playing time of n PCM bytes, or 0 for compressed codecs
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// Chunk is one queued audio payload. The engine never decodes Data.
type Chunk struct {
	Timestamp int64 // Server timestamp (microseconds)
	PlayAt    int64 // Local presentation time (microseconds, monotonic)
	Slot      int
	Data      []byte
	// Format the chunk was queued under; nil if no stream was active.
	// It stays valid after stream/end while the chunk drains.
	Format *Format
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
