// ABOUTME: Tests for Opus decoder
// ABOUTME: Tests creation, validation and decoding of encoded packets
package decode

import (
	"testing"

	"gopkg.in/hraban/opus.v2"

	"github.com/Sendspin/sendspin-client/pkg/audio"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name     string
		channels int
	}{
		{"stereo", 2},
		{"mono", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format := audio.Format{Codec: "opus", SampleRate: 48000, Channels: tt.channels, BitDepth: 16}
			decoder, err := NewOpus(format)
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}
			if decoder == nil {
				t.Fatal("expected decoder to be created")
			}
		})
	}
}

func TestNewOpus_InvalidCodec(t *testing.T) {
	format := audio.Format{
		Codec:      "pcm",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format)
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}

	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for Opus decoder: pcm"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestNewOpus_UnsupportedSampleRate(t *testing.T) {
	format := audio.Format{
		Codec:      "opus",
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewOpus(format)
	if err == nil {
		t.Fatal("expected error for 44.1kHz opus")
	}
	if decoder != nil {
		t.Fatal("if error is returned, decoder must be nil")
	}
}

func TestOpusDecodeEncodedFrame(t *testing.T) {
	const channels = 2
	const frameSize = 960 // 20ms at 48kHz

	enc, err := opus.NewEncoder(48000, channels, opus.AppAudio)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	pcm := make([]int16, frameSize*channels)
	for i := range pcm {
		pcm[i] = int16((i % 200) * 100)
	}
	packet := make([]byte, 4000)
	n, err := enc.Encode(pcm, packet)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoder, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: channels, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer decoder.Close()

	samples, err := decoder.Decode(packet[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(samples) != frameSize*channels {
		t.Errorf("expected %d samples, got %d", frameSize*channels, len(samples))
	}
}

func TestOpusDecode_Garbage(t *testing.T) {
	decoder, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if _, err := decoder.Decode(nil); err == nil {
		t.Error("expected error decoding an empty packet")
	}
}
