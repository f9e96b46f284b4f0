// ABOUTME: Tests for PCM decoder and the codec factory
// ABOUTME: Covers 16/24-bit decoding, validation and partial trailing samples
package decode

import (
	"testing"

	"github.com/Sendspin/sendspin-client/pkg/audio"
)

func TestPCMDecode(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		input    []byte
		want     []int32
	}{
		// 0x0100 = 256, left-justified into 24-bit range
		{"16-bit", 16, []byte{0x00, 0x01, 0x02, 0x03}, []int32{256 << 8, 770 << 8}},
		{"16-bit negative", 16, []byte{0xFF, 0xFF}, []int32{-1 << 8}},
		{"24-bit", 24, []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}, []int32{0x020100, 0x050403}},
		{"24-bit negative", 24, []byte{0xFF, 0xFF, 0xFF}, []int32{-1}},
		{"trailing partial sample", 16, []byte{0x01, 0x00, 0x02, 0x00, 0x03}, []int32{1 << 8, 2 << 8}},
		{"empty", 16, []byte{}, []int32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: tt.bitDepth})
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}
			got, err := decoder.Decode(tt.input)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d samples, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d: expected %d, got %d", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestNewPCM_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		format  audio.Format
		wantErr string
	}{
		{"wrong codec", audio.Format{Codec: "opus", BitDepth: 16}, "invalid codec for PCM decoder: opus"},
		{"32-bit", audio.Format{Codec: "pcm", BitDepth: 32}, "unsupported bit depth: 32 (supported: 16, 24)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(tt.format)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if decoder != nil {
				t.Fatal("expected decoder to be nil on error")
			}
			if err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		codec   string
		wantErr bool
	}{
		{"pcm", false},
		{"opus", false},
		{"flac", false},
		{"aac", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			format := audio.Format{Codec: tt.codec, SampleRate: 48000, Channels: 2, BitDepth: 16}
			decoder, err := New(format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%s): %v", tt.codec, err)
			}
			decoder.Close()
		})
	}
}
