// ABOUTME: Tests for audio resampler
// ABOUTME: Tests linear interpolation across chunk boundaries and channel remixing
package resample

import (
	"testing"
)

func TestNewResampler(t *testing.T) {
	r := New(44100, 48000, 2)

	if r.InputRate() != 44100 {
		t.Errorf("expected inputRate 44100, got %d", r.InputRate())
	}
	if r.OutputRate() != 48000 {
		t.Errorf("expected outputRate 48000, got %d", r.OutputRate())
	}
	if r.channels != 2 {
		t.Errorf("expected channels 2, got %d", r.channels)
	}
}

func TestResampleSameRateIsContinuous(t *testing.T) {
	r := New(48000, 48000, 1)

	first := r.Resample([]int32{0, 1, 2, 3})
	second := r.Resample([]int32{4, 5, 6, 7})

	got := append(first, second...)
	// The final frame is held back until the next chunk
	want := []int32{0, 1, 2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestResampleUpsampling(t *testing.T) {
	r := New(24000, 48000, 2)

	// Stereo ramp, left = right
	input := make([]int32, 0, 200)
	for i := 0; i < 100; i++ {
		input = append(input, int32(i*100), int32(i*100))
	}

	out := r.Resample(input)
	// 99 intervals at 2x produce 198 frames
	if len(out) != 198*2 {
		t.Fatalf("expected %d samples, got %d", 198*2, len(out))
	}
	// Halfway between frame 0 and 1
	if out[2] != 50 || out[3] != 50 {
		t.Errorf("expected interpolated 50, got %d/%d", out[2], out[3])
	}
}

func TestResampleDownsampling(t *testing.T) {
	r := New(96000, 48000, 1)

	input := make([]int32, 100)
	for i := range input {
		input[i] = int32(i)
	}

	out := r.Resample(input)
	if len(out) != 50 {
		t.Fatalf("expected 50 samples, got %d", len(out))
	}
	for i, s := range out {
		if s != int32(i*2) {
			t.Fatalf("sample %d: expected %d, got %d", i, i*2, s)
		}
	}
}

func TestResampleEmptyInput(t *testing.T) {
	r := New(44100, 48000, 2)
	if out := r.Resample(nil); len(out) != 0 {
		t.Errorf("expected no output, got %d samples", len(out))
	}
}

func TestReset(t *testing.T) {
	r := New(48000, 48000, 1)
	r.Resample([]int32{1, 2, 3})
	r.Reset()

	out := r.Resample([]int32{10, 11})
	if len(out) != 1 || out[0] != 10 {
		t.Errorf("expected carried frame dropped after reset, got %v", out)
	}
}

func TestRemix(t *testing.T) {
	tests := []struct {
		name     string
		in       []int32
		from, to int
		want     []int32
	}{
		{"mono to stereo", []int32{1, 2}, 1, 2, []int32{1, 1, 2, 2}},
		{"stereo to mono", []int32{2, 4, -6, 6}, 2, 1, []int32{3, 0}},
		{"same", []int32{1, 2}, 2, 2, []int32{1, 2}},
		{"unsupported", []int32{1, 2, 3}, 3, 2, []int32{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remix(tt.in, tt.from, tt.to)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}
