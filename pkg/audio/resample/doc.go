// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates and channel layouts
// Package resample provides audio sample rate conversion for playback when
// the output device cannot follow a stream's format.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling, chunk by chunk.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := r.Resample(samples)
package resample
