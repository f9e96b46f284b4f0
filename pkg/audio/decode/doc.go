// ABOUTME: Audio decoder package for the codecs a SendSpin server may stream
// ABOUTME: Provides the Decoder interface and PCM, Opus and FLAC implementations
// Package decode turns stream payloads into PCM samples for playback.
//
// Supports: PCM (16-bit and 24-bit), Opus, FLAC
//
// All decoders implement the Decoder interface and output interleaved int32
// samples in 24-bit range. The session never decodes; this package is for
// playback consumers.
//
// Example:
//
//	decoder, err := decode.New(format)
//	samples, err := decoder.Decode(chunk.Data)
package decode
