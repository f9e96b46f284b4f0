// ABOUTME: SendSpin wire protocol package
// ABOUTME: Defines protocol messages, inbound parsing and the binary frame codec
// Package protocol implements the SendSpin wire protocol.
//
// Control messages are JSON objects of the form {"type": ..., "payload": ...}.
// Binary messages carry a 9-byte header (one tag byte, then a big-endian
// microsecond timestamp) followed by an opaque payload.
//
// Example:
//
//	f, err := protocol.DecodeFrame(data)
//	if err == nil && f.Kind == protocol.FrameAudio {
//		queue.Push(f.Payload)
//	}
package protocol
