// ABOUTME: Audio hand-off package providing the stream format, queue and demuxer
// ABOUTME: Relays opaque audio payloads from the network reader to a playback consumer
// Package audio moves audio payloads from the SendSpin connection to a
// playback consumer without ever blocking the network reader.
//
// This package defines:
//   - Format: the stream format announced by stream/start
//   - Queue: a bounded FIFO that drops the newest chunk when full
//   - Demuxer: routes decoded binary frames to the queue or to callbacks
//
// Payloads are never decoded here; a consumer that needs PCM reads bytes
// with Queue.Read and interprets them according to Format.
//
// Example:
//
//	q := audio.NewQueue(audio.DefaultQueueCapacity, 0)
//	d := audio.NewDemuxer(q, clk, audio.DemuxerConfig{})
//	d.Start(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
//	n, err := q.Read(buf) // n == 0 && err == nil means "try again"
package audio
