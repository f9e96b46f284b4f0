// ABOUTME: SendSpin client engine
// ABOUTME: Provides the Session API for connecting to servers and receiving audio
// Package sendspin is the client engine for the SendSpin multi-room audio
// protocol.
//
// A Session performs the handshake, keeps the clock aligned with the server,
// routes control messages to events and audio frames to a bounded queue, and
// reconnects with backoff after unexpected drops. Audio payloads are relayed
// as-is; decoding and output belong to the consumer.
//
// Example:
//
//	s := sendspin.NewSession(sendspin.Config{Name: "Living Room"})
//	events, cancel := s.Subscribe()
//	defer cancel()
//	if err := s.Connect(ctx, "192.168.1.10:8927/sendspin"); err != nil {
//	    return err
//	}
//	buf := make([]byte, 4096)
//	for {
//	    n, err := s.Read(buf) // n == 0 && err == nil: nothing yet
//	    if err == io.EOF {
//	        break
//	    }
//	    play(buf[:n])
//	}
package sendspin
