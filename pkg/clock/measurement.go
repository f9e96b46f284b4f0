// ABOUTME: NTP-style four-timestamp clock measurement
// ABOUTME: Computes round-trip time and offset (server minus client) from one probe
package clock

import "time"

// Measurement is the result of one client/time probe. All values are
// microseconds; Offset is server minus client (positive = server ahead).
type Measurement struct {
	Offset            int64
	RTT               int64
	ClientTransmitted int64
	ClientReceived    int64
}

// NewMeasurement computes RTT and offset from the four probe timestamps:
// t1 client transmit, t2 server receive, t3 server transmit, t4 client receive.
// A negative RTT (clock jitter on a fast link) is clamped to zero.
func NewMeasurement(t1, t2, t3, t4 int64) Measurement {
	rtt := (t4 - t1) - (t3 - t2)
	if rtt < 0 {
		rtt = 0
	}
	return Measurement{
		Offset:            ((t2 - t1) + (t3 - t4)) / 2,
		RTT:               rtt,
		ClientTransmitted: t1,
		ClientReceived:    t4,
	}
}

// MaxError is the error bound fed to the filter: half the round trip
func (m Measurement) MaxError() int64 {
	return m.RTT / 2
}

var epoch = time.Now()

// Monotonic returns microseconds on the process-local monotonic clock.
// It is the client time base for probes and presentation times.
func Monotonic() int64 {
	return time.Since(epoch).Microseconds()
}
