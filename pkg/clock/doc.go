// ABOUTME: Clock synchronization package
// ABOUTME: Provides burst-sampled NTP-style sync with a Kalman offset/drift filter
// Package clock keeps the local presentation clock aligned with a SendSpin
// server.
//
// A Sampler sends bursts of client/time probes. Only the lowest round-trip
// reply of each burst reaches the Filter, with an error bound of half its
// round trip. The Clock owns the filter and the manual static delay and
// converts server timestamps to local time.
//
// Example:
//
//	clk := clock.New(nil)
//	s := clock.NewSampler(clk, sendProbe, clock.DefaultBurstConfig())
//	go s.Run(ctx)
//	// on server/time:
//	s.Add(clock.NewMeasurement(t1, t2, t3, clk.Now()))
package clock
