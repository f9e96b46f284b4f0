// ABOUTME: Two-state Kalman filter tracking clock offset and drift
// ABOUTME: Measurement variance comes from the per-sample error bound
package clock

import "math"

// Filter is an offset/drift estimator fed with one measurement at a time.
// Implementations are not safe for concurrent use; Clock serializes access.
type Filter interface {
	// Update feeds one accepted measurement taken at timestamp (client µs)
	Update(offset, maxError, timestamp int64)
	Offset() int64
	Error() int64
	DriftPPM() float64
	Ready() bool
	Count() int
}

const (
	// readyAfter is the number of accepted measurements before the estimate
	// is considered bounded. Once reached, Ready stays true.
	readyAfter = 2

	defaultOffsetNoise = 100.0 // µs² per second
	defaultDriftNoise  = 0.01  // (µs/s)² per second
	initialDriftVar    = 1e4   // (µs/s)², i.e. ±100 ppm
	minVariance        = 1.0
)

// KalmanFilter tracks state [offset µs, drift µs/s]. Drift in µs per second
// is numerically the same as parts per million.
type KalmanFilter struct {
	offset float64
	drift  float64

	p00, p01, p11 float64

	lastTimestamp int64
	count         int
	ready         bool

	offsetNoise float64
	driftNoise  float64
}

// NewKalmanFilter creates a filter with default process noise
func NewKalmanFilter() *KalmanFilter {
	return &KalmanFilter{
		offsetNoise: defaultOffsetNoise,
		driftNoise:  defaultDriftNoise,
	}
}

// Update runs one predict/correct step
func (k *KalmanFilter) Update(offset, maxError, timestamp int64) {
	r := float64(maxError) * float64(maxError)
	if r < minVariance {
		r = minVariance
	}
	z := float64(offset)

	if k.count == 0 {
		k.offset = z
		k.drift = 0
		k.p00 = r
		k.p01 = 0
		k.p11 = initialDriftVar
		k.lastTimestamp = timestamp
		k.count = 1
		return
	}

	dt := float64(timestamp-k.lastTimestamp) / 1e6
	if dt < 0 {
		dt = 0
	}

	// Predict
	k.offset += k.drift * dt
	k.p00 += 2*k.p01*dt + k.p11*dt*dt + k.offsetNoise*dt
	k.p01 += k.p11 * dt
	k.p11 += k.driftNoise * dt

	// Correct
	s := k.p00 + r
	k0 := k.p00 / s
	k1 := k.p01 / s
	innovation := z - k.offset

	k.offset += k0 * innovation
	k.drift += k1 * innovation

	p00, p01, p11 := k.p00, k.p01, k.p11
	k.p00 = (1 - k0) * p00
	k.p01 = (1 - k0) * p01
	k.p11 = p11 - k1*p01

	if k.p00 < minVariance {
		k.p00 = minVariance
	}
	if k.p11 < 0 {
		k.p11 = minVariance
	}

	if timestamp > k.lastTimestamp {
		k.lastTimestamp = timestamp
	}
	k.count++
	if k.count >= readyAfter {
		k.ready = true
	}
}

// Offset returns the offset estimate (server minus client) in microseconds
func (k *KalmanFilter) Offset() int64 { return int64(math.Round(k.offset)) }

// Error returns one standard deviation of the offset estimate in microseconds
func (k *KalmanFilter) Error() int64 {
	if k.count == 0 {
		return 0
	}
	return int64(math.Round(math.Sqrt(k.p00)))
}

func (k *KalmanFilter) DriftPPM() float64 { return k.drift }
func (k *KalmanFilter) Ready() bool       { return k.ready }
func (k *KalmanFilter) Count() int        { return k.count }
