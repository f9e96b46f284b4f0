// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Carries the last frame and fractional position across chunks
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64

	// position is the next output position in input frames, relative to
	// the last frame of the previous chunk
	position float64
	last     []int32
	hasLast  bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		last:       make([]int32, channels),
	}
}

// Resample converts interleaved samples at the input rate to interleaved
// samples at the output rate. Output for the tail of a chunk is produced
// once the next chunk arrives.
func (r *Resampler) Resample(input []int32) []int32 {
	frames := len(input) / r.channels
	if frames == 0 {
		return nil
	}

	// frame i of the virtual buffer: the carried frame, then input
	offset := 0
	if r.hasLast {
		offset = 1
	}
	total := frames + offset
	at := func(i, ch int) int32 {
		if i < offset {
			return r.last[ch]
		}
		return input[(i-offset)*r.channels+ch]
	}

	out := make([]int32, 0, (int(float64(total)/r.ratio)+1)*r.channels)
	for {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}
		frac := r.position - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := float64(at(idx, ch))
			s2 := float64(at(idx+1, ch))
			out = append(out, int32(s1*(1-frac)+s2*frac))
		}
		r.position += r.ratio
	}

	// Rebase onto the last frame, which is carried into the next chunk
	r.position -= float64(total - 1)
	copy(r.last, input[(frames-1)*r.channels:frames*r.channels])
	r.hasLast = true

	return out
}

// Reset drops carried state, for use when the stream is cleared
func (r *Resampler) Reset() {
	r.position = 0
	r.hasLast = false
	for i := range r.last {
		r.last[i] = 0
	}
}

// InputRate returns the rate samples are converted from
func (r *Resampler) InputRate() int { return r.inputRate }

// OutputRate returns the rate samples are converted to
func (r *Resampler) OutputRate() int { return r.outputRate }

// Remix converts interleaved samples between mono and stereo. Other
// channel counts are returned unchanged.
func Remix(samples []int32, from, to int) []int32 {
	switch {
	case from == to:
		return samples
	case from == 1 && to == 2:
		out := make([]int32, len(samples)*2)
		for i, s := range samples {
			out[i*2] = s
			out[i*2+1] = s
		}
		return out
	case from == 2 && to == 1:
		out := make([]int32, len(samples)/2)
		for i := range out {
			out[i] = int32((int64(samples[i*2]) + int64(samples[i*2+1])) / 2)
		}
		return out
	default:
		return samples
	}
}
