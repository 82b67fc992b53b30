package audio

// Silence returns one all-zero 20ms frame.
func Silence() []int16 {
	return make([]int16, FrameSamples)
}

// Accumulate adds src scaled by gain into acc. Both slices must be one frame
// long. The float accumulator defers clipping until Quantize so stacked
// sources saturate once, not per source.
func Accumulate(acc []float64, src []int16, gain float64) {
	for i := range src {
		acc[i] += float64(src[i]) * gain
	}
}

// Quantize converts a float accumulator back to int16 samples, clipping at
// the rails.
func Quantize(acc []float64) []int16 {
	out := make([]int16, len(acc))
	for i, v := range acc {
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// ReadAt copies one frame of stereo samples from src into dst, starting at
// the fractional per-channel frame cursor and stepping by rate (nearest
// neighbor). Positions past either end of src fill silence. Reports whether
// any position ran past the end.
func ReadAt(src []int16, cursor, rate float64, dst []int16) bool {
	total := len(src) / Channels
	ended := false
	for i := 0; i < FrameSize; i++ {
		f := int(cursor + float64(i)*rate)
		if f < 0 || f >= total {
			dst[i*2] = 0
			dst[i*2+1] = 0
			if f >= total {
				ended = true
			}
			continue
		}
		dst[i*2] = src[f*2]
		dst[i*2+1] = src[f*2+1]
	}
	return ended
}
