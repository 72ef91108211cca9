// SPDX-License-Identifier: MIT
package audio

// Downmix writes the mono version of interleaved into dst and returns
// dst[:len(interleaved)/channels]. Stereo pairs are averaged; mono input
// is copied. dst is grown when too short. A trailing incomplete stereo
// pair is dropped.
func Downmix(dst, interleaved []float64, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	n := len(interleaved) / channels
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	switch channels {
	case 1:
		copy(dst, interleaved)
	default:
		for i := range dst {
			var sum float64
			for c := range channels {
				sum += interleaved[i*channels+c]
			}
			dst[i] = sum / float64(channels)
		}
	}
	return dst
}
