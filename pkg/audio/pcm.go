package audio

import (
	"encoding/binary"
	"math"
)

// FramesToPCM16Mono down-mixes stereo float frames in [-1, 1] to mono 16-bit
// little-endian PCM. Out-of-range values are clipped.
func FramesToPCM16Mono(frames [][2]float64) []byte {
	out := make([]byte, len(frames)*2)
	for i, f := range frames {
		v := (f[0] + f[1]) / 2
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(v)))
	}
	return out
}

func floatToInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}

// Float32Mono converts 16-bit signed little-endian PCM with the given number
// of interleaved channels to mono float32 samples in [-1, 1], averaging the
// channels of each frame. A trailing partial frame is ignored.
func Float32Mono(pcm []byte, channels int) []float32 {
	channels = max(channels, 1)
	frames := len(pcm) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[idx:]))) / 32768
		}
		out[i] = sum / float32(channels)
	}
	return out
}
