package whisper

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// audio that whisper.cpp expects.
	bitsPerSample = 16

	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which audio is considered silent. The maximum possible value
	// for 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultRMSThreshold = 300.0
)

// utterance is a span of speech ready for inference. offset is where the
// span starts relative to the first byte ever pushed.
type utterance struct {
	pcm    []byte
	offset time.Duration
}

// segmenter cuts a PCM stream into utterances on silence. It also tracks the
// stream position so every utterance knows where it started, including the
// leading silence it discarded.
type segmenter struct {
	sampleRate   int
	channels     int
	silenceLimit int // ms of trailing silence that ends an utterance
	maxBytes     int // forced flush size, 0 disables

	buffer    []byte
	bufStart  int // stream byte position of buffer[0]
	pos       int // stream bytes seen so far
	hadSpeech bool
	silenceMs int
}

func newSegmenter(sampleRate, channels, silenceThresholdMs, maxBufferDurationMs int) *segmenter {
	s := &segmenter{
		sampleRate:   sampleRate,
		channels:     channels,
		silenceLimit: silenceThresholdMs,
	}
	s.maxBytes = maxBufferDurationMs * s.bytesPerMs()
	return s
}

func (s *segmenter) bytesPerMs() int {
	n := s.sampleRate * s.channels * (bitsPerSample / 8) / 1000
	if n <= 0 {
		return 32 // 16 kHz, mono, 16-bit
	}
	return n
}

// position converts a stream byte position into a duration.
func (s *segmenter) position(bytes int) time.Duration {
	return time.Duration(bytes) * time.Millisecond / time.Duration(s.bytesPerMs())
}

// push feeds one chunk and returns a completed utterance when the chunk ends
// one, either through enough trailing silence or the size limit.
func (s *segmenter) push(chunk []byte) (utterance, bool) {
	start := s.pos
	s.pos += len(chunk)

	if computeRMS(chunk) < defaultRMSThreshold {
		// Leading silence before any speech is discarded.
		if !s.hadSpeech {
			return utterance{}, false
		}
		s.silenceMs += chunkDurationMs(chunk, s.sampleRate, s.channels)
		s.buffer = append(s.buffer, chunk...)
		if s.silenceMs >= s.silenceLimit {
			return s.flush()
		}
		return utterance{}, false
	}

	if !s.hadSpeech {
		s.bufStart = start
	}
	s.hadSpeech = true
	s.silenceMs = 0
	s.buffer = append(s.buffer, chunk...)
	if s.maxBytes > 0 && len(s.buffer) >= s.maxBytes {
		return s.flush()
	}
	return utterance{}, false
}

// flush returns the buffered speech, if any, and resets the buffer.
func (s *segmenter) flush() (utterance, bool) {
	u := utterance{pcm: s.buffer, offset: s.position(s.bufStart)}
	ok := s.hadSpeech && len(s.buffer) > 0

	s.buffer = nil
	s.hadSpeech = false
	s.silenceMs = 0
	s.bufStart = s.pos
	return u, ok
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer. Returns 0 for buffers shorter than one sample.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the duration of a PCM audio chunk in milliseconds.
// Returns 0 for invalid inputs.
func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (bitsPerSample / 8)
	return len(chunk) * 1000 / bytesPerSec
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a RIFF/WAV
// container for upload to the whisper.cpp server.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}
