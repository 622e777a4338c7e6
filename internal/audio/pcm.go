// Package audio implements the capture-and-encode pipeline: a capability
// interface over microphone-like input sources, fixed-size framing, PCM16
// conversion, and the base64 chunk encoding the wire protocol expects.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const (
	// SampleRate is the capture rate in Hz. The service expects 16 kHz mono.
	SampleRate = 16000
	// FrameSize is the number of samples per captured frame (~256 ms).
	FrameSize = 4096
)

// pcm16 converts one normalized sample to 16-bit signed PCM. The scale is
// asymmetric (negative values by 32768, non-negative by 32767, truncating
// toward zero) and must stay bit-exact for wire compatibility.
func pcm16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// sample converts one PCM16 value back to a normalized float, inverting the
// asymmetric scale used by pcm16.
func sample(v int16) float32 {
	if v < 0 {
		return float32(v) / 32768
	}
	return float32(v) / 32767
}

// EncodeFrame converts a frame of normalized samples into the transmittable
// chunk encoding: little-endian PCM16, base64.
func EncodeFrame(frame []float32) string {
	buf := make([]byte, len(frame)*2)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(pcm16(s)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeChunk reverses EncodeFrame. Used by the server side and by tests.
func DecodeChunk(chunk string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(chunk)
	if err != nil {
		return nil, fmt.Errorf("decode audio chunk: %w", err)
	}
	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("decode audio chunk: odd byte count %d", len(buf))
	}
	frame := make([]float32, len(buf)/2)
	for i := range frame {
		frame[i] = sample(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return frame, nil
}
