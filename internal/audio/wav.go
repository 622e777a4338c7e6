package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
)

// wavHeader is the canonical 44-byte PCM WAV header.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV wraps PCM16 mono samples in a WAV container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write WAV data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV extracts PCM16 mono samples and the sample rate from WAV data.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 44 {
		return nil, 0, fmt.Errorf("WAV data too short: %d bytes", len(data))
	}
	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a WAV file")
	}
	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format %d, only PCM", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d, only 16-bit", header.BitsPerSample)
	}
	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count %d, only mono", header.NumChannels)
	}

	n := int(header.Subchunk2Size) / 2
	if max := (len(data) - 44) / 2; n > max {
		n = max
	}
	samples := make([]int16, n)
	if err := binary.Read(bytes.NewReader(data[44:]), binary.LittleEndian, &samples); err != nil {
		return nil, 0, fmt.Errorf("read WAV data: %w", err)
	}
	return samples, int(header.SampleRate), nil
}

// WAVSource streams a PCM16 mono WAV file as if it were a live microphone,
// pacing frames at the capture cadence. It implements Source.
type WAVSource struct {
	Path string
	// Realtime paces ReadFrame at the frame duration. Tests leave it false.
	Realtime bool

	mu      sync.Mutex
	samples []float32
	pos     int
	open    bool
	next    time.Time
}

// Start opens and parses the file. The file must be 16 kHz PCM16 mono.
func (w *WAVSource) Start() error {
	data, err := os.ReadFile(w.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisitionDenied, err)
	}
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisitionDenied, err)
	}
	if rate != SampleRate {
		return fmt.Errorf("%w: sample rate %d, want %d", ErrAcquisitionDenied, rate, SampleRate)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = make([]float32, len(samples))
	for i, s := range samples {
		w.samples[i] = sample(s)
	}
	w.pos = 0
	w.open = true
	w.next = time.Now()
	return nil
}

// ReadFrame fills frame with the next samples, zero-padding the final
// partial frame. Returns io.EOF once the file is exhausted.
func (w *WAVSource) ReadFrame(frame []float32) error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return errSourceClosed
	}
	if w.pos >= len(w.samples) {
		w.mu.Unlock()
		return errSourceDrained
	}
	n := copy(frame, w.samples[w.pos:])
	for i := n; i < len(frame); i++ {
		frame[i] = 0
	}
	w.pos += n
	realtime := w.Realtime
	wait := time.Until(w.next)
	w.next = w.next.Add(time.Duration(len(frame)) * time.Second / SampleRate)
	w.mu.Unlock()

	if realtime && wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

// Stop releases the decoded samples. Idempotent.
func (w *WAVSource) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
	w.samples = nil
	return nil
}
