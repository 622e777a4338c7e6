package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sink is the playback capability for synthesized audio. The session layer
// hands it complete WAV payloads as they arrive.
type Sink interface {
	Play(wav []byte) error
}

// Discard drops playback audio. Used when no output device is wanted.
type Discard struct{}

func (Discard) Play([]byte) error { return nil }

// FileSink writes each playback payload to a numbered WAV file in Dir, for
// environments without a direct output device.
type FileSink struct {
	Dir string

	mu  sync.Mutex
	seq int
}

func (f *FileSink) Play(wav []byte) error {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.mu.Unlock()

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create playback dir: %w", err)
	}
	path := filepath.Join(f.Dir, fmt.Sprintf("playback-%04d.wav", seq))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("write playback file: %w", err)
	}
	return nil
}
