package server

import (
	"encoding/base64"

	"github.com/dbrezina/medinter/internal/audio"
)

const ttsSampleRate = 22050

// Synthesizer turns translated text into base64-encoded WAV audio.
type Synthesizer interface {
	Synthesize(text, languageCode string) (string, error)
}

// MockSynthesizer emits one second of silence instead of speech. The payload
// is a real WAV file so client playback paths are exercised end to end.
type MockSynthesizer struct{}

func (MockSynthesizer) Synthesize(text, languageCode string) (string, error) {
	samples := make([]int16, ttsSampleRate) // 1 s
	wav, err := audio.EncodeWAV(samples, ttsSampleRate)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wav), nil
}
