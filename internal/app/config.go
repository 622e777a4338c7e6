package app

import (
	"os"
	"strings"
	"time"
)

// Config is the client configuration, loaded from the environment.
type Config struct {
	// ServerURL is the HTTP base of the translation service,
	// e.g. http://localhost:3000. The websocket URL is derived from it.
	ServerURL string

	SourceLang string
	TargetLang string
	Mode       string // conversation, one-way or dictation

	ReconnectDelay time.Duration

	// AudioDir receives synthesized playback as numbered WAV files.
	// Empty means playback is discarded.
	AudioDir string

	LogLevel  string
	SentryDSN string
}

func LoadConfigFromEnv() Config {
	reconnect, err := time.ParseDuration(getenv("MEDINTER_RECONNECT_DELAY", "2s"))
	if err != nil {
		reconnect = 2 * time.Second
	}

	return Config{
		ServerURL:      getenv("MEDINTER_SERVER_URL", "http://localhost:3000"),
		SourceLang:     getenv("MEDINTER_SOURCE_LANG", "es-US"),
		TargetLang:     getenv("MEDINTER_TARGET_LANG", "en-US"),
		Mode:           getenv("MEDINTER_MODE", "conversation"),
		ReconnectDelay: reconnect,
		AudioDir:       getenv("MEDINTER_AUDIO_DIR", ""),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
	}
}

// WSURL returns the websocket endpoint derived from ServerURL.
func (c Config) WSURL() string {
	base := c.ServerURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	default:
		// assume already host[:port]
		base = "ws://" + base
	}
	return strings.TrimSuffix(base, "/") + "/ws/translate"
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
