// Package app assembles the client: configuration from the environment, the
// leveled logger, the REST collaborator and the websocket transport.
package app

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/dbrezina/medinter/internal/api"
	"github.com/dbrezina/medinter/internal/audio"
	"github.com/dbrezina/medinter/internal/transport"
)

type App struct {
	Cfg       Config
	Logger    *log.Logger
	API       *api.Client
	Transport *transport.Client
}

func New(cfg Config) *App {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	return &App{
		Cfg:    cfg,
		Logger: logger,
		API:    api.New(cfg.ServerURL),
		Transport: transport.New(transport.Config{
			URL:            cfg.WSURL(),
			ReconnectDelay: cfg.ReconnectDelay,
			Logger:         logger,
		}),
	}
}

// Sink returns the playback sink selected by configuration.
func (a *App) Sink() audio.Sink {
	if a.Cfg.AudioDir == "" {
		return audio.Discard{}
	}
	return &audio.FileSink{Dir: a.Cfg.AudioDir}
}

// Close tears down the transport.
func (a *App) Close() {
	a.Transport.Disconnect()
}
