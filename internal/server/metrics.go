package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the translation server.
type Metrics struct {
	MessagesReceived   prometheus.Counter
	ParseErrors        prometheus.Counter
	SessionsStarted    prometheus.Counter
	SessionsEnded      prometheus.Counter
	ActiveSessions     prometheus.Gauge
	ExchangesTotal     prometheus.Counter
	UtterancesDetected prometheus.Counter
	AudioChunks        prometheus.Counter
}

// NewMetrics registers all metrics with the given registerer. Each router
// owns its own registry so the set can be created more than once in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "medinter_ws_messages_received_total",
			Help: "Total number of websocket messages received",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "medinter_ws_parse_errors_total",
			Help: "Total number of websocket messages that failed to parse",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "medinter_sessions_started_total",
			Help: "Total number of sessions created",
		}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "medinter_sessions_ended_total",
			Help: "Total number of sessions ended",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "medinter_active_sessions",
			Help: "Current number of live sessions",
		}),
		ExchangesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "medinter_exchanges_total",
			Help: "Total number of completed translation exchanges",
		}),
		UtterancesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "medinter_utterances_detected_total",
			Help: "Total number of utterance boundaries detected",
		}),
		AudioChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "medinter_audio_chunks_total",
			Help: "Total number of audio chunks processed",
		}),
	}
}
