// Package server implements the development translation service: the
// full-duplex websocket endpoint driving the translation pipeline, the REST
// session API, and Prometheus metrics. Translation and speech synthesis are
// mocked; the wire behavior matches the production service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbrezina/medinter/internal/registry"
)

// Config holds router settings.
type Config struct {
	// MockMode is reported by the health endpoint. The dev server always
	// translates with canned data; the flag tells clients so.
	MockMode bool
}

// Router wires the REST and websocket handlers.
type Router struct {
	cfg        Config
	logger     *log.Logger
	registry   *registry.Registry
	translator Translator
	tts        Synthesizer
	metrics    *Metrics
	promReg    *prometheus.Registry
	languages  []Language
	mux        *http.ServeMux
}

// NewRouter builds the handler chain. The caller keeps the registry to drain
// it at shutdown.
func NewRouter(cfg Config, logger *log.Logger, reg *registry.Registry) (http.Handler, error) {
	languages, err := LoadLanguages()
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	r := &Router{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		translator: NewMockTranslator(),
		tts:        MockSynthesizer{},
		metrics:    NewMetrics(promReg),
		promReg:    promReg,
		languages:  languages,
		mux:        http.NewServeMux(),
	}
	r.routes()
	return withSentryRecovery(withCORS(r.mux)), nil
}

func (r *Router) routes() {
	r.mux.HandleFunc("GET /api/health", r.handleHealth)
	r.mux.HandleFunc("GET /api/languages", r.handleLanguages)
	r.mux.HandleFunc("POST /api/session/start", r.handleStartSession)
	r.mux.HandleFunc("POST /api/session/end", r.handleEndSession)
	r.mux.HandleFunc("GET /api/session/{id}/summary", r.handleSummary)
	r.mux.HandleFunc("GET /api/sessions/active", r.handleActiveSessions)
	r.mux.HandleFunc("GET /ws/translate", r.handleTranslateWS)
	r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.promReg, promhttp.HandlerOpts{}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}
