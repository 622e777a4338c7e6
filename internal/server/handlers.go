package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dbrezina/medinter/internal/registry"
)

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"mock_mode":       r.cfg.MockMode,
		"active_sessions": r.registry.ActiveCount(),
		"daily_sessions":  r.registry.DailyCount(),
	})
}

func (r *Router) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": r.languages})
}

func (r *Router) handleStartSession(w http.ResponseWriter, req *http.Request) {
	body := struct {
		SourceLang string `json:"source_lang"`
		TargetLang string `json:"target_lang"`
		Mode       string `json:"mode"`
	}{
		SourceLang: "es-US",
		TargetLang: "en-US",
		Mode:       "conversation",
	}
	if req.Body != nil {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	s := r.registry.Create(body.SourceLang, body.TargetLang, body.Mode)
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	r.metrics.SessionsStarted.Inc()
	r.metrics.ActiveSessions.Inc()
	r.logger.Info("session started", "session", s.ID, "source", s.SourceLang, "target", s.TargetLang, "mode", s.Mode)

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":  s.ID,
		"source_lang": s.SourceLang,
		"target_lang": s.TargetLang,
		"mode":        s.Mode,
	})
}

func (r *Router) handleEndSession(w http.ResponseWriter, req *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := r.registry.End(body.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if summary.Note == "" {
		// First termination of this session.
		r.metrics.SessionsEnded.Inc()
		r.metrics.ActiveSessions.Dec()
		r.logger.Info("session ended", "session", body.SessionID, "exchanges", summary.ExchangeCount)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) {
	summary, err := r.registry.Summary(req.PathValue("id"))
	if err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found or still active")
			return
		}
		writeError(w, http.StatusInternalServerError, "summary unavailable")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleActiveSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": r.registry.ActiveSessions()})
}
