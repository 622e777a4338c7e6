package server

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dbrezina/medinter/internal/audio"
	"github.com/dbrezina/medinter/internal/medterm"
	"github.com/dbrezina/medinter/internal/protocol"
	"github.com/dbrezina/medinter/internal/registry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// translateConn is the per-connection state of one websocket client.
type translateConn struct {
	router *Router
	conn   *websocket.Conn
	connMu sync.Mutex // serializes writes

	sessionID  string
	sourceLang string
	targetLang string

	detector    *utteranceDetector
	spokenWords int
}

func (r *Router) handleTranslateWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	r.logger.Info("websocket client connected", "remote", req.RemoteAddr)

	tc := &translateConn{
		router:     r,
		conn:       conn,
		sourceLang: "es-US",
		targetLang: "en-US",
		detector:   newUtteranceDetector(),
	}
	defer func() {
		_ = conn.Close()
		r.logger.Info("websocket client disconnected", "remote", req.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.metrics.MessagesReceived.Inc()

		msg, err := protocol.ParseOutbound(data)
		if err != nil {
			r.metrics.ParseErrors.Inc()
			r.logger.Warn("dropping malformed client message", "err", err)
			continue
		}

		switch m := msg.(type) {
		case protocol.Config:
			tc.handleConfig(m)
		case protocol.AudioChunk:
			tc.handleAudioChunk(m)
		case protocol.TextInput:
			tc.handleTextInput(m)
		case protocol.SwitchSpeaker:
			tc.handleSwitchSpeaker()
		case protocol.EndSession:
			tc.handleEndSession()
		}
	}
}

func (tc *translateConn) send(m protocol.Inbound) {
	data, err := protocol.MarshalInbound(m)
	if err != nil {
		tc.router.logger.Error("marshal server message", "err", err)
		return
	}
	tc.connMu.Lock()
	err = tc.conn.WriteMessage(websocket.TextMessage, data)
	tc.connMu.Unlock()
	if err != nil {
		tc.router.logger.Warn("websocket write failed", "err", err)
	}
}

func (tc *translateConn) handleConfig(m protocol.Config) {
	if m.SourceLang != "" {
		tc.sourceLang = m.SourceLang
	}
	if m.TargetLang != "" {
		tc.targetLang = m.TargetLang
	}
	if m.SessionID != "" {
		tc.sessionID = m.SessionID
	}
	tc.send(protocol.ConfigAck{SourceLang: tc.sourceLang, TargetLang: tc.targetLang})
}

func (tc *translateConn) handleAudioChunk(m protocol.AudioChunk) {
	if m.SessionID != "" {
		tc.sessionID = m.SessionID
	}
	if m.SourceLang != "" {
		tc.sourceLang = m.SourceLang
	}
	if m.TargetLang != "" {
		tc.targetLang = m.TargetLang
	}
	tc.router.metrics.AudioChunks.Inc()

	frame, err := audio.DecodeChunk(m.Audio)
	if err != nil {
		tc.router.metrics.ParseErrors.Inc()
		tc.router.logger.Warn("dropping undecodable audio chunk", "err", err)
		return
	}

	speech, boundary := tc.detector.Feed(frame)
	switch {
	case speech:
		tc.spokenWords++
		tc.send(protocol.PartialTranscript{Text: tc.partialText(), IsFinal: false})
	case boundary:
		tc.finishUtterance()
	default:
		// No speech in this chunk.
		tc.send(protocol.PartialTranscript{Text: "", IsFinal: false})
	}
}

// partialText reveals the recognized text word by word as voiced frames
// accumulate, mimicking a streaming recognizer.
func (tc *translateConn) partialText() string {
	preview := tc.router.translator.Preview(tc.sourceLang)
	if preview == "" {
		return ""
	}
	words := strings.Fields(preview)
	n := tc.spokenWords
	if n > len(words) {
		n = len(words)
	}
	return strings.Join(words[:n], " ")
}

func (tc *translateConn) finishUtterance() {
	tc.router.metrics.UtterancesDetected.Inc()
	tc.spokenWords = 0

	recognized := tc.router.translator.Preview(tc.sourceLang)
	result := tc.router.translator.Translate(recognized, tc.sourceLang, tc.targetLang)
	original := recognized
	if original == "" {
		original = result.Original
	}

	tc.send(protocol.PartialTranscript{Text: original, IsFinal: true})
	tc.respond(original, result)
}

func (tc *translateConn) handleTextInput(m protocol.TextInput) {
	if m.SessionID != "" {
		tc.sessionID = m.SessionID
	}
	if m.SourceLang != "" {
		tc.sourceLang = m.SourceLang
	}
	if m.TargetLang != "" {
		tc.targetLang = m.TargetLang
	}
	if m.Text == "" {
		return
	}
	result := tc.router.translator.Translate(m.Text, tc.sourceLang, tc.targetLang)
	tc.respond(m.Text, result)
}

// respond completes one exchange: normalize entities, synthesize audio,
// record the exchange, and deliver the translation result.
func (tc *translateConn) respond(original string, result Translation) {
	terms := medterm.Normalize(result.MedicalTerms)
	urgency := result.Urgency
	if urgency == "" {
		urgency = "medium"
	}

	audioOut, err := tc.router.tts.Synthesize(result.Translation, tc.targetLang)
	if err != nil {
		tc.router.logger.Error("speech synthesis failed", "err", err)
	}

	if tc.sessionID != "" {
		err := tc.router.registry.AddExchange(tc.sessionID, registry.Exchange{
			Original:     original,
			Translation:  result.Translation,
			MedicalTerms: terms,
			Flags:        result.Flags,
			Urgency:      urgency,
		})
		if err != nil {
			tc.router.logger.Warn("exchange not recorded", "session", tc.sessionID, "err", err)
		} else {
			tc.router.metrics.ExchangesTotal.Inc()
		}
	}

	tc.send(protocol.TranslationResult{
		Original:     original,
		Translation:  result.Translation,
		MedicalTerms: terms,
		Flags:        result.Flags,
		Urgency:      urgency,
		Audio:        audioOut,
	})
}

func (tc *translateConn) handleSwitchSpeaker() {
	if tc.sessionID == "" {
		return
	}
	speaker, err := tc.router.registry.SwitchSpeaker(tc.sessionID)
	if err != nil {
		tc.router.logger.Warn("speaker switch failed", "session", tc.sessionID, "err", err)
		return
	}
	tc.send(protocol.SpeakerSwitched{CurrentSpeaker: speaker})
}

func (tc *translateConn) handleEndSession() {
	if tc.sessionID == "" {
		return
	}
	// Close out an utterance the audio stream left open.
	if tc.detector.Flush() {
		tc.finishUtterance()
	}
	summary, err := tc.router.registry.End(tc.sessionID)
	if err != nil {
		tc.router.logger.Warn("end session failed", "session", tc.sessionID, "err", err)
		return
	}
	if summary.Note == "" {
		tc.router.metrics.SessionsEnded.Inc()
		tc.router.metrics.ActiveSessions.Dec()
		tc.router.logger.Info("session ended", "session", tc.sessionID, "exchanges", summary.ExchangeCount)
	}
	tc.send(protocol.SessionEnded{Summary: summary})
}
