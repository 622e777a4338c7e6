// Package registry is the server-side session store. Everything lives in
// memory only: no audio is stored and transcripts are purged the moment a
// session summary is generated.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbrezina/medinter/internal/medterm"
	"github.com/dbrezina/medinter/internal/protocol"
)

// ErrSessionNotFound is returned for unknown or already purged session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionEnded is returned when an operation requires a live session.
var ErrSessionEnded = errors.New("session already ended")

// Exchange is one completed translation round held by a live session.
type Exchange struct {
	Speaker      protocol.Speaker
	Original     string
	Translation  string
	MedicalTerms []protocol.MedicalTerm
	Flags        []string
	Urgency      string
	At           time.Time
}

// Session is the registry's view of one translation session.
type Session struct {
	ID             string
	SourceLang     string
	TargetLang     string
	Mode           string
	StartedAt      time.Time
	CurrentSpeaker protocol.Speaker
	Active         bool

	exchanges []Exchange
}

// ExchangeCount returns the number of recorded exchanges.
func (s *Session) ExchangeCount() int { return len(s.exchanges) }

// Registry holds live sessions and supports graceful draining at shutdown:
// once draining, no new sessions are created while in-flight ones finish.
//
// The mutex makes the draining check and the waitgroup increment atomic in
// Create, so StartDraining+Wait cannot slip in between them.
type Registry struct {
	mu         sync.Mutex
	draining   bool
	wg         sync.WaitGroup
	sessions   map[string]*Session
	dailyCount int
	dayStart   time.Time
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		dayStart: time.Now(),
	}
}

// Create registers a new session with a short random id. Returns nil when
// the registry is draining.
func (r *Registry) Create(sourceLang, targetLang, mode string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining {
		return nil
	}
	s := &Session{
		ID:             uuid.NewString()[:8],
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
		Mode:           mode,
		StartedAt:      time.Now(),
		CurrentSpeaker: protocol.SpeakerPatient,
		Active:         true,
	}
	r.sessions[s.ID] = s
	r.dailyCount++
	r.wg.Add(1)
	return s
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// AddExchange appends one exchange to a live session.
func (r *Registry) AddExchange(id string, ex Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if !s.Active {
		return ErrSessionEnded
	}
	if ex.At.IsZero() {
		ex.At = time.Now()
	}
	if ex.Speaker == "" {
		ex.Speaker = s.CurrentSpeaker
	}
	s.exchanges = append(s.exchanges, ex)
	return nil
}

// SwitchSpeaker flips the active speaker and returns the new value.
func (r *Registry) SwitchSpeaker(id string) (protocol.Speaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return "", ErrSessionNotFound
	}
	s.CurrentSpeaker = s.CurrentSpeaker.Other()
	return s.CurrentSpeaker, nil
}

// End deactivates a session, builds its summary and purges the exchange
// data. Ending an already ended session returns the redacted summary.
func (r *Registry) End(id string) (protocol.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return protocol.Summary{}, ErrSessionNotFound
	}
	if !s.Active {
		return redactedSummary(s), nil
	}

	s.Active = false
	var terms []protocol.MedicalTerm
	var flags []string
	for _, ex := range s.exchanges {
		terms = append(terms, ex.MedicalTerms...)
		flags = append(flags, ex.Flags...)
	}
	summary := protocol.Summary{
		SessionID:       s.ID,
		DurationSeconds: time.Since(s.StartedAt).Seconds(),
		SourceLang:      s.SourceLang,
		TargetLang:      s.TargetLang,
		ExchangeCount:   len(s.exchanges),
		MedicalTerms:    terms,
		ClinicalSummary: medterm.BuildClinicalSummary(terms),
		Flags:           flags,
		Mode:            s.Mode,
	}

	// Purge transcripts the moment the summary exists.
	s.exchanges = nil
	r.wg.Done()
	return summary, nil
}

// Summary returns the post-end redacted summary of an ended session.
func (r *Registry) Summary(id string) (protocol.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return protocol.Summary{}, ErrSessionNotFound
	}
	if s.Active {
		return protocol.Summary{}, ErrSessionNotFound
	}
	return redactedSummary(s), nil
}

func redactedSummary(s *Session) protocol.Summary {
	return protocol.Summary{
		SessionID:       s.ID,
		DurationSeconds: time.Since(s.StartedAt).Seconds(),
		SourceLang:      s.SourceLang,
		TargetLang:      s.TargetLang,
		ExchangeCount:   0,
		MedicalTerms:    []protocol.MedicalTerm{},
		ClinicalSummary: protocol.ClinicalSummary{},
		Flags:           []string{},
		Mode:            s.Mode,
		Note:            "Detailed data was purged for privacy after initial summary generation.",
	}
}

// ActiveSession is the public shape of one live session.
type ActiveSession struct {
	SessionID       string           `json:"session_id"`
	SourceLang      string           `json:"source_lang"`
	TargetLang      string           `json:"target_lang"`
	ExchangeCount   int              `json:"exchange_count"`
	DurationSeconds float64          `json:"duration_seconds"`
	CurrentSpeaker  protocol.Speaker `json:"current_speaker"`
	Mode            string           `json:"mode"`
}

// ActiveSessions lists live sessions.
func (r *Registry) ActiveSessions() []ActiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActiveSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if !s.Active {
			continue
		}
		out = append(out, ActiveSession{
			SessionID:       s.ID,
			SourceLang:      s.SourceLang,
			TargetLang:      s.TargetLang,
			ExchangeCount:   len(s.exchanges),
			DurationSeconds: time.Since(s.StartedAt).Seconds(),
			CurrentSpeaker:  s.CurrentSpeaker,
			Mode:            s.Mode,
		})
	}
	return out
}

// ActiveCount returns the number of live sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.Active {
			n++
		}
	}
	return n
}

// DailyCount returns the number of sessions created today. The counter
// resets after 24 hours.
func (r *Registry) DailyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.dayStart) > 24*time.Hour {
		r.dailyCount = 0
		r.dayStart = time.Now()
	}
	return r.dailyCount
}

// CleanupOld removes ended sessions older than maxAge.
func (r *Registry) CleanupOld(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if !s.Active && time.Since(s.StartedAt) > maxAge {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StartDraining rejects future Create calls; in-flight sessions finish
// naturally.
func (r *Registry) StartDraining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draining = true
}

// IsDraining reports whether the registry is draining.
func (r *Registry) IsDraining() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draining
}

// Wait blocks until every live session has ended.
func (r *Registry) Wait() {
	r.wg.Wait()
}
