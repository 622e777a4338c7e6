// Package session holds the client-side session state machine. It owns the
// session lifecycle, the active-speaker direction, the transient partial
// transcript and the append-only exchange log, and it arbitrates the two
// termination paths (websocket summary vs REST summary) so that exactly one
// of them ends the session.
package session

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dbrezina/medinter/internal/audio"
	"github.com/dbrezina/medinter/internal/protocol"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingConfigAck
	StateActive
	StateEnding
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConfigAck:
		return "awaiting_config_ack"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Exchange is one completed translation round. Exchanges are immutable once
// appended and the log is never reordered or deduplicated.
type Exchange struct {
	ID           string
	Speaker      protocol.Speaker
	Original     string
	Translation  string
	MedicalTerms []protocol.MedicalTerm
	Flags        []string
	Urgency      string
	At           time.Time
}

// Transport is the slice of the websocket client the machine depends on.
type Transport interface {
	Send(protocol.Outbound)
	Subscribe(func(protocol.Inbound)) (unsubscribe func())
}

// Ender terminates a session over REST. The machine races it against the
// websocket session_ended message.
type Ender interface {
	EndSession(ctx context.Context, sessionID string) (protocol.Summary, error)
}

// Config describes the session being started.
type Config struct {
	SessionID  string
	SourceLang string
	TargetLang string
	Mode       string
}

// Callbacks are invoked by the machine outside its lock. Nil entries are
// skipped. OnEnded fires exactly once per session; OnAborted fires instead
// when termination fails on every path.
type Callbacks struct {
	OnPartial  func(text string)
	OnExchange func(Exchange)
	OnSpeaker  func(protocol.Speaker)
	OnEnded    func(protocol.Summary)
	OnAborted  func(err error)
}

// Options carries optional collaborators.
type Options struct {
	Sink      audio.Sink
	Logger    *log.Logger
	Callbacks Callbacks
}

// Machine is the session state machine. All methods are safe for concurrent
// use.
type Machine struct {
	tr     Transport
	ender  Ender
	sink   audio.Sink
	logger *log.Logger
	cb     Callbacks

	mu        sync.Mutex
	state     State
	speaker   protocol.Speaker
	cfg       Config
	partial   string
	exchanges []Exchange
	startedAt time.Time
	unsub     func()
}

func New(tr Transport, ender Ender, opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Machine{
		tr:     tr,
		ender:  ender,
		sink:   opts.Sink,
		logger: logger,
		cb:     opts.Callbacks,
		state:  StateIdle,
	}
}

// Start opens the protocol handshake. Only valid from Idle or Ended; the
// exchange log of a previous session is discarded.
func (m *Machine) Start(cfg Config) {
	m.mu.Lock()
	if m.state != StateIdle && m.state != StateEnded {
		m.mu.Unlock()
		m.logger.Warn("start ignored", "state", m.state)
		return
	}
	m.state = StateAwaitingConfigAck
	m.cfg = cfg
	m.speaker = protocol.SpeakerPatient
	m.partial = ""
	m.exchanges = nil
	if m.unsub == nil {
		m.unsub = m.tr.Subscribe(m.handleInbound)
	}
	m.mu.Unlock()

	m.tr.Send(protocol.Config{
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		SessionID:  cfg.SessionID,
	})
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Speaker returns the current active speaker.
func (m *Machine) Speaker() protocol.Speaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaker
}

// Partial returns the in-progress transcript, empty when none.
func (m *Machine) Partial() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partial
}

// Exchanges returns a copy of the exchange log in arrival order.
func (m *Machine) Exchanges() []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Exchange, len(m.exchanges))
	copy(out, m.exchanges)
	return out
}

// HandleChunk forwards one encoded audio frame, directed by the current
// speaker. Outside Active the chunk is discarded.
func (m *Machine) HandleChunk(b64 string) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	src, dst := m.directionLocked()
	id := m.cfg.SessionID
	m.mu.Unlock()

	m.tr.Send(protocol.AudioChunk{
		Audio:      b64,
		SessionID:  id,
		SourceLang: src,
		TargetLang: dst,
	})
}

// SendText submits typed text for translation with the same direction rules
// as audio. Outside Active it is discarded.
func (m *Machine) SendText(text string) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	src, dst := m.directionLocked()
	id := m.cfg.SessionID
	m.mu.Unlock()

	m.tr.Send(protocol.TextInput{
		Text:       text,
		SessionID:  id,
		SourceLang: src,
		TargetLang: dst,
	})
}

// SwitchSpeaker flips the active speaker optimistically and notifies the
// service. The server remains authoritative: a later speaker_switched
// message overwrites the local value.
func (m *Machine) SwitchSpeaker() {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.speaker = m.speaker.Other()
	speaker := m.speaker
	m.mu.Unlock()

	m.notifySpeaker(speaker)
	m.tr.Send(protocol.SwitchSpeaker{})
}

// End begins termination. The end_session message and the REST call race;
// whichever summary arrives first ends the session. A REST failure while the
// websocket path has not resolved aborts the session back to Idle.
func (m *Machine) End(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.state = StateEnding
	id := m.cfg.SessionID
	m.mu.Unlock()

	m.tr.Send(protocol.EndSession{})

	go func() {
		summary, err := m.ender.EndSession(ctx, id)
		if err != nil {
			m.abort(err)
			return
		}
		m.finish(summary)
	}()
}

func (m *Machine) handleInbound(msg protocol.Inbound) {
	switch v := msg.(type) {
	case protocol.ConfigAck:
		m.mu.Lock()
		if m.state != StateAwaitingConfigAck {
			m.mu.Unlock()
			return
		}
		m.state = StateActive
		m.speaker = protocol.SpeakerPatient
		m.startedAt = time.Now()
		m.mu.Unlock()
		m.notifySpeaker(protocol.SpeakerPatient)

	case protocol.PartialTranscript:
		m.mu.Lock()
		if m.state != StateActive {
			m.mu.Unlock()
			return
		}
		m.partial = v.Text
		m.mu.Unlock()
		if m.cb.OnPartial != nil {
			m.cb.OnPartial(v.Text)
		}

	case protocol.TranslationResult:
		m.mu.Lock()
		if m.state != StateActive {
			m.mu.Unlock()
			return
		}
		m.partial = ""
		ex := Exchange{
			ID:           uuid.NewString(),
			Speaker:      m.speaker,
			Original:     v.Original,
			Translation:  v.Translation,
			MedicalTerms: v.MedicalTerms,
			Flags:        v.Flags,
			Urgency:      v.Urgency,
			At:           time.Now(),
		}
		m.exchanges = append(m.exchanges, ex)
		m.mu.Unlock()

		if m.cb.OnExchange != nil {
			m.cb.OnExchange(ex)
		}
		if v.Audio != "" && m.sink != nil {
			if wav, err := base64.StdEncoding.DecodeString(v.Audio); err != nil {
				m.logger.Warn("decode playback audio", "err", err)
			} else if err := m.sink.Play(wav); err != nil {
				m.logger.Warn("play translation audio", "err", err)
			}
		}

	case protocol.SpeakerSwitched:
		m.mu.Lock()
		if m.state != StateActive {
			m.mu.Unlock()
			return
		}
		changed := m.speaker != v.CurrentSpeaker
		m.speaker = v.CurrentSpeaker
		m.mu.Unlock()
		if changed {
			m.notifySpeaker(v.CurrentSpeaker)
		}

	case protocol.SessionEnded:
		m.finish(v.Summary)
	}
}

// finish settles the termination race. The first caller moves the machine to
// Ended and fires OnEnded; later callers find the race already decided.
func (m *Machine) finish(summary protocol.Summary) {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateEnding {
		m.mu.Unlock()
		return
	}
	m.state = StateEnded
	m.partial = ""
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.logger.Info("session ended",
		"session", summary.SessionID,
		"exchanges", summary.ExchangeCount)
	if m.cb.OnEnded != nil {
		m.cb.OnEnded(summary)
	}
}

// abort handles a failed REST termination. If the websocket path resolved in
// the meantime the failure is irrelevant; otherwise the session is reset.
func (m *Machine) abort(err error) {
	m.mu.Lock()
	if m.state != StateEnding {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	m.partial = ""
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.logger.Error("session termination failed", "err", err)
	if m.cb.OnAborted != nil {
		m.cb.OnAborted(err)
	}
}

// directionLocked picks source and target by the active speaker: the patient
// speaks the session source language, the provider the target language.
func (m *Machine) directionLocked() (src, dst string) {
	if m.speaker == protocol.SpeakerProvider {
		return m.cfg.TargetLang, m.cfg.SourceLang
	}
	return m.cfg.SourceLang, m.cfg.TargetLang
}

func (m *Machine) notifySpeaker(s protocol.Speaker) {
	if m.cb.OnSpeaker != nil {
		m.cb.OnSpeaker(s)
	}
}
