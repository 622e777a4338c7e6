// Package protocol defines the message set exchanged with the translation
// service over the full-duplex websocket. Every message is a JSON object
// carrying a "type" tag. Outbound and Inbound are sealed sum types so that
// adding a message kind forces every switch over them to be revisited.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Speaker identifies which conversation party is currently producing audio.
type Speaker string

const (
	SpeakerPatient  Speaker = "patient"
	SpeakerProvider Speaker = "provider"
)

// Other toggles between the two speakers.
func (s Speaker) Other() Speaker {
	if s == SpeakerPatient {
		return SpeakerProvider
	}
	return SpeakerPatient
}

// Outbound message type tags.
const (
	TypeConfig        = "config"
	TypeAudioChunk    = "audio_chunk"
	TypeTextInput     = "text_input"
	TypeSwitchSpeaker = "switch_speaker"
	TypeEndSession    = "end_session"
)

// Inbound message type tags.
const (
	TypeConfigAck         = "config_ack"
	TypePartialTranscript = "partial_transcript"
	TypeTranslationResult = "translation_result"
	TypeSpeakerSwitched   = "speaker_switched"
	TypeSessionEnded      = "session_ended"
)

// MedicalTerm is one extracted medical entity.
type MedicalTerm struct {
	Term     string `json:"term"`
	Category string `json:"category"`
	Original string `json:"original"`
}

// ClinicalSummary groups extracted terms into the categories a clinician
// expects on a visit summary.
type ClinicalSummary struct {
	ChiefComplaint []string `json:"chief_complaint"`
	Symptoms       []string `json:"symptoms"`
	Conditions     []string `json:"conditions"`
	Medications    []string `json:"medications"`
	Allergies      []string `json:"allergies"`
	Vitals         []string `json:"vitals"`
	OnsetDuration  []string `json:"onset_duration"`
	Severity       []string `json:"severity"`
	Procedures     []string `json:"procedures"`
}

// Summary is the terminal artifact of a session, produced exactly once by
// whichever termination path resolves first.
type Summary struct {
	SessionID       string          `json:"session_id"`
	DurationSeconds float64         `json:"duration_seconds"`
	SourceLang      string          `json:"source_lang"`
	TargetLang      string          `json:"target_lang"`
	ExchangeCount   int             `json:"exchange_count"`
	MedicalTerms    []MedicalTerm   `json:"medical_terms"`
	ClinicalSummary ClinicalSummary `json:"clinical_summary"`
	Flags           []string        `json:"flags"`
	Mode            string          `json:"mode"`
	Note            string          `json:"note,omitempty"`
}

// Outbound is a message sent from the client to the translation service.
type Outbound interface{ outboundMessage() }

// Config opens the protocol handshake for a session.
type Config struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	SessionID  string `json:"session_id,omitempty"`
}

// AudioChunk carries one base64-encoded PCM16 frame.
type AudioChunk struct {
	Audio      string `json:"audio"`
	SessionID  string `json:"session_id"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// TextInput requests translation of typed text, bypassing speech recognition.
type TextInput struct {
	Text       string `json:"text"`
	SessionID  string `json:"session_id"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// SwitchSpeaker asks the service to flip the active speaker.
type SwitchSpeaker struct{}

// EndSession asks the service to terminate the session and emit a summary.
type EndSession struct{}

func (Config) outboundMessage()        {}
func (AudioChunk) outboundMessage()    {}
func (TextInput) outboundMessage()     {}
func (SwitchSpeaker) outboundMessage() {}
func (EndSession) outboundMessage()    {}

// Inbound is a message received from the translation service.
type Inbound interface{ inboundMessage() }

// ConfigAck confirms the config handshake.
type ConfigAck struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// PartialTranscript is an in-progress recognition result. It is superseded
// by the next partial or by a translation result.
type PartialTranscript struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// TranslationResult is one completed speech-to-translation round.
type TranslationResult struct {
	Original     string        `json:"original"`
	Translation  string        `json:"translation"`
	MedicalTerms []MedicalTerm `json:"medical_terms"`
	Flags        []string      `json:"flags"`
	Urgency      string        `json:"urgency"`
	Audio        string        `json:"audio,omitempty"`
}

// SpeakerSwitched carries the server-asserted current speaker.
type SpeakerSwitched struct {
	CurrentSpeaker Speaker `json:"current_speaker"`
}

// SessionEnded delivers the terminal session summary.
type SessionEnded struct {
	Summary Summary `json:"summary"`
}

func (ConfigAck) inboundMessage()         {}
func (PartialTranscript) inboundMessage() {}
func (TranslationResult) inboundMessage() {}
func (SpeakerSwitched) inboundMessage()   {}
func (SessionEnded) inboundMessage()      {}

type envelope struct {
	Type string `json:"type"`
}

// MarshalOutbound serializes an outbound message with its type tag.
func MarshalOutbound(m Outbound) ([]byte, error) {
	switch v := m.(type) {
	case Config:
		return json.Marshal(struct {
			Type string `json:"type"`
			Config
		}{TypeConfig, v})
	case AudioChunk:
		return json.Marshal(struct {
			Type string `json:"type"`
			AudioChunk
		}{TypeAudioChunk, v})
	case TextInput:
		return json.Marshal(struct {
			Type string `json:"type"`
			TextInput
		}{TypeTextInput, v})
	case SwitchSpeaker:
		return json.Marshal(envelope{Type: TypeSwitchSpeaker})
	case EndSession:
		return json.Marshal(envelope{Type: TypeEndSession})
	default:
		return nil, fmt.Errorf("unknown outbound message %T", m)
	}
}

// ParseOutbound decodes a client-originated message. Used by the server side.
func ParseOutbound(data []byte) (Outbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse outbound message: %w", err)
	}
	switch env.Type {
	case TypeConfig:
		var m Config
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeAudioChunk:
		var m AudioChunk
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeTextInput:
		var m TextInput
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeSwitchSpeaker:
		return SwitchSpeaker{}, nil
	case TypeEndSession:
		return EndSession{}, nil
	default:
		return nil, fmt.Errorf("unknown outbound message type %q", env.Type)
	}
}

// MarshalInbound serializes a service-originated message with its type tag.
func MarshalInbound(m Inbound) ([]byte, error) {
	switch v := m.(type) {
	case ConfigAck:
		return json.Marshal(struct {
			Type string `json:"type"`
			ConfigAck
		}{TypeConfigAck, v})
	case PartialTranscript:
		return json.Marshal(struct {
			Type string `json:"type"`
			PartialTranscript
		}{TypePartialTranscript, v})
	case TranslationResult:
		return json.Marshal(struct {
			Type string `json:"type"`
			TranslationResult
		}{TypeTranslationResult, v})
	case SpeakerSwitched:
		return json.Marshal(struct {
			Type string `json:"type"`
			SpeakerSwitched
		}{TypeSpeakerSwitched, v})
	case SessionEnded:
		return json.Marshal(struct {
			Type string `json:"type"`
			SessionEnded
		}{TypeSessionEnded, v})
	default:
		return nil, fmt.Errorf("unknown inbound message %T", m)
	}
}

// ParseInbound decodes a service-originated message. A payload that is not
// valid JSON or carries an unrecognized type tag is rejected with an error;
// the caller drops it without tearing down the connection.
func ParseInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse inbound message: %w", err)
	}
	switch env.Type {
	case TypeConfigAck:
		var m ConfigAck
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypePartialTranscript:
		var m PartialTranscript
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeTranslationResult:
		var m TranslationResult
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeSpeakerSwitched:
		var m SpeakerSwitched
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeSessionEnded:
		var m SessionEnded
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown inbound message type %q", env.Type)
	}
}
