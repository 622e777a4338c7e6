package server

import (
	"sync"

	"github.com/dbrezina/medinter/internal/protocol"
)

// Translation is the outcome of one translation request. Original is the
// canned source-language text; the mock fills it in when speech recognition
// produced no transcript of its own.
type Translation struct {
	Original     string
	Translation  string
	MedicalTerms []protocol.MedicalTerm
	Flags        []string
	Urgency      string
}

// Translator produces translations with extracted medical entities. Preview
// returns the canned source-language text for in-progress transcripts
// without consuming a translation; it is empty when the implementation has
// none for the language.
type Translator interface {
	Translate(text, sourceLang, targetLang string) Translation
	Preview(sourceLang string) string
}

// mockDefaults holds a fixed response per source language, so demos against
// a known language always show the same exchange.
var mockDefaults = map[string]Translation{
	"zh-CN": {
		Original:    "我胸口很痛，从昨天晚上开始的",
		Translation: "My chest has been hurting badly since last night",
		MedicalTerms: []protocol.MedicalTerm{
			{Term: "Chest pain", Category: "symptom", Original: "胸口很痛"},
			{Term: "Last night", Category: "onset", Original: "昨天晚上"},
		},
		Flags:   []string{},
		Urgency: "high",
	},
	"es-US": {
		Original:    "Tengo un dolor de cabeza muy fuerte y me siento mareado",
		Translation: "I have a very strong headache and I feel dizzy",
		MedicalTerms: []protocol.MedicalTerm{
			{Term: "Severe headache", Category: "symptom", Original: "dolor de cabeza muy fuerte"},
			{Term: "Dizziness", Category: "symptom", Original: "mareado"},
		},
		Flags:   []string{"Dizziness combined with severe headache may indicate neurological emergency"},
		Urgency: "high",
	},
}

// mockPool is cycled through for source languages without a fixed default.
var mockPool = []Translation{
	{
		Translation: "I am allergic to penicillin and I take metformin for diabetes",
		MedicalTerms: []protocol.MedicalTerm{
			{Term: "Penicillin allergy", Category: "allergy", Original: "alergia a penicilina"},
			{Term: "Metformin", Category: "medication", Original: "metformina"},
			{Term: "Diabetes", Category: "condition", Original: "diabetes"},
		},
		Flags:   []string{},
		Urgency: "medium",
	},
	{
		Translation: "The pain is 8 out of 10, sharp, and radiating to my left arm",
		MedicalTerms: []protocol.MedicalTerm{
			{Term: "Pain scale 8/10", Category: "severity", Original: "dolor 8 de 10"},
			{Term: "Sharp pain", Category: "symptom", Original: "dolor agudo"},
			{Term: "Radiating to left arm", Category: "symptom", Original: "se extiende al brazo izquierdo"},
		},
		Flags:   []string{"Chest pain radiating to left arm is a classic sign of myocardial infarction — URGENT"},
		Urgency: "critical",
	},
	{
		Translation: "I have been vomiting since this morning and I cannot keep water down",
		MedicalTerms: []protocol.MedicalTerm{
			{Term: "Vomiting", Category: "symptom", Original: "vomitando"},
			{Term: "This morning", Category: "onset", Original: "desde esta mañana"},
			{Term: "Unable to tolerate fluids", Category: "symptom", Original: "no puedo retener agua"},
		},
		Flags:   []string{"Risk of dehydration — assess fluid status"},
		Urgency: "medium",
	},
	{
		Translation: "My blood pressure was 180 over 110 when I checked at home",
		MedicalTerms: []protocol.MedicalTerm{
			{Term: "Blood pressure 180/110", Category: "vital_sign", Original: "presión arterial 180/110"},
			{Term: "Hypertensive crisis", Category: "condition", Original: "crisis hipertensiva"},
		},
		Flags:   []string{"BP 180/110 is hypertensive urgency/emergency — immediate evaluation needed"},
		Urgency: "critical",
	},
}

// MockTranslator serves canned medical translations for demo mode: a fixed
// response for known source languages, otherwise the pool in rotation.
type MockTranslator struct {
	mu    sync.Mutex
	index int
}

func NewMockTranslator() *MockTranslator {
	return &MockTranslator{}
}

func (t *MockTranslator) Preview(sourceLang string) string {
	return mockDefaults[sourceLang].Original
}

func (t *MockTranslator) Translate(text, sourceLang, targetLang string) Translation {
	if d, ok := mockDefaults[sourceLang]; ok {
		return d
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := mockPool[t.index%len(mockPool)]
	t.index++
	return out
}
