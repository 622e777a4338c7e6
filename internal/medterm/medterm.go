// Package medterm post-processes medical entities extracted by the
// translation model: category validation with a safe fallback, and folding
// the flat term list into the structured clinical summary.
package medterm

import (
	"strings"

	"github.com/dbrezina/medinter/internal/protocol"
)

// Categories is the set of accepted medical entity categories.
var Categories = map[string]bool{
	"symptom":    true,
	"condition":  true,
	"medication": true,
	"allergy":    true,
	"vital_sign": true,
	"procedure":  true,
	"dosage":     true,
	"onset":      true,
	"severity":   true,
}

// Normalize validates model output. An unrecognized category falls back to
// "symptom" so a malformed entity still shows up somewhere; a missing term
// becomes "Unknown".
func Normalize(terms []protocol.MedicalTerm) []protocol.MedicalTerm {
	out := make([]protocol.MedicalTerm, 0, len(terms))
	for _, t := range terms {
		cat := strings.TrimSpace(strings.ToLower(t.Category))
		if !Categories[cat] {
			cat = "symptom"
		}
		term := t.Term
		if term == "" {
			term = "Unknown"
		}
		out = append(out, protocol.MedicalTerm{
			Term:     term,
			Category: cat,
			Original: t.Original,
		})
	}
	return out
}

// BuildClinicalSummary folds normalized terms into the visit summary. The
// first symptom doubles as the chief complaint; dosage entries belong with
// medications.
func BuildClinicalSummary(terms []protocol.MedicalTerm) protocol.ClinicalSummary {
	var cs protocol.ClinicalSummary
	for _, t := range terms {
		switch t.Category {
		case "symptom":
			cs.Symptoms = append(cs.Symptoms, t.Term)
			if len(cs.ChiefComplaint) == 0 {
				cs.ChiefComplaint = append(cs.ChiefComplaint, t.Term)
			}
		case "condition":
			cs.Conditions = append(cs.Conditions, t.Term)
		case "medication", "dosage":
			cs.Medications = append(cs.Medications, t.Term)
		case "allergy":
			cs.Allergies = append(cs.Allergies, t.Term)
		case "vital_sign":
			cs.Vitals = append(cs.Vitals, t.Term)
		case "onset":
			cs.OnsetDuration = append(cs.OnsetDuration, t.Term)
		case "severity":
			cs.Severity = append(cs.Severity, t.Term)
		case "procedure":
			cs.Procedures = append(cs.Procedures, t.Term)
		}
	}
	return cs
}
