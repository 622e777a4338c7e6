package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/dbrezina/medinter/internal/protocol"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := New()
	s := r.Create("es-US", "en-US", "conversation")
	if s == nil {
		t.Fatal("Create() returned nil")
	}
	if len(s.ID) != 8 {
		t.Errorf("session id %q has length %d, want 8", s.ID, len(s.ID))
	}
	if s.CurrentSpeaker != protocol.SpeakerPatient {
		t.Errorf("initial speaker = %v, want patient", s.CurrentSpeaker)
	}

	got, ok := r.Get(s.ID)
	if !ok || got.ID != s.ID {
		t.Errorf("Get(%q) = %v, %v", s.ID, got, ok)
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("Get on unknown id should fail")
	}
	if r.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", r.ActiveCount())
	}
	if r.DailyCount() != 1 {
		t.Errorf("DailyCount = %d, want 1", r.DailyCount())
	}
}

func TestRegistry_EndBuildsSummaryAndPurges(t *testing.T) {
	r := New()
	s := r.Create("es-US", "en-US", "conversation")

	err := r.AddExchange(s.ID, Exchange{
		Speaker:     protocol.SpeakerPatient,
		Original:    "tengo alergia a penicilina",
		Translation: "I am allergic to penicillin",
		MedicalTerms: []protocol.MedicalTerm{
			{Term: "Penicillin allergy", Category: "allergy", Original: "alergia a penicilina"},
		},
		Flags:   []string{"verify allergy record"},
		Urgency: "medium",
	})
	if err != nil {
		t.Fatalf("AddExchange() error = %v", err)
	}
	if err := r.AddExchange(s.ID, Exchange{
		Speaker:      protocol.SpeakerProvider,
		Original:     "how long has this been going on",
		Translation:  "cuánto tiempo lleva así",
		MedicalTerms: []protocol.MedicalTerm{{Term: "Last night", Category: "onset"}},
	}); err != nil {
		t.Fatalf("AddExchange() error = %v", err)
	}

	sum, err := r.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if sum.ExchangeCount != 2 {
		t.Errorf("exchange count = %d, want 2", sum.ExchangeCount)
	}
	if len(sum.MedicalTerms) != 2 {
		t.Errorf("got %d medical terms, want 2", len(sum.MedicalTerms))
	}
	if len(sum.Flags) != 1 || sum.Flags[0] != "verify allergy record" {
		t.Errorf("flags = %v", sum.Flags)
	}
	if len(sum.ClinicalSummary.Allergies) != 1 {
		t.Errorf("clinical summary allergies = %v", sum.ClinicalSummary.Allergies)
	}
	if sum.Note != "" {
		t.Errorf("first summary should not be redacted, note = %q", sum.Note)
	}

	// Transcripts are gone: adding to the ended session fails and the
	// follow-up summary is redacted.
	if err := r.AddExchange(s.ID, Exchange{}); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("AddExchange after end = %v, want ErrSessionEnded", err)
	}
	redacted, err := r.Summary(s.ID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if redacted.Note == "" || len(redacted.MedicalTerms) != 0 || redacted.ExchangeCount != 0 {
		t.Errorf("post-end summary not redacted: %+v", redacted)
	}
}

func TestRegistry_EndTwiceReturnsRedacted(t *testing.T) {
	r := New()
	s := r.Create("es-US", "en-US", "conversation")
	if _, err := r.End(s.ID); err != nil {
		t.Fatalf("first End() error = %v", err)
	}
	sum, err := r.End(s.ID)
	if err != nil {
		t.Fatalf("second End() error = %v", err)
	}
	if sum.Note == "" {
		t.Error("second End() should return the redacted summary")
	}
}

func TestRegistry_SummaryRequiresEnd(t *testing.T) {
	r := New()
	s := r.Create("es-US", "en-US", "conversation")
	if _, err := r.Summary(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Summary on live session = %v, want ErrSessionNotFound", err)
	}
	if _, err := r.Summary("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Summary on unknown id = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistry_SwitchSpeaker(t *testing.T) {
	r := New()
	s := r.Create("es-US", "en-US", "conversation")

	got, err := r.SwitchSpeaker(s.ID)
	if err != nil {
		t.Fatalf("SwitchSpeaker() error = %v", err)
	}
	if got != protocol.SpeakerProvider {
		t.Errorf("speaker = %v, want provider", got)
	}
	got, _ = r.SwitchSpeaker(s.ID)
	if got != protocol.SpeakerPatient {
		t.Errorf("speaker = %v, want patient after second switch", got)
	}
	if _, err := r.SwitchSpeaker("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("SwitchSpeaker on unknown id = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistry_Draining(t *testing.T) {
	r := New()
	s := r.Create("es-US", "en-US", "conversation")

	r.StartDraining()
	if !r.IsDraining() {
		t.Error("IsDraining() = false after StartDraining")
	}
	if r.Create("es-US", "en-US", "conversation") != nil {
		t.Error("Create() while draining should return nil")
	}

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait() returned with a session still live")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := r.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait() did not return after the last session ended")
	}
}

func TestRegistry_CleanupOld(t *testing.T) {
	r := New()
	ended := r.Create("es-US", "en-US", "conversation")
	live := r.Create("es-US", "en-US", "conversation")
	if _, err := r.End(ended.ID); err != nil {
		t.Fatal(err)
	}

	// Backdate the ended session past the cutoff.
	r.mu.Lock()
	r.sessions[ended.ID].StartedAt = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()

	if removed := r.CleanupOld(time.Hour); removed != 1 {
		t.Errorf("CleanupOld removed %d sessions, want 1", removed)
	}
	if _, ok := r.Get(ended.ID); ok {
		t.Error("ended session survived cleanup")
	}
	if _, ok := r.Get(live.ID); !ok {
		t.Error("live session removed by cleanup")
	}
}
