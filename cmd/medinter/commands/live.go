package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dbrezina/medinter/internal/api"
	"github.com/dbrezina/medinter/internal/app"
	"github.com/dbrezina/medinter/internal/protocol"
	"github.com/dbrezina/medinter/internal/session"
)

const handshakeTimeout = 10 * time.Second

// live bundles a running translation session with the channels the
// commands wait on.
type live struct {
	app     *app.App
	machine *session.Machine
	started api.Started
	ended   chan protocol.Summary
	aborted chan error
}

// openSession creates a session over REST, connects the websocket and
// completes the protocol handshake. On return the session is active.
func openSession(ctx context.Context, a *app.App) (*live, error) {
	started, err := a.API.StartSession(ctx, a.Cfg.SourceLang, a.Cfg.TargetLang, a.Cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	l := &live{
		app:     a,
		started: started,
		ended:   make(chan protocol.Summary, 1),
		aborted: make(chan error, 1),
	}

	active := make(chan struct{})
	var activeOnce sync.Once

	l.machine = session.New(a.Transport, a.API, session.Options{
		Sink:   a.Sink(),
		Logger: a.Logger,
		Callbacks: session.Callbacks{
			OnPartial: func(text string) {
				if text != "" {
					fmt.Printf("\r  … %-70s", text)
				}
			},
			OnExchange: printExchange,
			OnSpeaker: func(s protocol.Speaker) {
				activeOnce.Do(func() { close(active) })
				fmt.Printf("\n[speaker: %s]\n", s)
			},
			OnEnded:   func(s protocol.Summary) { l.ended <- s },
			OnAborted: func(err error) { l.aborted <- err },
		},
	})

	connected := make(chan struct{})
	var connOnce sync.Once
	unsub := a.Transport.SubscribeState(func(ok bool) {
		if ok {
			connOnce.Do(func() { close(connected) })
		}
	})
	defer unsub()

	a.Transport.Connect()
	select {
	case <-connected:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(handshakeTimeout):
		return nil, fmt.Errorf("connect to %s: timed out", a.Cfg.WSURL())
	}

	l.machine.Start(session.Config{
		SessionID:  started.SessionID,
		SourceLang: started.SourceLang,
		TargetLang: started.TargetLang,
		Mode:       started.Mode,
	})
	select {
	case <-active:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(handshakeTimeout):
		return nil, fmt.Errorf("session %s: handshake timed out", started.SessionID)
	}

	fmt.Printf("session %s  %s -> %s  (%s)\n",
		started.SessionID, started.SourceLang, started.TargetLang, started.Mode)
	return l, nil
}

// end terminates the session and waits for whichever summary path wins.
func (l *live) end() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	l.machine.End(ctx)
	select {
	case summary := <-l.ended:
		printSummary(summary)
		return nil
	case err := <-l.aborted:
		return fmt.Errorf("end session: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("end session %s: timed out", l.started.SessionID)
	}
}

func printExchange(ex session.Exchange) {
	fmt.Printf("\r%-76s\r", "")
	fmt.Printf("[%s] %s\n", ex.Speaker, ex.Original)
	fmt.Printf("  -> %s\n", ex.Translation)
	if len(ex.MedicalTerms) > 0 {
		parts := make([]string, len(ex.MedicalTerms))
		for i, t := range ex.MedicalTerms {
			parts[i] = fmt.Sprintf("%s (%s)", t.Term, t.Category)
		}
		fmt.Printf("  terms: %s\n", strings.Join(parts, ", "))
	}
	if len(ex.Flags) > 0 {
		fmt.Printf("  flags: %s  urgency: %s\n", strings.Join(ex.Flags, ", "), ex.Urgency)
	}
}

func printSummary(s protocol.Summary) {
	fmt.Println()
	fmt.Println("--- visit summary ---")
	fmt.Printf("session:    %s (%s -> %s, %s)\n", s.SessionID, s.SourceLang, s.TargetLang, s.Mode)
	fmt.Printf("duration:   %.0fs  exchanges: %d\n", s.DurationSeconds, s.ExchangeCount)
	printCategory("chief complaint", s.ClinicalSummary.ChiefComplaint)
	printCategory("symptoms", s.ClinicalSummary.Symptoms)
	printCategory("conditions", s.ClinicalSummary.Conditions)
	printCategory("medications", s.ClinicalSummary.Medications)
	printCategory("allergies", s.ClinicalSummary.Allergies)
	printCategory("vitals", s.ClinicalSummary.Vitals)
	printCategory("onset", s.ClinicalSummary.OnsetDuration)
	printCategory("severity", s.ClinicalSummary.Severity)
	printCategory("procedures", s.ClinicalSummary.Procedures)
	printCategory("flags", s.Flags)
	if s.Note != "" {
		fmt.Printf("note:       %s\n", s.Note)
	}
}

func printCategory(name string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Printf("%-11s %s\n", name+":", strings.Join(values, ", "))
}
