package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const queryTimeout = 10 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report service health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		h, err := a.API.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("status:          %s\n", h.Status)
		fmt.Printf("active sessions: %d\n", h.ActiveSessions)
		fmt.Printf("daily sessions:  %d\n", h.DailySessions)
		fmt.Printf("mock mode:       %v\n", h.MockMode)
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions on the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		sessions, err := a.API.ActiveSessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("no active sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %s -> %s  %3d exchanges  %5.0fs  speaker=%s  %s\n",
				s.SessionID, s.SourceLang, s.TargetLang,
				s.ExchangeCount, s.DurationSeconds, s.CurrentSpeaker, s.Mode)
		}
		return nil
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the supported language catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		languages, err := a.API.Languages(ctx)
		if err != nil {
			return err
		}
		for _, l := range languages {
			fmt.Printf("%-7s %-12s %s\n", l.Code, l.Name, l.Native)
		}
		return nil
	},
}
