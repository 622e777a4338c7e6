package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dbrezina/medinter/internal/audio"
)

var runCmd = &cobra.Command{
	Use:   "run [audio.wav]",
	Short: "Stream audio through a live translation session",
	Long: `Open a translation session and stream audio into it.

With a WAV file argument the file plays at capture cadence, as if spoken
live into a microphone. Without one, raw little-endian PCM16 mono at
16 kHz is read from stdin, e.g.:

  arecord -f S16_LE -r 16000 -c 1 -t raw | medinter run

The session ends when the audio drains or on Ctrl-C, and the clinical
visit summary is printed.

Examples:
  medinter run visit.wav
  medinter -s zh-CN -t en-US run visit.wav`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var src audio.Source
		if len(args) == 1 {
			src = &audio.WAVSource{Path: args[0], Realtime: true}
		} else {
			// stdin paces itself at whatever feeds it.
			src = &audio.ReaderSource{R: os.Stdin}
		}

		l, err := openSession(ctx, a)
		if err != nil {
			return err
		}

		engine := audio.NewEngine(src, a.Logger)
		if err := engine.Start(l.machine.HandleChunk); err != nil {
			return err
		}

		select {
		case <-engine.Done():
		case <-ctx.Done():
		case err := <-l.aborted:
			engine.Stop()
			return err
		}
		engine.Stop()

		return l.end()
	},
}
