package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var textCmd = &cobra.Command{
	Use:   "text",
	Short: "Drive a session with typed text",
	Long: `Open a translation session and submit typed lines for translation.

Each line is translated in the current speaker's direction. Two input
commands control the session:

  /switch   hand the floor to the other speaker
  /end      end the session and print the visit summary

EOF (Ctrl-D) also ends the session.

Examples:
  medinter text
  medinter -s es-US -t en-US text`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		l, err := openSession(ctx, a)
		if err != nil {
			return err
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		fmt.Println("type to translate, /switch to change speaker, /end to finish")
		for {
			select {
			case <-ctx.Done():
				return l.end()
			case err := <-l.aborted:
				return err
			case line, ok := <-lines:
				if !ok {
					return l.end()
				}
				switch strings.TrimSpace(line) {
				case "":
				case "/switch":
					l.machine.SwitchSpeaker()
				case "/end":
					return l.end()
				default:
					l.machine.SendText(line)
				}
			}
		}
	},
}
