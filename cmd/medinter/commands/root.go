package commands

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dbrezina/medinter/internal/app"
)

var (
	flagServer string
	flagSource string
	flagTarget string
	flagMode   string
	flagAudio  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "medinter",
	Short: "Point-of-care speech translation client",
	Long: `medinter is a client for the medical interpretation service.

It opens a translation session, streams microphone-style audio or typed
text over a websocket, prints each translated exchange with its extracted
medical terms, and closes with the clinical visit summary.

Configuration comes from the environment (MEDINTER_SERVER_URL and
friends, or a .env file); flags override it per invocation.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer sentry.Flush(2 * time.Second)
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "service base URL (default from MEDINTER_SERVER_URL)")
	rootCmd.PersistentFlags().StringVarP(&flagSource, "source", "s", "", "patient language code, e.g. es-US")
	rootCmd.PersistentFlags().StringVarP(&flagTarget, "target", "t", "", "provider language code, e.g. en-US")
	rootCmd.PersistentFlags().StringVarP(&flagMode, "mode", "m", "", "session mode: conversation, one-way or dictation")
	rootCmd.PersistentFlags().StringVar(&flagAudio, "audio-dir", "", "directory for synthesized playback WAVs (default discard)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(languagesCmd)
}

func initEnv() {
	_ = godotenv.Load()
}

// newApp assembles the client from the environment with flag overrides
// applied.
func newApp() *app.App {
	cfg := app.LoadConfigFromEnv()
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if flagSource != "" {
		cfg.SourceLang = flagSource
	}
	if flagTarget != "" {
		cfg.TargetLang = flagTarget
	}
	if flagMode != "" {
		cfg.Mode = flagMode
	}
	if flagAudio != "" {
		cfg.AudioDir = flagAudio
	}

	if cfg.SentryDSN != "" {
		_ = sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: "client",
		})
	}

	return app.New(cfg)
}
