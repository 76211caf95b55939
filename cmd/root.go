package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/config"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/transcribe"
)

// Version is set during build via -ldflags "-X .../cmd.version=X.Y.Z"
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "drumchart",
	Short: "Turn songs into drum chart road maps",
	Long: `Drum charter listens to a song and writes the road map a drummer
takes on stage: the sections in playing order, how many bars each one
lasts, the groove, and the cues worth remembering.

Charts come from a multimodal model that hears the actual audio, so
treat every generated chart as a starting point and verify it against
the recording before playing it.`,
	Version: version,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")
}

// buildProvider picks the transcription provider: Gemini with the API key
// from the environment, or the canned offline provider for development and
// demos without network access.
func buildProvider(settings *config.Settings, offline bool) (transcribe.Provider, error) {
	if offline {
		return transcribe.NewFake(), nil
	}

	if settings.APIKey == "" {
		return nil, fmt.Errorf("no API key: set %s or %s, or pass --offline", config.EnvAPIKey, config.EnvAPIKeyAlt)
	}

	gemini := transcribe.NewGemini(settings.APIKey, settings.Model)
	gemini.SetPollInterval(settings.PollInterval())
	gemini.SetProcessTimeout(settings.ProcessTimeout())
	gemini.SetRequestTimeout(settings.RequestTimeout())
	return gemini, nil
}
