package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/audio"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/charter"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/config"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/ingest"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/pdfgen"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/web"
)

var serveOffline bool

func init() {
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use the canned offline provider instead of Gemini")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the drum charter web app",
	Long: `Serve the chart editor and its JSON API. Songs are submitted as
uploads or YouTube URLs, charted in the background, and edited in the
browser. The server runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := settings.EnsureWorkDir(); err != nil {
		return err
	}

	provider, err := buildProvider(settings, serveOffline)
	if err != nil {
		return err
	}

	fetcher := ingest.NewFetcher(settings.WorkDir)

	preparer := audio.NewService(settings.WorkDir)
	preparer.SetSkipTranscode(settings.SkipAudioTranscode)
	preparer.SetFFmpegPath(settings.FFmpegPath)
	preparer.SetFFprobePath(settings.FFprobePath)

	charts := charter.NewService(provider, fetcher, preparer, ingest.NewSetlistParser(), settings.MaxParallelJobs)
	charts.SetJobTTL(settings.JobTTL())
	charts.SetKeepAudio(settings.KeepPreparedAudio)

	renderer := pdfgen.NewRenderer(settings.LogoPath)

	log.Printf("Drum charter v%s, provider %s, model %s", version, provider.Name(), provider.ModelID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return web.NewServer(charts, provider, renderer, settings).Run(ctx)
}
