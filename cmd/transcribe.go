package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/audio"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/config"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/ingest"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/pdfgen"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/transcribe"
)

// Output formats for the one-shot transcription
const (
	formatPDF  = "pdf"
	formatJSON = "json"
)

var (
	transcribeInput   string
	transcribeURL     string
	transcribeOutput  string
	transcribeFormat  string
	transcribeOffline bool
)

func init() {
	transcribeCmd.Flags().StringVarP(&transcribeInput, "input", "i", "", "local audio file to chart")
	transcribeCmd.Flags().StringVarP(&transcribeURL, "url", "u", "", "YouTube URL to chart")
	transcribeCmd.Flags().StringVarP(&transcribeOutput, "output", "o", "", `output file, "-" for stdout (default: derived from the title)`)
	transcribeCmd.Flags().StringVarP(&transcribeFormat, "format", "f", formatPDF, "output format: pdf or json")
	transcribeCmd.Flags().BoolVar(&transcribeOffline, "offline", false, "use the canned offline provider instead of Gemini")
	rootCmd.AddCommand(transcribeCmd)
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Chart one song without the web app",
	Long: `Transcribe a single song from a local file or a YouTube URL and
write the chart as a PDF or as JSON. Progress goes to stderr, so
"-o -" composes with pipes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscribe()
	},
}

func runTranscribe() error {
	if (transcribeInput == "") == (transcribeURL == "") {
		return fmt.Errorf("exactly one of --input or --url is required")
	}
	if transcribeFormat != formatPDF && transcribeFormat != formatJSON {
		return fmt.Errorf("unknown format %q, want %s or %s", transcribeFormat, formatPDF, formatJSON)
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := settings.EnsureWorkDir(); err != nil {
		return err
	}

	provider, err := buildProvider(settings, transcribeOffline)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Work files are cleaned up like the web pipeline does, unless the
	// config says to keep prepared audio around.
	var workFiles []string
	defer func() {
		if settings.KeepPreparedAudio {
			return
		}
		for _, path := range workFiles {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				stderrf("Failed to remove %s: %v", path, err)
			}
		}
	}()

	job := &model.ChartJob{Source: model.SourceUpload}

	inputPath := transcribeInput
	if transcribeURL != "" {
		stderrf("Fetching audio from %s", transcribeURL)
		fetched, err := ingest.NewFetcher(settings.WorkDir).FetchAudio(ctx, transcribeURL, nil)
		if err != nil {
			return fmt.Errorf("fetch audio: %w", err)
		}
		inputPath = fetched.Path
		workFiles = append(workFiles, fetched.Path)

		job.Source = model.SourceYouTube
		job.SourceURL = transcribeURL
		job.Title = fetched.Title
	} else {
		job.UploadName = filepath.Base(inputPath)
		job.Title, job.Artist = ingest.ReadTags(inputPath)
	}

	preparer := audio.NewService(settings.WorkDir)
	preparer.SetSkipTranscode(settings.SkipAudioTranscode)
	preparer.SetFFmpegPath(settings.FFmpegPath)
	preparer.SetFFprobePath(settings.FFprobePath)

	stderrf("Preparing %s", filepath.Base(inputPath))
	prepared, err := preparer.Prepare(ctx, inputPath, nil)
	if err != nil {
		return fmt.Errorf("prepare audio: %w", err)
	}
	if prepared.Transcoded {
		workFiles = append(workFiles, prepared.Path)
	}

	var lastStage transcribe.Stage
	result, err := provider.Transcribe(ctx, transcribe.Input{
		AudioPath: prepared.Path,
		MIMEType:  prepared.MIMEType,
		TitleHint: job.GetDisplayTitle(),
	}, func(stage transcribe.Stage, fraction float64) {
		if stage == lastStage {
			return
		}
		lastStage = stage
		switch stage {
		case transcribe.StageUploading:
			stderrf("Uploading audio to %s", provider.Name())
		case transcribe.StageProcessing:
			stderrf("Waiting for file processing")
		case transcribe.StageGenerating:
			stderrf("Listening for the road map")
		}
	})
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	chart := &model.RoadMap{
		Title:    job.ChartTitle(),
		Sections: result.Sections,
		EditedAt: time.Now(),
	}
	chart.Normalize()

	stderrf("Charted %d sections, %d bars total", len(chart.Sections), chart.TotalBars())
	return writeChart(chart, settings)
}

// writeChart renders the chart in the requested format and writes it to the
// output flag's destination, defaulting to a file named after the title.
func writeChart(chart *model.RoadMap, settings *config.Settings) error {
	var data []byte
	var err error

	switch transcribeFormat {
	case formatJSON:
		data, err = json.MarshalIndent(chart, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		data, err = pdfgen.NewRenderer(settings.LogoPath).Render(chart)
	}
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	if transcribeOutput == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}

	path := transcribeOutput
	if path == "" {
		path = model.PDFFileName(chart.Title)
		if transcribeFormat == formatJSON {
			path = strings.TrimSuffix(path, ".pdf") + ".json"
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	stderrf("Wrote %s", path)
	return nil
}

// stderrf prints one progress line to stderr, keeping stdout free for chart
// output.
func stderrf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
