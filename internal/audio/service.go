package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/ingest"
)

// FFmpeg constants for audio preparation
const (
	// Audio codec settings for the upload format
	AudioCodec   = "libmp3lame"
	AudioBitrate = "128k"

	// Executable and I/O constants
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="

	// Output naming
	PreparedPrefix     = "prepared-"
	OutputExtensionMP3 = ".mp3"

	// MIMETypeMP3 is the MIME type sent to the model provider
	MIMETypeMP3 = "audio/mp3"
)

// PrepareResult describes audio that is ready to upload.
type PrepareResult struct {
	Path        string  // file to upload
	MIMEType    string  // always MP3 after preparation
	DurationSec float64 // 0 if unknown
	FileSize    int64
	Transcoded  bool // false when the input was usable as-is
}

// Service converts arbitrary audio into the MP3 the provider is asked to
// listen to, and probes durations for progress math.
type Service struct {
	workDir       string
	ffmpegPath    string
	ffprobePath   string
	skipTranscode bool
}

// NewService creates an audio preparation service writing into workDir.
func NewService(workDir string) *Service {
	return &Service{
		workDir:     workDir,
		ffmpegPath:  FFmpegCommand,
		ffprobePath: FFprobeCommand,
	}
}

// SetFFmpegPath overrides where ffmpeg is found. Empty keeps the $PATH
// lookup.
func (s *Service) SetFFmpegPath(path string) {
	if path != "" {
		s.ffmpegPath = path
	}
}

// SetFFprobePath overrides where ffprobe is found. Empty keeps the $PATH
// lookup.
func (s *Service) SetFFprobePath(path string) {
	if path != "" {
		s.ffprobePath = path
	}
}

// SetSkipTranscode sends audio to the provider as-is instead of normalizing
// it to MP3. The provider accepts the common containers natively; skipping
// saves CPU at the cost of larger uploads.
func (s *Service) SetSkipTranscode(skip bool) {
	s.skipTranscode = skip
}

// Probe returns the duration of an audio file in seconds using ffprobe.
func (s *Service) Probe(path string) (float64, error) {
	cmd := exec.Command(s.ffprobePath, "-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// Prepare makes inputPath uploadable. MP3 input passes through untouched;
// everything else is transcoded to 128k MP3 with ffmpeg. onProgress may be
// nil; it receives 0.0 to 1.0 while transcoding.
func (s *Service) Prepare(ctx context.Context, inputPath string, onProgress func(fraction float64)) (*PrepareResult, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("input file does not exist: %s", inputPath)
	}

	isMP3 := strings.EqualFold(filepath.Ext(inputPath), OutputExtensionMP3)

	if s.skipTranscode && !isMP3 {
		duration, probeErr := s.Probe(inputPath)
		if probeErr != nil {
			log.Printf("Failed to probe %s: %v", filepath.Base(inputPath), probeErr)
			duration = 0
		}
		return &PrepareResult{
			Path:        inputPath,
			MIMEType:    uploadMIMEType(inputPath),
			DurationSec: duration,
			FileSize:    info.Size(),
		}, nil
	}

	// Without ffmpeg an MP3 can still be charted, just without a known
	// duration. Anything else genuinely needs the transcode.
	if _, lookErr := exec.LookPath(s.ffmpegPath); lookErr != nil {
		if !isMP3 {
			return nil, fmt.Errorf("%s not found, needed to convert %s to MP3", s.ffmpegPath, filepath.Ext(inputPath))
		}
		log.Printf("%s not found, uploading %s without probing", s.ffmpegPath, filepath.Base(inputPath))
		return &PrepareResult{
			Path:     inputPath,
			MIMEType: MIMETypeMP3,
			FileSize: info.Size(),
		}, nil
	}

	duration, err := s.Probe(inputPath)
	if err != nil {
		log.Printf("Failed to probe %s: %v", filepath.Base(inputPath), err)
		duration = 0
	}

	if isMP3 {
		return &PrepareResult{
			Path:        inputPath,
			MIMEType:    MIMETypeMP3,
			DurationSec: duration,
			FileSize:    info.Size(),
		}, nil
	}

	outputPath := s.generateOutputPath()
	if err := s.transcode(ctx, inputPath, outputPath, duration, onProgress); err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("transcoded file missing: %w", err)
	}

	return &PrepareResult{
		Path:        outputPath,
		MIMEType:    MIMETypeMP3,
		DurationSec: duration,
		FileSize:    outInfo.Size(),
		Transcoded:  true,
	}, nil
}

// transcode runs ffmpeg and feeds progress from its -progress output.
func (s *Service) transcode(ctx context.Context, inputPath, outputPath string, totalDuration float64, onProgress func(float64)) error {
	args := BuildFFmpegArgs(inputPath, outputPath)
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		monitorProgress(stderr, totalDuration, onProgress)
	}()

	err = cmd.Wait()
	<-done

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// uploadMIMEType maps an extension onto the MIME type sent with as-is
// uploads, falling back to MP3 when the container is unknown.
func uploadMIMEType(path string) string {
	if mime := ingest.MIMEForExt(path); mime != "" {
		return mime
	}
	return MIMETypeMP3
}

// BuildFFmpegArgs builds the ffmpeg command arguments for the MP3 transcode.
func BuildFFmpegArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",            // Overwrite output file
		"-i", inputPath, // Input file
		"-vn",              // Drop any video stream
		"-c:a", AudioCodec, // Audio codec
		"-b:a", AudioBitrate, // Audio bitrate
		"-progress", ProgressPipeTarget, // Progress to stderr
		"-nostats", // No stats output
		outputPath, // Output file
	}
}

// monitorProgress parses ffmpeg progress output lines: out_time_us=123456
func monitorProgress(stderr io.ReadCloser, totalDuration float64, onProgress func(float64)) {
	defer stderr.Close()
	scanner := bufio.NewScanner(stderr)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if !strings.HasPrefix(line, ProgressTimePrefix) {
			continue
		}
		timeStr := strings.TrimPrefix(line, ProgressTimePrefix)
		timeMicroseconds, err := strconv.ParseInt(timeStr, 10, 64)
		if err != nil {
			continue
		}

		timeSeconds := float64(timeMicroseconds) / 1000000.0

		if totalDuration > 0 && onProgress != nil {
			progress := timeSeconds / totalDuration
			if progress > 1.0 {
				progress = 1.0
			}
			onProgress(progress)
		}
	}
}

// generateOutputPath returns a unique MP3 path in the work directory using
// UUID v7 for time-ordered uniqueness.
func (s *Service) generateOutputPath() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to timestamp if UUID generation fails
		return filepath.Join(s.workDir, fmt.Sprintf("%s%d%s", PreparedPrefix, time.Now().UnixNano(), OutputExtensionMP3))
	}
	return filepath.Join(s.workDir, PreparedPrefix+id.String()+OutputExtensionMP3)
}
