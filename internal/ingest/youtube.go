package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// YouTube URL markers
const (
	youtubeHost      = "youtube.com/"
	youtubeShortHost = "youtu.be/"
	playlistParam    = "list="
)

// Output template for fetched audio
const fetchOutputTemplate = "fetch-%(id)s.%(ext)s"

// IsYouTubeURL reports whether the string looks like a YouTube video or
// playlist link.
func IsYouTubeURL(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	return strings.Contains(url, youtubeHost) || strings.Contains(url, youtubeShortHost)
}

// IsPlaylistURL reports whether the URL addresses a whole playlist.
func IsPlaylistURL(url string) bool {
	return IsYouTubeURL(url) && strings.Contains(url, playlistParam)
}

// FetchResult is the audio extracted from a remote video.
type FetchResult struct {
	Path  string // local MP3 path
	Title string // video title, may be empty
}

// Fetcher pulls audio tracks out of YouTube videos with yt-dlp.
type Fetcher struct {
	workDir string
}

// NewFetcher creates a fetcher writing into workDir.
func NewFetcher(workDir string) *Fetcher {
	return &Fetcher{workDir: workDir}
}

// FetchAudio downloads the audio stream of a single video and extracts it to
// MP3. onProgress may be nil; it receives 0.0 to 1.0 while downloading.
func (f *Fetcher) FetchAudio(ctx context.Context, url string, onProgress func(fraction float64)) (*FetchResult, error) {
	if !IsYouTubeURL(url) {
		return nil, fmt.Errorf("not a YouTube URL: %s", url)
	}

	dl := ytdlp.New().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("mp3").
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(f.workDir, fetchOutputTemplate))

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		if onProgress != nil && update.TotalBytes > 0 {
			onProgress(float64(update.DownloadedBytes) / float64(update.TotalBytes))
		}
	})

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}

	info, err := result.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("extract media info: %w", err)
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("no media info extracted for %s", url)
	}

	fetched := &FetchResult{}
	if info[0].Title != nil {
		fetched.Title = *info[0].Title
	}

	var reported string
	if info[0].Filename != nil {
		reported = *info[0].Filename
	}
	fetched.Path = resolveAudioPath(reported)
	if fetched.Path == "" {
		return nil, fmt.Errorf("downloaded audio not found for %s", url)
	}

	return fetched, nil
}

// resolveAudioPath locates the post-processed MP3. yt-dlp reports the
// pre-extraction filename, so the same name with an .mp3 extension is
// checked first.
func resolveAudioPath(reported string) string {
	if reported == "" {
		return ""
	}

	ext := filepath.Ext(reported)
	asMP3 := strings.TrimSuffix(reported, ext) + ".mp3"
	if _, err := os.Stat(asMP3); err == nil {
		return asMP3
	}
	if _, err := os.Stat(reported); err == nil {
		return reported
	}
	return ""
}
