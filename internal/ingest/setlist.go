package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	ytget "github.com/ytget/ytdlp/v2"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// Timeout constants
const (
	DefaultParseTimeout = 60 * time.Second
)

// URL parameter separators
const (
	paramSeparator = "&"
)

// Default values
const (
	DefaultDuration = "Unknown"
	DefaultSetName  = "Unknown Set"
)

// URL templates
const (
	youtubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Set title constants
const (
	minPrefixLength = 10
	setTitleSuffix  = " Set"
)

// SetlistParser expands a YouTube playlist into a song set, one entry per
// video, so a whole gig can be charted in one submit.
type SetlistParser struct {
	timeout time.Duration
}

// NewSetlistParser creates a new setlist parser
func NewSetlistParser() *SetlistParser {
	return &SetlistParser{
		timeout: DefaultParseTimeout,
	}
}

// SetTimeout sets the timeout for parsing operations
func (p *SetlistParser) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// ParseSet lists a YouTube playlist and returns it as a song set ready for
// charting.
func (p *SetlistParser) ParseSet(ctx context.Context, url string) (*model.SongSet, error) {
	if !IsPlaylistURL(url) {
		return nil, fmt.Errorf("invalid playlist URL: %s", url)
	}

	setID := extractPlaylistID(url)
	if setID == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", url)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	d := ytget.New()
	items, err := d.GetPlaylistItemsAll(ctx, setID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %v", err)
	}

	now := time.Now()
	songs := make([]*model.SetSong, 0, len(items))
	for _, it := range items {
		songs = append(songs, &model.SetSong{
			VideoID:   it.VideoID,
			Title:     it.Title,
			Duration:  DefaultDuration,
			URL:       fmt.Sprintf(youtubeVideoURLTemplate, it.VideoID),
			Status:    model.SongStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	set := &model.SongSet{
		ID:         setID,
		Title:      extractSetTitle(songs),
		URL:        url,
		Songs:      songs,
		Status:     model.SetStatusReady,
		TotalSongs: len(songs),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return set, nil
}

// extractPlaylistID extracts the playlist ID from various URL formats
func extractPlaylistID(url string) string {
	if !strings.Contains(url, playlistParam) {
		return ""
	}
	parts := strings.Split(url, playlistParam)
	if len(parts) < 2 {
		return ""
	}
	id := parts[1]
	if strings.Contains(id, paramSeparator) {
		id = strings.Split(id, paramSeparator)[0]
	}
	return id
}

// extractSetTitle generates a title for the set based on its songs
func extractSetTitle(songs []*model.SetSong) string {
	if len(songs) == 0 {
		return DefaultSetName
	}
	if len(songs) > 1 {
		commonPrefix := findCommonPrefix(songs[0].Title, songs[1].Title)
		if len(commonPrefix) > minPrefixLength {
			return strings.TrimSpace(commonPrefix) + setTitleSuffix
		}
	}
	return songs[0].Title + setTitleSuffix
}

// findCommonPrefix finds the common prefix between two strings
func findCommonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
