package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind tells where a job's audio came from
type SourceKind string

const (
	// SourceUpload means the audio arrived as a browser file upload
	SourceUpload SourceKind = "upload"

	// SourceYouTube means the audio was extracted from a YouTube URL
	SourceYouTube SourceKind = "youtube"
)

// ChartJob represents a single transcription job: one audio source on its
// way to becoming an editable road map
type ChartJob struct {
	ID         string     `json:"id"`
	Source     SourceKind `json:"source"`
	SourceURL  string     `json:"source_url,omitempty"` // original URL for youtube jobs
	UploadName string     `json:"upload_name,omitempty"`
	Title      string     `json:"title,omitempty"`  // song title, from tags or the model
	Artist     string     `json:"artist,omitempty"` // artist, from tags if present
	SetID      string     `json:"set_id,omitempty"` // owning song set, if any

	Status    JobStatus `json:"status"`
	Stage     string    `json:"stage,omitempty"` // human readable current step
	Progress  float64   `json:"progress"`        // 0.0 to 1.0
	Percent   int       `json:"percent"`         // 0 to 100
	LastError string    `json:"last_error,omitempty"`

	AudioPath   string   `json:"-"` // prepared audio on disk, not exposed
	WorkFiles   []string `json:"-"` // temp files to delete once the job is finished
	MIMEType    string   `json:"mime_type,omitempty"`
	FileSize    int64    `json:"file_size,omitempty"` // prepared audio size in bytes
	DurationSec float64  `json:"duration_sec,omitempty"`

	Chart     *RoadMap `json:"chart,omitempty"`
	RawOutput string   `json:"-"` // verbatim model text, kept for debugging
	ModelUsed string   `json:"model_used,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Clone returns a copy that is safe to read while the pipeline keeps
// mutating the original. The chart pointer is shared; charts are replaced
// wholesale, never edited in place
func (j *ChartJob) Clone() *ChartJob {
	clone := *j
	clone.WorkFiles = append([]string(nil), j.WorkFiles...)
	return &clone
}

// GetDurationString returns the audio duration formatted as hh:mm:ss, or "—"
// if unknown
func (j *ChartJob) GetDurationString() string {
	total := int(j.DurationSec)
	if total <= 0 {
		return "—"
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetDisplayTitle returns artist+title, title, upload filename, or URL in
// order of preference
func (j *ChartJob) GetDisplayTitle() string {
	// First priority: tagged or model-provided title
	if j.Title != "" {
		if j.Artist != "" {
			return j.Artist + " - " + j.Title
		}
		return j.Title
	}

	// Second priority: uploaded filename without extension
	if j.UploadName != "" {
		name := j.UploadName
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
		return name
	}

	// Fallback: source URL
	return j.SourceURL
}

// ChartTitle returns the title the exported PDF should carry: the edited
// chart title when a chart exists, the display title otherwise
func (j *ChartJob) ChartTitle() string {
	if j.Chart != nil && j.Chart.Title != "" {
		return j.Chart.Title
	}
	title := CleanSongTitle(j.GetDisplayTitle())
	if title == "" {
		title = "Untitled Song"
	}
	return title
}
