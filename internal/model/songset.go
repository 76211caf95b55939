package model

import (
	"time"
)

// SetStatus represents the current status of a song set
type SetStatus string

const (
	SetStatusParsing      SetStatus = "parsing"
	SetStatusReady        SetStatus = "ready"
	SetStatusTranscribing SetStatus = "transcribing"
	SetStatusCompleted    SetStatus = "completed"
	SetStatusError        SetStatus = "error"
)

// SongStatus represents the status of a single song in a set
type SongStatus string

const (
	SongStatusPending  SongStatus = "pending"
	SongStatusCharting SongStatus = "charting"
	SongStatusCharted  SongStatus = "charted"
	SongStatusError    SongStatus = "error"
	SongStatusSkipped  SongStatus = "skipped"
)

// SetSong represents a single song in a set
type SetSong struct {
	VideoID   string     `json:"video_id"`
	Title     string     `json:"title"`
	Duration  string     `json:"duration"`
	URL       string     `json:"url"`
	Status    SongStatus `json:"status"`
	JobID     string     `json:"job_id,omitempty"` // chart job handling this song
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SongSet represents a YouTube playlist queued for charting: one whole gig's
// worth of songs expanded into individual chart jobs
type SongSet struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Songs      []*SetSong `json:"songs"`
	Status     SetStatus  `json:"status"`
	TotalSongs int        `json:"total_songs"`
	Charted    int        `json:"charted"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewSongSet creates a new song set instance
func NewSongSet(url string) *SongSet {
	now := time.Now()
	return &SongSet{
		URL:       url,
		Status:    SetStatusParsing,
		Songs:     make([]*SetSong, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy that is safe to read while jobs keep updating
// the original
func (ss *SongSet) Clone() *SongSet {
	clone := *ss
	clone.Songs = make([]*SetSong, len(ss.Songs))
	for i, song := range ss.Songs {
		copied := *song
		clone.Songs[i] = &copied
	}
	return &clone
}

// AddSong adds a song to the set
func (ss *SongSet) AddSong(song *SetSong) {
	ss.Songs = append(ss.Songs, song)
	ss.TotalSongs = len(ss.Songs)
	ss.UpdatedAt = time.Now()
}

// UpdateStatus updates the set status
func (ss *SongSet) UpdateStatus(status SetStatus) {
	ss.Status = status
	ss.UpdatedAt = time.Now()
}

// UpdateSongStatus updates the status of a specific song
func (ss *SongSet) UpdateSongStatus(videoID string, status SongStatus) {
	for _, song := range ss.Songs {
		if song.VideoID == videoID {
			song.Status = status
			song.UpdatedAt = time.Now()
			break
		}
	}
	ss.recount()
}

// UpdateSongJob links a song to the chart job created for it
func (ss *SongSet) UpdateSongJob(videoID, jobID string) {
	for _, song := range ss.Songs {
		if song.VideoID == videoID {
			song.JobID = jobID
			song.UpdatedAt = time.Now()
			break
		}
	}
}

// UpdateSongError records a per-song failure
func (ss *SongSet) UpdateSongError(videoID, message string) {
	for _, song := range ss.Songs {
		if song.VideoID == videoID {
			song.Status = SongStatusError
			song.Error = message
			song.UpdatedAt = time.Now()
			break
		}
	}
	ss.recount()
}

func (ss *SongSet) recount() {
	charted := 0
	for _, song := range ss.Songs {
		if song.Status == SongStatusCharted {
			charted++
		}
	}
	ss.Charted = charted
	ss.UpdatedAt = time.Now()
}

// GetPendingSongs returns all songs with pending status
func (ss *SongSet) GetPendingSongs() []*SetSong {
	var pending []*SetSong
	for _, song := range ss.Songs {
		if song.Status == SongStatusPending {
			pending = append(pending, song)
		}
	}
	return pending
}

// GetChartedSongs returns all songs with a finished chart
func (ss *SongSet) GetChartedSongs() []*SetSong {
	var charted []*SetSong
	for _, song := range ss.Songs {
		if song.Status == SongStatusCharted {
			charted = append(charted, song)
		}
	}
	return charted
}

// GetChartProgress returns overall charting progress as percentage
func (ss *SongSet) GetChartProgress() float64 {
	if ss.TotalSongs == 0 {
		return 0
	}
	return float64(ss.Charted) / float64(ss.TotalSongs) * 100
}

// HasErrors checks if any song has errors
func (ss *SongSet) HasErrors() bool {
	for _, song := range ss.Songs {
		if song.Status == SongStatusError {
			return true
		}
	}
	return false
}

// IsDone checks whether every song reached a terminal state
func (ss *SongSet) IsDone() bool {
	if ss.TotalSongs == 0 {
		return false
	}
	for _, song := range ss.Songs {
		switch song.Status {
		case SongStatusCharted, SongStatusError, SongStatusSkipped:
		default:
			return false
		}
	}
	return true
}
