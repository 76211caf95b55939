package charter

import (
	"context"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/audio"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/ingest"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// Charter defines the interface for the charting pipeline service. Getters
// hand out snapshots that are safe to serialize while jobs keep running.
type Charter interface {
	SetUpdateCallback(func(*model.ChartJob))
	SubmitUpload(path, uploadName string) (*model.ChartJob, error)
	SubmitURL(url string) (*model.ChartJob, error)
	SubmitSet(ctx context.Context, url string) (*model.SongSet, error)
	GetJob(id string) (*model.ChartJob, bool)
	GetAllJobs() []*model.ChartJob
	GetSet(id string) (*model.SongSet, bool)
	GetAllSets() []*model.SongSet
	CancelJob(id string) error
	RemoveJob(id string) error
	UpdateChart(id string, chart *model.RoadMap) (*model.ChartJob, error)
	PruneExpired() int

	// SetMaxParallel sets the maximum number of jobs charted at once
	SetMaxParallel(max int)
}

// Fetcher pulls audio for a video URL into the working directory.
type Fetcher interface {
	FetchAudio(ctx context.Context, url string, onProgress func(fraction float64)) (*ingest.FetchResult, error)
}

// Preparer turns whatever audio we were given into a file the model accepts.
type Preparer interface {
	Prepare(ctx context.Context, inputPath string, onProgress func(fraction float64)) (*audio.PrepareResult, error)
}

// SetParser expands a playlist URL into a song set.
type SetParser interface {
	ParseSet(ctx context.Context, url string) (*model.SongSet, error)
}
