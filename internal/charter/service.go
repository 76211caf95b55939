package charter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/ingest"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/transcribe"
)

// Errors surfaced to API handlers, which map them onto HTTP status codes.
var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotReady   = errors.New("job has no chart yet")
	ErrJobActive     = errors.New("job is still active")
	ErrJobNotActive  = errors.New("job is not active")
	ErrDuplicateJob  = errors.New("job already exists for this URL")
	ErrNotYouTubeURL = errors.New("not a YouTube URL")
	ErrInvalidChart  = errors.New("invalid chart")
)

// Progress checkpoints. Each pipeline stage fills the band between the
// previous checkpoint and its own, so the bar never jumps backwards when a
// stage reports its local progress.
const (
	progressFetchEnd      = 0.35
	progressPrepareEnd    = 0.50
	progressUploadEnd     = 0.65
	progressProcessEnd    = 0.80
	progressTranscribeEnd = 0.95
)

// Stage labels shown next to the progress bar.
const (
	stageFetching     = "Fetching audio"
	stagePreparing    = "Preparing audio"
	stageUploading    = "Uploading audio to model"
	stageProcessing   = "Waiting for file processing"
	stageTranscribing = "Listening for the road map"
)

const (
	jobIDPrefix = "chart-"

	// DefaultJobTTL is how long finished jobs stick around before
	// PruneExpired is allowed to drop them.
	DefaultJobTTL = 24 * time.Hour
)

// Service runs chart jobs through the fetch, prepare, and transcribe stages
// with a bounded number of parallel workers. Jobs live in memory only.
type Service struct {
	jobs        map[string]*model.ChartJob
	sets        map[string]*model.SongSet
	cancels     map[string]context.CancelFunc
	jobsMutex   sync.RWMutex
	maxParallel int
	activeCount int

	provider transcribe.Provider
	fetcher  Fetcher
	preparer Preparer
	parser   SetParser

	jobTTL    time.Duration
	keepAudio bool
	onUpdate  func(*model.ChartJob) // callback for UI updates
}

// NewService creates a new charting service.
func NewService(provider transcribe.Provider, fetcher Fetcher, preparer Preparer, parser SetParser, maxParallel int) *Service {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Service{
		jobs:        make(map[string]*model.ChartJob),
		sets:        make(map[string]*model.SongSet),
		cancels:     make(map[string]context.CancelFunc),
		maxParallel: maxParallel,
		provider:    provider,
		fetcher:     fetcher,
		preparer:    preparer,
		parser:      parser,
		jobTTL:      DefaultJobTTL,
	}
}

// SetUpdateCallback sets the callback function for job updates
func (s *Service) SetUpdateCallback(callback func(*model.ChartJob)) {
	s.onUpdate = callback
}

// SetJobTTL overrides how long finished jobs are kept.
func (s *Service) SetJobTTL(ttl time.Duration) {
	if ttl > 0 {
		s.jobTTL = ttl
	}
}

// SetKeepAudio disables work file cleanup, leaving fetched and prepared
// audio on disk after jobs finish.
func (s *Service) SetKeepAudio(keep bool) {
	s.keepAudio = keep
}

// SetMaxParallel changes the worker limit. Raising it starts queued jobs
// immediately.
func (s *Service) SetMaxParallel(max int) {
	if max < 1 {
		max = 1
	}

	s.jobsMutex.Lock()
	s.maxParallel = max
	free := s.maxParallel - s.activeCount
	s.jobsMutex.Unlock()

	for i := 0; i < free; i++ {
		s.startNextPendingJob()
	}
}

// SubmitUpload queues a chart job for an uploaded audio file that has
// already been saved to disk. The file belongs to the service from here on
// and is removed once the job finishes.
func (s *Service) SubmitUpload(path, uploadName string) (*model.ChartJob, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	// Tagged uploads give us title and artist for free.
	title, artist := ingest.ReadTags(path)

	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job := &model.ChartJob{
		ID:         generateJobID(),
		Source:     model.SourceUpload,
		UploadName: uploadName,
		Title:      title,
		Artist:     artist,
		Status:     model.StatusPending,
		AudioPath:  path,
		WorkFiles:  []string{path},
		CreatedAt:  time.Now(),
	}
	s.jobs[job.ID] = job
	s.maybeStartLocked(job)

	return job.Clone(), nil
}

// SubmitURL queues a chart job for a YouTube video URL.
func (s *Service) SubmitURL(url string) (*model.ChartJob, error) {
	if !ingest.IsYouTubeURL(url) {
		return nil, fmt.Errorf("%w: %s", ErrNotYouTubeURL, url)
	}

	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, err := s.submitURLLocked(url, "")
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// submitURLLocked creates and maybe starts a URL job. Callers hold jobsMutex.
func (s *Service) submitURLLocked(url, setID string) (*model.ChartJob, error) {
	// Check for duplicate URLs
	for _, job := range s.jobs {
		if job.SourceURL == url && !job.Status.IsFinished() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, url)
		}
	}

	job := &model.ChartJob{
		ID:        generateJobID(),
		Source:    model.SourceYouTube,
		SourceURL: url,
		SetID:     setID,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	s.maybeStartLocked(job)

	return job, nil
}

// SubmitSet expands a playlist URL into a song set and queues one chart job
// per entry. Songs already charting elsewhere are skipped, not duplicated.
func (s *Service) SubmitSet(ctx context.Context, url string) (*model.SongSet, error) {
	set, err := s.parser.ParseSet(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("parse set: %w", err)
	}

	s.jobsMutex.Lock()
	s.sets[set.ID] = set

	for _, song := range set.Songs {
		job, err := s.submitURLLocked(song.URL, set.ID)
		if err != nil {
			log.Printf("Skipping set song %s: %v", song.VideoID, err)
			set.UpdateSongStatus(song.VideoID, model.SongStatusSkipped)
			continue
		}
		set.UpdateSongJob(song.VideoID, job.ID)
	}
	set.UpdateStatus(model.SetStatusTranscribing)
	snapshot := set.Clone()
	s.jobsMutex.Unlock()

	return snapshot, nil
}

// GetJob returns a snapshot of a job by ID. Snapshots keep callers from
// racing the pipeline goroutines that update the live job.
func (s *Service) GetJob(id string) (*model.ChartJob, bool) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()
	job, exists := s.jobs[id]
	if !exists {
		return nil, false
	}
	return job.Clone(), true
}

// GetAllJobs returns snapshots of all jobs, newest first.
func (s *Service) GetAllJobs() []*model.ChartJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]*model.ChartJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// GetSet returns a snapshot of a song set by ID
func (s *Service) GetSet(id string) (*model.SongSet, bool) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()
	set, exists := s.sets[id]
	if !exists {
		return nil, false
	}
	return set.Clone(), true
}

// GetAllSets returns snapshots of all song sets, newest first.
func (s *Service) GetAllSets() []*model.SongSet {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	sets := make([]*model.SongSet, 0, len(s.sets))
	for _, set := range s.sets {
		sets = append(sets, set.Clone())
	}
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].CreatedAt.After(sets[j].CreatedAt)
	})
	return sets
}

// CancelJob cancels a pending or running job.
func (s *Service) CancelJob(id string) error {
	s.jobsMutex.Lock()

	job, exists := s.jobs[id]
	if !exists {
		s.jobsMutex.Unlock()
		return ErrJobNotFound
	}

	switch {
	case job.Status == model.StatusPending:
		// Never started, so finish it on the spot.
		job.Status = model.StatusCanceled
		job.FinishedAt = time.Now()
		s.jobsMutex.Unlock()

		s.notifyUpdate(job)
		s.updateSetForJob(job)
		s.cleanupJobFiles(job)
		return nil

	case job.Status.IsActive():
		job.Status = model.StatusCanceling
		cancel := s.cancels[job.ID]
		s.jobsMutex.Unlock()

		// The job goroutine settles the final status.
		if cancel != nil {
			cancel()
		}
		s.notifyUpdate(job)
		return nil

	default:
		status := job.Status
		s.jobsMutex.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotActive, status)
	}
}

// RemoveJob drops a finished job and deletes its work files. Active and
// pending jobs must be canceled first.
func (s *Service) RemoveJob(id string) error {
	s.jobsMutex.Lock()

	job, exists := s.jobs[id]
	if !exists {
		s.jobsMutex.Unlock()
		return ErrJobNotFound
	}
	if !job.Status.IsFinished() {
		s.jobsMutex.Unlock()
		return ErrJobActive
	}
	delete(s.jobs, id)
	s.jobsMutex.Unlock()

	s.cleanupJobFiles(job)
	return nil
}

// UpdateChart replaces a ready job's road map with an edited one. Unlike
// model output, edits are validated strictly and rejected on any violation.
func (s *Service) UpdateChart(id string, chart *model.RoadMap) (*model.ChartJob, error) {
	if chart == nil {
		return nil, fmt.Errorf("%w: no chart supplied", ErrInvalidChart)
	}

	s.jobsMutex.Lock()

	job, exists := s.jobs[id]
	if !exists {
		s.jobsMutex.Unlock()
		return nil, ErrJobNotFound
	}
	if job.Status != model.StatusReady {
		s.jobsMutex.Unlock()
		return nil, fmt.Errorf("%w: status is %s", ErrJobNotReady, job.Status)
	}

	chart.Normalize()
	if err := chart.Validate(); err != nil {
		s.jobsMutex.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrInvalidChart, err)
	}

	chart.EditedAt = time.Now()
	job.Chart = chart
	snapshot := job.Clone()
	s.jobsMutex.Unlock()

	s.notifyUpdate(job)
	return snapshot, nil
}

// PruneExpired drops finished jobs older than the TTL, along with completed
// sets that have gone stale, and returns how many jobs were removed.
func (s *Service) PruneExpired() int {
	cutoff := time.Now().Add(-s.jobTTL)

	s.jobsMutex.Lock()
	var expired []*model.ChartJob
	for id, job := range s.jobs {
		if job.Status.IsFinished() && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	for id, set := range s.sets {
		if set.IsDone() && set.UpdatedAt.Before(cutoff) {
			delete(s.sets, id)
		}
	}
	s.jobsMutex.Unlock()

	for _, job := range expired {
		s.cleanupJobFiles(job)
	}
	return len(expired)
}

// maybeStartLocked reserves a worker slot for the job if one is free.
// Callers hold jobsMutex; the reservation is released by startJob.
func (s *Service) maybeStartLocked(job *model.ChartJob) {
	if s.activeCount >= s.maxParallel {
		return
	}
	s.activeCount++
	go s.startJob(job)
}

// startNextPendingJob starts the oldest pending job if we have capacity.
func (s *Service) startNextPendingJob() {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if s.activeCount >= s.maxParallel {
		return
	}

	// Find next pending job, oldest first
	var next *model.ChartJob
	for _, job := range s.jobs {
		if job.Status != model.StatusPending {
			continue
		}
		if next == nil || job.CreatedAt.Before(next.CreatedAt) {
			next = job
		}
	}
	if next != nil {
		s.activeCount++
		go s.startJob(next)
	}
}

// startJob runs one job through the pipeline. The caller has already
// reserved a worker slot; startJob releases it when done.
func (s *Service) startJob(job *model.ChartJob) {
	ctx, cancel := context.WithCancel(context.Background())

	defer func() {
		cancel()

		s.jobsMutex.Lock()
		delete(s.cancels, job.ID)
		s.activeCount--
		s.jobsMutex.Unlock()

		// Try to start next pending job
		s.startNextPendingJob()
	}()

	s.jobsMutex.Lock()
	if job.Status != model.StatusPending {
		// Canceled while waiting in the queue.
		s.jobsMutex.Unlock()
		return
	}
	s.cancels[job.ID] = cancel
	job.StartedAt = time.Now()
	if job.Source == model.SourceYouTube {
		job.Status = model.StatusFetching
		job.Stage = stageFetching
	} else {
		job.Status = model.StatusPreparing
		job.Stage = stagePreparing
	}
	s.jobsMutex.Unlock()

	s.notifyUpdate(job)
	s.updateSetForJob(job)

	err := s.runPipeline(ctx, job)

	// Settle the final status
	s.jobsMutex.Lock()
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil || job.Status == model.StatusCanceling {
			job.Status = model.StatusCanceled
		} else {
			job.Status = model.StatusError
			job.LastError = err.Error()
		}
	} else if job.Status == model.StatusCanceling {
		job.Status = model.StatusCanceled
	} else {
		job.Status = model.StatusReady
		job.Progress = 1.0
		job.Percent = 100
	}
	job.Stage = ""
	job.FinishedAt = time.Now()
	status := job.Status
	s.jobsMutex.Unlock()

	s.notifyUpdate(job)
	s.updateSetForJob(job)
	s.cleanupJobFiles(job)

	if status == model.StatusError {
		log.Printf("Job %s failed: %v", job.ID, err)
	}
}

// runPipeline advances the job through fetch, prepare, and transcribe,
// mapping each stage's local progress onto the job-wide bar.
func (s *Service) runPipeline(ctx context.Context, job *model.ChartJob) error {
	inputPath := job.AudioPath
	titleHint := job.UploadName

	// YouTube jobs fetch audio first; uploads already have a file on disk.
	if job.Source == model.SourceYouTube {
		fetched, err := s.fetcher.FetchAudio(ctx, job.SourceURL, func(fraction float64) {
			s.setProgress(job, stageSpan(0, progressFetchEnd, fraction))
		})
		if err != nil {
			return fmt.Errorf("fetch audio: %w", err)
		}

		inputPath = fetched.Path
		titleHint = fetched.Title

		s.jobsMutex.Lock()
		if job.Title == "" {
			job.Title = fetched.Title
		}
		job.WorkFiles = append(job.WorkFiles, fetched.Path)
		s.jobsMutex.Unlock()
	}

	s.setStage(job, model.StatusPreparing, stagePreparing, progressFetchEnd)

	prepared, err := s.preparer.Prepare(ctx, inputPath, func(fraction float64) {
		s.setProgress(job, stageSpan(progressFetchEnd, progressPrepareEnd, fraction))
	})
	if err != nil {
		return fmt.Errorf("prepare audio: %w", err)
	}

	s.jobsMutex.Lock()
	job.AudioPath = prepared.Path
	job.MIMEType = prepared.MIMEType
	job.FileSize = prepared.FileSize
	job.DurationSec = prepared.DurationSec
	if prepared.Transcoded {
		job.WorkFiles = append(job.WorkFiles, prepared.Path)
	}
	s.jobsMutex.Unlock()
	s.notifyUpdate(job)

	result, err := s.provider.Transcribe(ctx, transcribe.Input{
		AudioPath: prepared.Path,
		MIMEType:  prepared.MIMEType,
		TitleHint: titleHint,
	}, func(stage transcribe.Stage, fraction float64) {
		s.applyTranscribeStage(job, stage, fraction)
	})
	if result != nil && result.RawText != "" {
		// Keep whatever the model said, even when it did not decode.
		s.jobsMutex.Lock()
		job.RawOutput = result.RawText
		s.jobsMutex.Unlock()
	}
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	s.jobsMutex.Lock()
	chart := &model.RoadMap{
		Title:    job.ChartTitle(),
		Sections: result.Sections,
	}
	sanitizeChart(chart)
	job.Chart = chart
	job.ModelUsed = result.ModelUsed
	s.jobsMutex.Unlock()
	s.notifyUpdate(job)

	return nil
}

// applyTranscribeStage maps provider stages onto job status and progress.
func (s *Service) applyTranscribeStage(job *model.ChartJob, stage transcribe.Stage, fraction float64) {
	switch stage {
	case transcribe.StageUploading:
		s.setStage(job, model.StatusUploading, stageUploading, stageSpan(progressPrepareEnd, progressUploadEnd, fraction))
	case transcribe.StageProcessing:
		s.setStage(job, model.StatusProcessing, stageProcessing, stageSpan(progressUploadEnd, progressProcessEnd, fraction))
	case transcribe.StageGenerating:
		s.setStage(job, model.StatusTranscribing, stageTranscribing, stageSpan(progressProcessEnd, progressTranscribeEnd, fraction))
	}
}

// setStage moves the job to a new pipeline stage. Canceling and finished
// jobs keep their status; only the goroutine that owns the job settles it.
func (s *Service) setStage(job *model.ChartJob, status model.JobStatus, stage string, progress float64) {
	s.jobsMutex.Lock()
	if job.Status == model.StatusCanceling || job.Status.IsFinished() {
		s.jobsMutex.Unlock()
		return
	}
	job.Status = status
	job.Stage = stage
	applyProgress(job, progress)
	s.jobsMutex.Unlock()

	s.notifyUpdate(job)
}

// setProgress updates the bar without changing the stage.
func (s *Service) setProgress(job *model.ChartJob, progress float64) {
	s.jobsMutex.Lock()
	applyProgress(job, progress)
	s.jobsMutex.Unlock()

	s.notifyUpdate(job)
}

// applyProgress clamps and stores progress. The bar only moves forward.
func applyProgress(job *model.ChartJob, progress float64) {
	if progress > 1 {
		progress = 1
	}
	if progress <= job.Progress {
		return
	}
	job.Progress = progress
	job.Percent = int(progress * 100)
}

// stageSpan maps a stage-local fraction onto the [lo, hi] band of the
// job-wide progress bar.
func stageSpan(lo, hi, fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return lo + (hi-lo)*fraction
}

// updateSetForJob reflects a job's state back onto its owning set, if any.
func (s *Service) updateSetForJob(job *model.ChartJob) {
	if job.SetID == "" {
		return
	}

	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	set, exists := s.sets[job.SetID]
	if !exists {
		return
	}

	for _, song := range set.Songs {
		if song.JobID != job.ID {
			continue
		}
		switch job.Status {
		case model.StatusReady:
			set.UpdateSongStatus(song.VideoID, model.SongStatusCharted)
		case model.StatusError:
			set.UpdateSongError(song.VideoID, job.LastError)
		case model.StatusCanceled:
			set.UpdateSongStatus(song.VideoID, model.SongStatusSkipped)
		default:
			set.UpdateSongStatus(song.VideoID, model.SongStatusCharting)
		}
		break
	}

	if set.IsDone() {
		set.UpdateStatus(model.SetStatusCompleted)
	}
}

// cleanupJobFiles removes the job's temp audio once no stage needs it.
func (s *Service) cleanupJobFiles(job *model.ChartJob) {
	if s.keepAudio {
		return
	}

	s.jobsMutex.Lock()
	files := job.WorkFiles
	job.WorkFiles = nil
	job.AudioPath = ""
	s.jobsMutex.Unlock()

	for _, path := range files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove work file %s: %v", path, err)
		}
	}
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(job *model.ChartJob) {
	if s.onUpdate != nil {
		s.onUpdate(job)
	}
}

// sanitizeChart clamps raw model output into the shape Validate accepts.
// The model gets fixed up where a human editor would get an error message.
func sanitizeChart(chart *model.RoadMap) {
	chart.Normalize()

	chart.Title = clip(chart.Title, model.MaxTitleLen)
	if len(chart.Sections) > model.MaxSections {
		chart.Sections = chart.Sections[:model.MaxSections]
	}

	for i := range chart.Sections {
		sec := &chart.Sections[i]
		if sec.Label == "" {
			sec.Label = fmt.Sprintf("Part %d", i+1)
		}
		sec.Label = clip(sec.Label, model.MaxLabelLen)
		sec.Feel = clip(sec.Feel, model.MaxFeelLen)
		sec.Notes = clip(sec.Notes, model.MaxNotesLen)
		if sec.Bars > model.MaxBars {
			sec.Bars = model.MaxBars
		}
	}
}

// clip truncates s to at most max bytes without splitting a UTF-8 sequence.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// generateJobID generates a unique job ID
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to timestamp if UUID generation fails
		return fmt.Sprintf("%s%d", jobIDPrefix, time.Now().UnixNano())
	}
	return jobIDPrefix + id.String()
}
