package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/audio"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/charter"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/config"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/ingest"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/pdfgen"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/transcribe"
)

type stubFetcher struct {
	dir   string
	title string
}

func (f *stubFetcher) FetchAudio(ctx context.Context, url string, onProgress func(fraction float64)) (*ingest.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.CreateTemp(f.dir, "fetched-*.mp3")
	if err != nil {
		return nil, err
	}
	if _, err := file.WriteString("not really audio"); err != nil {
		file.Close()
		return nil, err
	}
	file.Close()
	return &ingest.FetchResult{Path: file.Name(), Title: f.title}, nil
}

type stubPreparer struct{}

func (p *stubPreparer) Prepare(ctx context.Context, inputPath string, onProgress func(fraction float64)) (*audio.PrepareResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &audio.PrepareResult{
		Path:        inputPath,
		MIMEType:    "audio/mp3",
		DurationSec: 184,
		FileSize:    16,
	}, nil
}

type stubParser struct {
	set *model.SongSet
}

func (p *stubParser) ParseSet(ctx context.Context, url string) (*model.SongSet, error) {
	if p.set == nil {
		return nil, fmt.Errorf("no playlist behind %s", url)
	}
	return p.set, nil
}

// newTestServer builds a server on top of a real charter service with stubbed
// fetch and prepare steps, so jobs run the full pipeline without networking.
func newTestServer(t *testing.T, provider transcribe.Provider, parser charter.SetParser) *Server {
	t.Helper()

	settings := config.DefaultSettings()
	settings.WorkDir = t.TempDir()

	fetcher := &stubFetcher{dir: t.TempDir(), title: "Fetched Song"}
	service := charter.NewService(provider, fetcher, &stubPreparer{}, parser, 2)

	return NewServer(service, provider, pdfgen.NewRenderer(""), settings)
}

func doRequest(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return doRequest(t, s, req)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// uploadAudio posts a multipart form with one audio file.
func uploadAudio(t *testing.T, s *Server, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return doRequest(t, s, req)
}

// waitForJobStatus polls the API until the job reaches want.
func waitForJobStatus(t *testing.T, s *Server, id string, want model.JobStatus) model.ChartJob {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, s, http.MethodGet, "/api/jobs/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET job returned %d: %s", rec.Code, rec.Body.String())
		}
		var job model.ChartJob
		decodeBody(t, rec, &job)
		if job.Status == want {
			return job
		}
		if job.Status.IsFinished() {
			t.Fatalf("Job finished as %s while waiting for %s (last error %q)", job.Status, want, job.LastError)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for job %s to reach %s", id, want)
	return model.ChartJob{}
}

// readyUploadJob submits an upload and waits until its chart is ready.
func readyUploadJob(t *testing.T, s *Server, filename string) model.ChartJob {
	t.Helper()

	rec := uploadAudio(t, s, filename, []byte("not really audio"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var job model.ChartJob
	decodeBody(t, rec, &job)
	return waitForJobStatus(t, s, job.ID, model.StatusReady)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", body["status"])
	}
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := doJSON(t, s, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ct)
	}

	html := rec.Body.String()
	if !strings.Contains(html, "AI Drum Charter") {
		t.Error("Expected page to carry the app title")
	}
	if !strings.Contains(html, "verify every section") {
		t.Error("Expected the accuracy disclaimer in the footer")
	}
	if strings.Contains(html, "{{") {
		t.Error("Expected template placeholders to be rendered")
	}
}

func TestCreateJobFromUpload(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := uploadAudio(t, s, "My_Song.mp3", []byte("not really audio"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var job model.ChartJob
	decodeBody(t, rec, &job)
	if job.ID == "" {
		t.Fatal("Expected job ID in response")
	}
	if job.Source != model.SourceUpload {
		t.Errorf("Expected source %s, got %s", model.SourceUpload, job.Source)
	}

	done := waitForJobStatus(t, s, job.ID, model.StatusReady)
	if done.Chart == nil || len(done.Chart.Sections) != 4 {
		t.Fatalf("Expected ready job with 4 sections, got %+v", done.Chart)
	}

	// The job list carries it, newest first
	listRec := doJSON(t, s, http.MethodGet, "/api/jobs", nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", listRec.Code)
	}
	var jobs []model.ChartJob
	decodeBody(t, listRec, &jobs)
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Errorf("Expected the job in the list, got %+v", jobs)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := uploadAudio(t, s, "notes.txt", []byte("just words, no audio"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("Expected 415, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope errorResponse
	decodeBody(t, rec, &envelope)
	if envelope.Error == "" {
		t.Error("Expected error envelope with a message")
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})
	s.settings.MaxUploadMB = 1

	rec := uploadAudio(t, s, "big.mp3", bytes.Repeat([]byte{0}, 1536*1024))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateJobMissingInput(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	// Multipart form with neither a file nor a url
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("unrelated", "field")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if rec := doRequest(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty multipart, got %d", rec.Code)
	}

	// Empty body with no content type at all
	req = httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
	if rec := doRequest(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty body, got %d", rec.Code)
	}

	// JSON with an empty url
	if rec := doJSON(t, s, http.MethodPost, "/api/jobs", createJobRequest{URL: "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank url, got %d", rec.Code)
	}
}

func TestCreateJobFromURL(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := doJSON(t, s, http.MethodPost, "/api/jobs", createJobRequest{URL: "https://youtube.com/watch?v=test1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var job model.ChartJob
	decodeBody(t, rec, &job)
	if job.Source != model.SourceYouTube {
		t.Errorf("Expected source %s, got %s", model.SourceYouTube, job.Source)
	}

	// Same video again while the first job is still around
	rec = doJSON(t, s, http.MethodPost, "/api/jobs", createJobRequest{URL: "https://youtube.com/watch?v=test1"})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate URL, got %d", rec.Code)
	}

	// Not a YouTube URL
	rec = doJSON(t, s, http.MethodPost, "/api/jobs", createJobRequest{URL: "https://example.com/song.mp3"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-YouTube URL, got %d", rec.Code)
	}

	// Plain form bodies work too
	form := url.Values{"url": {"https://youtube.com/watch?v=test2"}}
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rec := doRequest(t, s, req); rec.Code != http.StatusCreated {
		t.Errorf("Expected 201 for form url, got %d: %s", rec.Code, rec.Body.String())
	}

	waitForJobStatus(t, s, job.ID, model.StatusReady)

	listRec := doJSON(t, s, http.MethodGet, "/api/jobs", nil)
	var jobs []model.ChartJob
	decodeBody(t, listRec, &jobs)
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
	for _, j := range jobs {
		waitForJobStatus(t, s, j.ID, model.StatusReady)
	}
}

func TestCreateJobFromPlaylist(t *testing.T) {
	set := model.NewSongSet("https://youtube.com/playlist?list=PLgig")
	set.ID = "PLgig"
	set.Title = "Saturday Set"
	set.AddSong(&model.SetSong{
		VideoID: "vid1",
		Title:   "Opener",
		URL:     "https://youtube.com/watch?v=vid1",
		Status:  model.SongStatusPending,
	})
	set.AddSong(&model.SetSong{
		VideoID: "vid2",
		Title:   "Closer",
		URL:     "https://youtube.com/watch?v=vid2",
		Status:  model.SongStatusPending,
	})

	s := newTestServer(t, transcribe.NewFake(), &stubParser{set: set})

	rec := doJSON(t, s, http.MethodPost, "/api/jobs", createJobRequest{URL: set.URL})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created model.SongSet
	decodeBody(t, rec, &created)
	if created.ID != "PLgig" || len(created.Songs) != 2 {
		t.Fatalf("Expected the expanded set, got %+v", created)
	}

	for _, song := range created.Songs {
		if song.JobID == "" {
			t.Errorf("Expected song %s to have a job", song.VideoID)
			continue
		}
		waitForJobStatus(t, s, song.JobID, model.StatusReady)
	}

	listRec := doJSON(t, s, http.MethodGet, "/api/sets", nil)
	var sets []model.SongSet
	decodeBody(t, listRec, &sets)
	if len(sets) != 1 {
		t.Fatalf("Expected 1 set, got %d", len(sets))
	}

	getRec := doJSON(t, s, http.MethodGet, "/api/sets/PLgig", nil)
	if getRec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", getRec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/sets/unknown", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown set, got %d", rec.Code)
	}
}

func TestChartNotReadyConflict(t *testing.T) {
	provider := transcribe.NewFake()
	provider.Delay = 200 * time.Millisecond
	s := newTestServer(t, provider, &stubParser{})

	rec := uploadAudio(t, s, "slow.mp3", []byte("not really audio"))
	var job model.ChartJob
	decodeBody(t, rec, &job)

	for _, path := range []string{"/chart", "/pdf", "/preview"} {
		rec := doJSON(t, s, http.MethodGet, "/api/jobs/"+job.ID+path, nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected 409 from %s while charting, got %d", path, rec.Code)
			continue
		}
		var envelope errorResponse
		decodeBody(t, rec, &envelope)
		if !strings.Contains(envelope.Error, "not ready") {
			t.Errorf("Expected a not-ready message from %s, got %q", path, envelope.Error)
		}
	}

	waitForJobStatus(t, s, job.ID, model.StatusReady)
}

func TestGetChartPDFAndPreview(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})
	job := readyUploadJob(t, s, "My_Song.mp3")

	// Chart JSON
	rec := doJSON(t, s, http.MethodGet, "/api/jobs/"+job.ID+"/chart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var chart model.RoadMap
	decodeBody(t, rec, &chart)
	if chart.Title != "My Song" {
		t.Errorf("Expected chart title 'My Song', got %q", chart.Title)
	}
	if len(chart.Sections) != 4 {
		t.Errorf("Expected 4 sections, got %d", len(chart.Sections))
	}

	// PDF download
	rec = doJSON(t, s, http.MethodGet, "/api/jobs/"+job.ID+"/pdf", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Expected application/pdf, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `"My Song_chart.pdf"`) {
		t.Errorf("Expected download filename in disposition, got %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Error("Expected body to start with the PDF magic")
	}

	// HTML preview
	rec = doJSON(t, s, http.MethodGet, "/api/jobs/"+job.ID+"/preview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ct)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "<table>") || !strings.Contains(html, "My Song") {
		t.Error("Expected preview table with the chart title")
	}
	if !strings.Contains(html, "Rimshot on 2 &amp; 4") {
		t.Error("Expected notes text with the ampersand escaped")
	}
	if !strings.Contains(html, "4x") {
		t.Error("Expected formatted bar counts")
	}
}

func TestPutChart(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})
	job := readyUploadJob(t, s, "song.mp3")

	edited := model.RoadMap{
		Title: "Song (Live)",
		Sections: []model.Section{
			{Label: "Intro", Bars: 4, Feel: "Mallets on toms"},
			{Label: "Verse", Bars: 16, Feel: "Brushes", Notes: "Stay quiet"},
		},
	}
	rec := doJSON(t, s, http.MethodPut, "/api/jobs/"+job.ID+"/chart", edited)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated model.ChartJob
	decodeBody(t, rec, &updated)
	if updated.Chart == nil || updated.Chart.Title != "Song (Live)" {
		t.Errorf("Expected updated chart in response, got %+v", updated.Chart)
	}
	if updated.Chart.EditedAt.IsZero() {
		t.Error("Expected EditedAt to be stamped")
	}

	// The edit sticks
	rec = doJSON(t, s, http.MethodGet, "/api/jobs/"+job.ID+"/chart", nil)
	var chart model.RoadMap
	decodeBody(t, rec, &chart)
	if len(chart.Sections) != 2 || chart.Sections[1].Label != "Verse" {
		t.Errorf("Expected saved sections, got %+v", chart.Sections)
	}

	// Validation violations are rejected with 422
	bad := model.RoadMap{Title: "", Sections: []model.Section{{Label: "A", Bars: 1}}}
	if rec := doJSON(t, s, http.MethodPut, "/api/jobs/"+job.ID+"/chart", bad); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for invalid chart, got %d", rec.Code)
	}

	// Broken JSON is a plain bad request
	req := httptest.NewRequest(http.MethodPut, "/api/jobs/"+job.ID+"/chart", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	if rec := doRequest(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rec.Code)
	}

	// Unknown job
	if rec := doJSON(t, s, http.MethodPut, "/api/jobs/nope/chart", edited); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestPreviewSanitizesNotes(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})
	job := readyUploadJob(t, s, "song.mp3")

	edited := model.RoadMap{
		Title: "Song",
		Sections: []model.Section{
			{Label: "Bridge <b>", Bars: 8, Feel: "Half-time *feel*", Notes: "<script>alert(1)</script> hit **loud**"},
		},
	}
	if rec := doJSON(t, s, http.MethodPut, "/api/jobs/"+job.ID+"/chart", edited); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, s, http.MethodGet, "/api/jobs/"+job.ID+"/preview", nil)
	html := rec.Body.String()

	if strings.Contains(html, "<script>") {
		t.Error("Expected raw HTML in notes to be stripped")
	}
	if !strings.Contains(html, "<strong>loud</strong>") {
		t.Error("Expected markdown emphasis to render")
	}
	if !strings.Contains(html, "<em>feel</em>") {
		t.Error("Expected markdown in the feel cell to render")
	}
	if !strings.Contains(html, "Bridge &lt;b&gt;") {
		t.Error("Expected the label to be escaped, not rendered")
	}
}

func TestCancelJobEndpoint(t *testing.T) {
	provider := transcribe.NewFake()
	provider.Delay = 300 * time.Millisecond
	s := newTestServer(t, provider, &stubParser{})

	rec := uploadAudio(t, s, "song.mp3", []byte("not really audio"))
	var job model.ChartJob
	decodeBody(t, rec, &job)

	cancelRec := doJSON(t, s, http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil)
	if cancelRec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", cancelRec.Code, cancelRec.Body.String())
	}

	done := waitForJobStatus(t, s, job.ID, model.StatusCanceled)
	if done.Chart != nil {
		t.Error("Expected canceled job to have no chart")
	}

	// A settled job cannot be canceled again
	if rec := doJSON(t, s, http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for double cancel, got %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/jobs/nope/cancel", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestRemoveJobEndpoint(t *testing.T) {
	provider := transcribe.NewFake()
	provider.Delay = 200 * time.Millisecond
	s := newTestServer(t, provider, &stubParser{})

	rec := uploadAudio(t, s, "song.mp3", []byte("not really audio"))
	var job model.ChartJob
	decodeBody(t, rec, &job)

	// Still charting: removal is refused
	if rec := doJSON(t, s, http.MethodDelete, "/api/jobs/"+job.ID, nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 while active, got %d", rec.Code)
	}

	waitForJobStatus(t, s, job.ID, model.StatusReady)

	if rec := doJSON(t, s, http.MethodDelete, "/api/jobs/"+job.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/jobs/"+job.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after removal, got %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodDelete, "/api/jobs/"+job.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for double delete, got %d", rec.Code)
	}
}

func TestListModels(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := doJSON(t, s, http.MethodGet, "/api/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var models []transcribe.ModelInfo
	decodeBody(t, rec, &models)
	if len(models) != 1 || models[0].Name != "fake-drummer" {
		t.Errorf("Expected the fake model listing, got %+v", models)
	}
}

func TestUnknownJobEnvelope(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := doJSON(t, s, http.MethodGet, "/api/jobs/chart-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON error, got %q", ct)
	}

	var envelope errorResponse
	decodeBody(t, rec, &envelope)
	if envelope.Error != "job not found" {
		t.Errorf("Expected 'job not found', got %q", envelope.Error)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, transcribe.NewFake(), &stubParser{})

	rec := doJSON(t, s, http.MethodPatch, "/api/jobs/some-id", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	settings := config.DefaultSettings()
	settings.WorkDir = t.TempDir()
	settings.AllowedOrigins = []string{"https://charts.example.com"}

	provider := transcribe.NewFake()
	service := charter.NewService(provider, &stubFetcher{dir: t.TempDir()}, &stubPreparer{}, &stubParser{}, 2)
	s := NewServer(service, provider, pdfgen.NewRenderer(""), settings)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Origin", "https://charts.example.com")
	rec := doRequest(t, s, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://charts.example.com" {
		t.Errorf("Expected the allowed origin to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	rec = doRequest(t, s, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for a foreign origin, got %q", got)
	}
}
