package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/charter"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/ingest"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// errorResponse is the envelope every failed API call answers with.
type errorResponse struct {
	Error string `json:"error"`
}

// createJobRequest is the JSON body for URL submissions.
type createJobRequest struct {
	URL string `json:"url"`
}

// indexData feeds the embedded editor template.
type indexData struct {
	Model       string
	MaxUploadMB int
	PollMillis  int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Model:       s.settings.Model,
		MaxUploadMB: s.settings.MaxUploadMB,
		PollMillis:  int(s.settings.PollInterval().Milliseconds()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, data); err != nil {
		log.Printf("Failed to render editor page: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateJob accepts either a multipart upload with an "audio" file or a
// JSON/form body with a "url" field. Playlist URLs fan out into a song set.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		s.createJobFromUpload(w, r)

	case strings.HasPrefix(contentType, "application/json"):
		var req createJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		s.createJobFromURL(w, r, req.URL)

	default:
		s.createJobFromURL(w, r, r.FormValue("url"))
	}
}

func (s *Server) createJobFromUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("audio")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Multipart forms may carry a URL instead of a file.
		if url := r.FormValue("url"); url != "" {
			s.createJobFromURL(w, r, url)
			return
		}
		writeError(w, http.StatusBadRequest, "send an audio file or a url")
		return

	case err != nil:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds %d MB", s.settings.MaxUploadMB)
			return
		}
		writeError(w, http.StatusBadRequest, "bad multipart form: %v", err)
		return
	}
	defer file.Close()

	path, err := ingest.SaveUpload(s.settings.WorkDir, header.Filename, file, s.settings.MaxUploadBytes())
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUploadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds %d MB", s.settings.MaxUploadMB)
		case errors.Is(err, ingest.ErrUnsupportedType):
			writeError(w, http.StatusUnsupportedMediaType, "%v", err)
		default:
			writeError(w, http.StatusInternalServerError, "save upload: %v", err)
		}
		return
	}

	job, err := s.charts.SubmitUpload(path, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "queue job: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) createJobFromURL(w http.ResponseWriter, r *http.Request, url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		writeError(w, http.StatusBadRequest, "send an audio file or a url")
		return
	}

	if ingest.IsPlaylistURL(url) {
		set, err := s.charts.SubmitSet(r.Context(), url)
		if err != nil {
			writeError(w, http.StatusBadGateway, "expand playlist: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, set)
		return
	}

	job, err := s.charts.SubmitURL(url)
	if err != nil {
		writeCharterError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.charts.GetAllJobs())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, exists := s.charts.GetJob(mux.Vars(r)["id"])
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.charts.CancelJob(id); err != nil {
		writeCharterError(w, err)
		return
	}

	job, exists := s.charts.GetJob(id)
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	if err := s.charts.RemoveJob(mux.Vars(r)["id"]); err != nil {
		writeCharterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	job, ok := s.readyJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.Chart)
}

func (s *Server) handlePutChart(w http.ResponseWriter, r *http.Request) {
	var chart model.RoadMap
	if err := json.NewDecoder(r.Body).Decode(&chart); err != nil {
		writeError(w, http.StatusBadRequest, "invalid chart JSON: %v", err)
		return
	}

	job, err := s.charts.UpdateChart(mux.Vars(r)["id"], &chart)
	if err != nil {
		writeCharterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobPDF(w http.ResponseWriter, r *http.Request) {
	job, ok := s.readyJob(w, r)
	if !ok {
		return
	}

	data, err := s.renderer.Render(job.Chart)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render pdf: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", model.PDFFileName(job.ChartTitle())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		log.Printf("Failed to send PDF for job %s: %v", job.ID, err)
	}
}

func (s *Server) handleJobPreview(w http.ResponseWriter, r *http.Request) {
	job, ok := s.readyJob(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.WriteString(w, renderPreview(job.Chart)); err != nil {
		log.Printf("Failed to send preview for job %s: %v", job.ID, err)
	}
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.charts.GetAllSets())
}

func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request) {
	set, exists := s.charts.GetSet(mux.Vars(r)["id"])
	if !exists {
		writeError(w, http.StatusNotFound, "set not found")
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.provider.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "list models: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// readyJob fetches the requested job and answers 404/409 itself when the job
// is missing or has no chart to serve yet.
func (s *Server) readyJob(w http.ResponseWriter, r *http.Request) (*model.ChartJob, bool) {
	job, exists := s.charts.GetJob(mux.Vars(r)["id"])
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	if job.Status != model.StatusReady || job.Chart == nil {
		writeError(w, http.StatusConflict, "chart not ready: job is %s", job.Status)
		return nil, false
	}
	return job, true
}

// writeCharterError maps the charter's sentinel errors onto HTTP statuses.
func writeCharterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, charter.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "%v", err)
	case errors.Is(err, charter.ErrNotYouTubeURL):
		writeError(w, http.StatusBadRequest, "%v", err)
	case errors.Is(err, charter.ErrInvalidChart):
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
	case errors.Is(err, charter.ErrJobNotReady),
		errors.Is(err, charter.ErrJobActive),
		errors.Is(err, charter.ErrJobNotActive),
		errors.Is(err, charter.ErrDuplicateJob):
		writeError(w, http.StatusConflict, "%v", err)
	default:
		writeError(w, http.StatusInternalServerError, "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}
