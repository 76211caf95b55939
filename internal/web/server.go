package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/charter"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/config"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/pdfgen"
	"github.com/tomasvold/Drum-Cheat-Sheet/internal/transcribe"
)

// Server lifecycle timing
const (
	// shutdownTimeout is how long in-flight requests get to finish after a
	// shutdown signal
	shutdownTimeout = 10 * time.Second

	// janitorInterval is how often expired jobs are pruned
	janitorInterval = 15 * time.Minute

	// readHeaderTimeout bounds slow-header clients; the body itself gets no
	// read deadline because audio uploads on slow links are legitimate
	readHeaderTimeout = 10 * time.Second

	// idleTimeout closes keep-alive connections the poller abandoned
	idleTimeout = 2 * time.Minute

	// uploadFormSlack is extra room on top of the upload cap for multipart
	// boundaries and the other form fields
	uploadFormSlack = 1 << 20
)

//go:embed static/index.html
var staticFS embed.FS

// Server is the HTTP surface: the embedded editor page plus the JSON API the
// page talks to.
type Server struct {
	charts   charter.Charter
	provider transcribe.Provider
	renderer *pdfgen.Renderer
	settings *config.Settings

	handler http.Handler
	index   *template.Template
}

// NewServer wires the API routes and the editor page around the given
// services.
func NewServer(charts charter.Charter, provider transcribe.Provider, renderer *pdfgen.Renderer, settings *config.Settings) *Server {
	s := &Server{
		charts:   charts,
		provider: provider,
		renderer: renderer,
		settings: settings,
		index:    template.Must(template.ParseFS(staticFS, "static/index.html")),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wrapped handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.logRequests, s.recoverPanics, s.capBody)

	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.handleRemoveJob).Methods(http.MethodDelete)
	api.HandleFunc("/jobs/{id}/cancel", s.handleCancelJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}/chart", s.handleGetChart).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/chart", s.handlePutChart).Methods(http.MethodPut)
	api.HandleFunc("/jobs/{id}/pdf", s.handleJobPDF).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/preview", s.handleJobPreview).Methods(http.MethodGet)
	api.HandleFunc("/sets", s.handleListSets).Methods(http.MethodGet)
	api.HandleFunc("/sets/{id}", s.handleGetSet).Methods(http.MethodGet)
	api.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet)

	// The editor is same-origin; CORS is for scripted API use. An empty
	// origin list allows every origin.
	c := cors.New(cors.Options{
		AllowedOrigins: s.settings.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	})
	return c.Handler(router)
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully. A
// background janitor prunes expired jobs for as long as the server runs.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Listening on http://%s", listenHost(srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if removed := s.charts.PruneExpired(); removed > 0 {
					log.Printf("Pruned %d expired jobs", removed)
				}
			}
		}
	})

	return g.Wait()
}

// listenHost makes ":8787" readable as "localhost:8787" in the startup log.
func listenHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

// logRequests writes one access log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// recoverPanics turns a handler panic into a 500 instead of killing the
// connection.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// capBody bounds request bodies at the upload cap plus form overhead.
func (s *Server) capBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxUploadBytes()+uploadFormSlack)
		}
		next.ServeHTTP(w, r)
	})
}
