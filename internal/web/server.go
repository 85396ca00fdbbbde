// Package web is the browser front end: a single-page form that submits
// one job at a time and polls its progress.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Relayn/video-downloader-uploader/internal/config"
	"github.com/Relayn/video-downloader-uploader/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Server carries the handler dependencies.
type Server struct {
	tracker *Tracker
	logger  zerolog.Logger
	envPath string

	mu       sync.Mutex
	settings config.Settings
}

// NewServer creates a Server. envPath is the .env file the settings page
// writes to; initial are the values it starts from.
func NewServer(tracker *Tracker, envPath string, initial config.Settings, logger zerolog.Logger) *Server {
	return &Server{
		tracker:  tracker,
		logger:   logger,
		envPath:  envPath,
		settings: initial,
	}
}

// Routes builds the chi router with the standard middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	r.Use(requestLogger(s.logger))

	r.Get("/", s.handleIndex)
	r.Post("/jobs", s.handleCreateJob)
	r.Get("/jobs/{id}", s.handleJobStatus)
	r.Get("/healthz", s.handleHealth)
	r.Get("/settings", s.handleSettingsForm)
	r.Post("/settings", s.handleSaveSettings)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type indexData struct {
	Providers []domain.Provider
	Qualities []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", indexData{
		Providers: []domain.Provider{
			domain.ProviderGoogleDrive,
			domain.ProviderYandexDisk,
			domain.ProviderS3,
			domain.ProviderLocal,
		},
		Qualities: domain.QualityPresets(),
	})
}

// handleCreateJob accepts the submitted form and starts the job. While a
// job is running the page keeps its submit button disabled; this endpoint
// is the server-side backstop for that rule.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.error(w, http.StatusBadRequest, "bad_request", "invalid form payload")
		return
	}

	req := domain.JobRequest{
		URL:      r.PostFormValue("url"),
		Provider: domain.Provider(r.PostFormValue("provider")),
		Folder:   r.PostFormValue("folder"),
		Filename: r.PostFormValue("filename"),
		Quality:  r.PostFormValue("quality"),
	}
	if err := req.Validate(); err != nil {
		s.error(w, http.StatusBadRequest, string(domain.CategoryOf(err)), err.Error())
		return
	}

	jobID, err := s.tracker.Start(req)
	if err != nil {
		s.error(w, http.StatusConflict, "job_in_flight", err.Error())
		return
	}
	s.json(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, ok := s.tracker.Get(id)
	if !ok {
		s.error(w, http.StatusNotFound, "not_found", "unknown job id")
		return
	}
	s.json(w, http.StatusOK, state)
}

type settingsData struct {
	Settings config.Settings
	Saved    bool
	Error    string
}

func (s *Server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	current := s.settings
	s.mu.Unlock()
	s.render(w, "settings.html", settingsData{Settings: current})
}

// handleSaveSettings writes the edited values back to the .env file. They
// take effect on the next start; the page says so.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.error(w, http.StatusBadRequest, "bad_request", "invalid form payload")
		return
	}

	edited := config.Settings{
		YandexToken:           r.PostFormValue("yandex_token"),
		GoogleCredentialsFile: r.PostFormValue("google_credentials"),
		GoogleTokenFile:       r.PostFormValue("google_token_file"),
		ProxyURL:              r.PostFormValue("proxy_url"),
		LocalSaveDir:          r.PostFormValue("local_save_dir"),
		LogLevel:              r.PostFormValue("log_level"),
		LogFile:               r.PostFormValue("log_file"),
	}

	if err := config.SaveSettings(s.envPath, edited); err != nil {
		s.logger.Error().Err(err).Str("path", s.envPath).Msg("could not save settings")
		s.render(w, "settings.html", settingsData{Settings: edited, Error: err.Error()})
		return
	}

	s.mu.Lock()
	s.settings = edited
	s.mu.Unlock()
	s.logger.Info().Str("path", s.envPath).Msg("settings saved")
	s.render(w, "settings.html", settingsData{Settings: edited, Saved: true})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("template render failed")
	}
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) error(w http.ResponseWriter, code int, category, msg string) {
	s.json(w, code, map[string]string{"error": category, "message": msg})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
