package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"roomstatus/internal/config"
	appLog "roomstatus/internal/log"
	"roomstatus/internal/render"
	"roomstatus/internal/status"
)

const shutdownTimeout = 5 * time.Second

// Engine is the part of the status engine the HTTP layer needs.
type Engine interface {
	Snapshot() status.Snapshot
	Poll(ctx context.Context) error
}

// Server serves the status page, its JSON form and the last captured
// preview image.
type Server struct {
	cfg         *config.Config
	engine      Engine
	previewPath string
	mux         *http.ServeMux
	page        *template.Template
}

//go:embed templates/status.html
var templatesFS embed.FS

var statusPage = template.Must(template.ParseFS(templatesFS, "templates/status.html"))

// pageData is the template input of the status page.
type pageData struct {
	View           render.View
	RefreshSeconds int
	EmptyMessage   string
}

// NewServer constructs a new Server. previewPath is the PNG written by the
// snapshot command.
func NewServer(cfg *config.Config, engine Engine, previewPath string) *Server {
	s := &Server{
		cfg:         cfg,
		engine:      engine,
		previewPath: previewPath,
		mux:         http.NewServeMux(),
		page:        statusPage,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password leaves auth disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="RoomStatus", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /{$}", s.handlePage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) view() render.View {
	return render.Build(s.engine.Snapshot(), s.cfg.CreateEventURL)
}

// handlePage renders the status page. The root element carries
// data-ready="true" once the first poll has finished, which the snapshot
// command waits for.
func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	data := pageData{
		View:           s.view(),
		RefreshSeconds: s.cfg.PageRefreshSeconds,
		EmptyMessage:   render.EmptyMessage,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.page.Execute(w, data); err != nil {
		appLog.Error("status page render failed", err)
	}
}

// handleStatus returns the current display state as JSON.
//
// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, s.view())
}

// handleRefresh runs an immediate poll and returns the resulting state.
// A poll that is already in flight is reported as 409 Conflict; a failed
// fetch still returns the (unchanged) state with 502.
//
// POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Poll(r.Context())
	switch {
	case errors.Is(err, status.ErrPollInFlight):
		writeError(w, http.StatusConflict, "poll already in flight")
	case err != nil:
		writeJSON(w, http.StatusBadGateway, s.view())
	default:
		writeJSON(w, http.StatusOK, s.view())
	}
}

// handlePreview serves the last PNG captured by the snapshot command.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewPath == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, s.previewPath)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, code, errResp{Error: msg})
}
