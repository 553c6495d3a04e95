package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"days/internal/config"
	appLog "days/internal/log"
	"days/internal/model"
	"days/internal/query"
	"days/internal/store"
	"days/internal/widget"
)

// maxBodySize bounds JSON and ICS request bodies.
const maxBodySize = 1 << 20

// Server exposes the event store over a small JSON API, plus the live
// widget tile and its last PNG capture.
type Server struct {
	cfg   *config.Config
	store *store.Store
	query *query.Service
	clock clockwork.Clock
	loc   *time.Location
	mux   *http.ServeMux
}

// NewServer wires handlers around an already opened store. q decides how
// records are placed in time (verbatim or recurring).
func NewServer(cfg *config.Config, st *store.Store, q *query.Service) *Server {
	if q == nil {
		q = query.New(nil)
	}
	s := &Server{
		cfg:   cfg,
		store: st,
		query: q,
		clock: st.Clock(),
		loc:   resolveLocationOrLocal(cfg.Timezone),
		mux:   http.NewServeMux(),
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

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
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
			w.Header().Set("WWW-Authenticate", `Basic realm="days", charset="UTF-8"`)
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

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
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
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("stopping HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /api/events/next", s.handleNextEvent)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.HandleFunc("PATCH /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)

	s.mux.HandleFunc("GET /api/events.ics", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)

	s.mux.HandleFunc("GET /widget", s.handleWidget)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// handleWidget renders the tile live through the same task the host runs.
// ?dark=1 or ?dark=0 overrides the configured theme.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	dark := s.cfg.Widget.Dark()
	if v := r.URL.Query().Get("dark"); v != "" {
		dark = v == "1" || v == "true"
	}

	task := widget.Task{
		Open: func(context.Context) (widget.Loader, io.Closer, error) {
			return s.store, nil, nil
		},
		Query:    s.query,
		Clock:    s.clock,
		Location: s.loc,
		Dark:     dark,
	}
	props := task.Handle(r.Context(), widget.Update)

	tile := widget.Tile{Width: s.cfg.Widget.Width, Height: s.cfg.Widget.Height}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tile.Write(w, props); err != nil {
		appLog.Error("widget tile write failed", err)
	}
}

// handlePreview serves the last PNG written by the widget refresh.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, filepath.Join(s.cfg.Widget.OutputDir, widget.PNGFile))
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error  string             `json:"error"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeStoreError maps the store's error kinds onto status codes.
func writeStoreError(w http.ResponseWriter, op string, err error) {
	switch store.KindOf(err) {
	case store.KindValidation:
		var verr *model.ValidationError
		errors.As(err, &verr)
		writeJSON(w, http.StatusBadRequest, errResp{Error: "validation failed", Fields: verr.Fields})
	case store.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case store.KindIO:
		appLog.Error("api: storage unavailable", err, "op", op)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		appLog.Error("api: request failed", err, "op", op)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
