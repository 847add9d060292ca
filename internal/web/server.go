// Package web provides the HTTP status page and config form for the
// lamp-control daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/lamp-control/internal/config"
	"github.com/sweeney/lamp-control/internal/status"
	"github.com/sweeney/lamp-control/internal/store"
)

// recentEventLimit is how many ledger entries the status page shows.
const recentEventLimit = 20

// EventSource supplies recent switch events for the status page.
// *store.Store implements it; nil disables the history section.
type EventSource interface {
	Recent(limit int) ([]store.Entry, error)
}

// Server serves the status page, JSON endpoint, and config form over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	events     EventSource

	cfg     *config.Config
	cfgPath string
	restart func(reason string)
}

// New creates a Server that reads state from the given tracker. The restart
// callback is invoked after a successful config save; the daemon is expected
// to exit cleanly so its supervisor restarts it with the new settings.
func New(addr string, tracker *status.Tracker, events EventSource, cfg *config.Config, cfgPath string, restart func(reason string)) *Server {
	s := &Server{
		tracker: tracker,
		events:  events,
		cfg:     cfg,
		cfgPath: cfgPath,
		restart: restart,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/config", s.handleConfig)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()

	var recent []store.Entry
	if s.events != nil {
		entries, err := s.events.Recent(recentEventLimit)
		if err != nil {
			log.Warn().Err(err).Msg("load recent switch events")
		} else {
			recent = entries
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderIndex(w, snap, recent)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderConfig(w, s.cfg, "")

	case http.MethodPost:
		s.handleConfigSave(w, r)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleConfigSave validates the submitted settings, persists them, and asks
// the daemon to restart. The running controller keeps its old settings until
// then; applying them mid-stream would race the poll loop.
func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	settings, err := parseSettings(r.PostForm.Get("dark_threshold"), r.PostForm.Get("stable_ticks"))
	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		renderConfig(w, s.cfg, err.Error())
		return
	}

	updated := *s.cfg
	updated.Settings = settings
	if err := updated.Save(s.cfgPath); err != nil {
		log.Error().Err(err).Str("path", s.cfgPath).Msg("save config")
		http.Error(w, "failed to save configuration", http.StatusInternalServerError)
		return
	}

	log.Info().
		Int("dark_threshold", settings.DarkThreshold).
		Int("stable_ticks", settings.StableTicks).
		Msg("configuration saved, restart pending")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderSaved(w, settings)

	if s.restart != nil {
		s.restart("CONFIG_SAVED")
	}
}

func parseSettings(darkThreshold, stableTicks string) (config.Settings, error) {
	var s config.Settings
	var err error

	if s.DarkThreshold, err = strconv.Atoi(darkThreshold); err != nil {
		return s, err
	}
	if s.StableTicks, err = strconv.Atoi(stableTicks); err != nil {
		return s, err
	}
	return s, config.ValidateSettings(s)
}
