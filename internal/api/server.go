// Package api exposes the bridge's status surface over HTTP: current
// dashboard state, transmit journal queries, and a forced-resync trigger.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/busdash/komsi-bridge/internal/bridge"
	"github.com/busdash/komsi-bridge/internal/db"
	"github.com/busdash/komsi-bridge/internal/komsi"
)

// Bridger is the part of the bridge the API reads and pokes.
type Bridger interface {
	State() *komsi.VehicleState
	Stats() bridge.Stats
	ForceResync()
}

// Journal is the query side of the transmit journal.
type Journal interface {
	RecentFrames(limit int) ([]db.FrameRecord, error)
	FieldHistory(field string, limit int) ([]db.ChangeRecord, error)
}

// Server serves the status API.
type Server struct {
	bridge  Bridger
	journal Journal
	log     zerolog.Logger
}

// NewServer creates a status API server. journal may be nil when journaling
// is disabled; the journal endpoints then report 404.
func NewServer(bridge Bridger, journal Journal, log zerolog.Logger) *Server {
	return &Server{bridge: bridge, journal: journal, log: log}
}

// Handler returns the routed HTTP handler with request logging attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/resync", s.handleResync)
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/changes", s.handleChanges)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.logRequests(mux)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": s.bridge.State(),
		"stats": s.bridge.Stats(),
	})
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.bridge.ForceResync()
	s.log.Info().Msg("resync requested via API")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "resync scheduled"})
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}
	frames, err := s.journal.RecentFrames(queryLimit(r))
	if err != nil {
		s.log.Error().Err(err).Msg("journal query failed")
		http.Error(w, "Journal query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frames": frames})
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}
	field := r.URL.Query().Get("field")
	if _, ok := komsi.FieldByName(field); !ok {
		http.Error(w, "Unknown field", http.StatusBadRequest)
		return
	}
	changes, err := s.journal.FieldHistory(field, queryLimit(r))
	if err != nil {
		s.log.Error().Err(err).Msg("journal query failed")
		http.Error(w, "Journal query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": field, "changes": changes})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// loggingResponseWriter captures the status code for request logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", lrw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
