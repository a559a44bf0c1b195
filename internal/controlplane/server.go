package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/session"
	"github.com/fentz26/orange/internal/telemetry"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK        bool                `json:"ok"`
	DB        string              `json:"db"`
	Version   string              `json:"version"`
	Time      string              `json:"time"`
	State     models.SessionState `json:"state"`
	Telemetry *telemetry.Stats    `json:"telemetry,omitempty"`
}

// SessionDetail is a persisted session with its action runs and the
// telemetry events recorded for it.
type SessionDetail struct {
	Session   models.SessionRecord    `json:"session"`
	Runs      []models.ActionRun      `json:"runs"`
	Telemetry []models.TelemetryEvent `json:"telemetry"`
}

// ErrorResponse is the body of every non-2xx reply. Session is set when
// the failing call still moved the session.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Session *session.Snapshot `json:"session,omitempty"`
}

// Server provides the HTTP API for orange.
type Server struct {
	service *Service
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string) *Server {
	return &Server{
		service: service,
		addr:    addr,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/session/", s.handleSessionAction)
	mux.HandleFunc("/decisions", s.handleDecisions)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessionByID)

	return mux
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// stop and confirm run the whole pipeline before replying.
		WriteTimeout: 3 * time.Minute,
	}

	logging.Info("control API listening", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h := s.service.Health(r.Context())
	h.Time = time.Now().UTC().Format(time.RFC3339)

	status := http.StatusOK
	if !h.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

// handleSession handles GET /session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Session())
}

// handleSessionAction handles POST /session/{action}
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/session/"), "/")

	switch action {
	case "begin":
		snap, err := s.service.Begin(ctx)
		s.reply(w, snap, err)
	case "stop":
		snap, err := s.service.Stop(ctx)
		s.reply(w, snap, err)
	case "confirm":
		snap, err := s.service.Confirm(ctx)
		s.reply(w, snap, err)
	case "cancel":
		writeJSON(w, http.StatusOK, s.service.Cancel())
	case "reset":
		writeJSON(w, http.StatusOK, s.service.Reset())
	case "command":
		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, ErrInvalidBody, nil)
			return
		}
		snap, err := s.service.Command(ctx, req.Text)
		s.reply(w, snap, err)
	case "transcript":
		var req transcriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, ErrInvalidBody, nil)
			return
		}
		if err := s.service.Transcript(req.Text, req.Final); err != nil {
			writeError(w, err, nil)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type commandRequest struct {
	Text string `json:"text"`
}

type transcriptRequest struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// reply writes the snapshot, or an error carrying it.
func (s *Server) reply(w http.ResponseWriter, snap session.Snapshot, err error) {
	if err != nil {
		writeError(w, err, &snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleDecisions handles GET /decisions?session_id=&limit=
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	decisions, err := s.service.Decisions(r.Context(), q.Get("session_id"), queryInt(q.Get("limit")))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if decisions == nil {
		decisions = []models.SafetyDecisionRecord{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// handleSessions handles GET /sessions?limit=
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessions, err := s.service.Sessions(r.Context(), queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if sessions == nil {
		sessions = []models.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleSessionByID handles GET /sessions/{id}
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	if id == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	detail, err := s.service.SessionDetail(r.Context(), id)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if detail.Runs == nil {
		detail.Runs = []models.ActionRun{}
	}
	if detail.Telemetry == nil {
		detail.Telemetry = []models.TelemetryEvent{}
	}
	writeJSON(w, http.StatusOK, detail)
}

func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error, snap *session.Snapshot) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logging.Error("control API request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, Session: snap})
}
