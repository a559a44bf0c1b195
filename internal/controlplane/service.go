// Package controlplane provides the local HTTP API through which the hotkey
// helper and the dictation relay drive the session.
package controlplane

import (
	"context"
	"fmt"
	"strings"

	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/session"
	"github.com/fentz26/orange/internal/telemetry"
)

// Version is reported by /health. Set at link time.
var Version = "dev"

// Session is the orchestrator surface the API drives.
type Session interface {
	Snapshot() session.Snapshot
	BeginRecording(ctx context.Context) error
	StopRecordingAndPlan(ctx context.Context) error
	SubmitTranscript(ctx context.Context, text string) error
	ConfirmAndExecute(ctx context.Context) error
	Cancel()
	Reset()
}

// Dictation receives text from an external recognizer.
type Dictation interface {
	Push(text string, final bool) error
}

// History reads persisted sessions and decisions.
type History interface {
	Ping(ctx context.Context) error
	ListSessions(ctx context.Context, limit int) ([]models.SessionRecord, error)
	GetSession(ctx context.Context, id string) (*models.SessionRecord, error)
	ListDecisions(ctx context.Context, sessionID string, limit int) ([]models.SafetyDecisionRecord, error)
	ListActionRuns(ctx context.Context, sessionID string) ([]models.ActionRun, error)
	ListTelemetry(ctx context.Context, sessionID string) ([]models.TelemetryEvent, error)
}

// StatsSource reports telemetry queue health.
type StatsSource interface {
	GetStats() telemetry.Stats
}

// Service provides the control plane business logic.
type Service struct {
	session   Session
	dictation Dictation
	history   History
	stats     StatsSource
}

// NewService creates a new control plane service. dictation, history and
// stats may be nil.
func NewService(s Session, dictation Dictation, history History, stats StatsSource) *Service {
	return &Service{session: s, dictation: dictation, history: history, stats: stats}
}

// Health reports database reachability and telemetry queue state.
func (s *Service) Health(ctx context.Context) HealthResponse {
	h := HealthResponse{OK: true, DB: "disabled", Version: Version}
	if s.history != nil {
		h.DB = "ok"
		if err := s.history.Ping(ctx); err != nil {
			h.OK = false
			h.DB = err.Error()
		}
	}
	if s.stats != nil {
		st := s.stats.GetStats()
		h.Telemetry = &st
	}
	h.State = s.session.Snapshot().State
	return h
}

// Session returns the current session snapshot.
func (s *Service) Session() session.Snapshot {
	return s.session.Snapshot()
}

func (s *Service) Begin(ctx context.Context) (session.Snapshot, error) {
	err := s.session.BeginRecording(ctx)
	return s.session.Snapshot(), err
}

func (s *Service) Stop(ctx context.Context) (session.Snapshot, error) {
	err := s.session.StopRecordingAndPlan(ctx)
	return s.session.Snapshot(), err
}

// Command plans typed text as a command in the current session.
func (s *Service) Command(ctx context.Context, text string) (session.Snapshot, error) {
	err := s.session.SubmitTranscript(ctx, text)
	return s.session.Snapshot(), err
}

func (s *Service) Confirm(ctx context.Context) (session.Snapshot, error) {
	err := s.session.ConfirmAndExecute(ctx)
	return s.session.Snapshot(), err
}

func (s *Service) Cancel() session.Snapshot {
	s.session.Cancel()
	return s.session.Snapshot()
}

func (s *Service) Reset() session.Snapshot {
	s.session.Reset()
	return s.session.Snapshot()
}

// Transcript relays recognized text into the active capture.
func (s *Service) Transcript(text string, final bool) error {
	if s.dictation == nil {
		return ErrNoDictation
	}
	return s.dictation.Push(text, final)
}

// Decisions lists audit entries, newest last. An empty sessionID lists all.
func (s *Service) Decisions(ctx context.Context, sessionID string, limit int) ([]models.SafetyDecisionRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListDecisions(ctx, sessionID, limit)
}

// Sessions lists persisted sessions, newest first.
func (s *Service) Sessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListSessions(ctx, limit)
}

// SessionDetail returns a persisted session with its action runs and
// telemetry.
func (s *Service) SessionDetail(ctx context.Context, id string) (*SessionDetail, error) {
	if s.history == nil {
		return nil, ErrNotFound
	}
	id = strings.TrimSpace(id)
	rec, err := s.history.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	runs, err := s.history.ListActionRuns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	events, err := s.history.ListTelemetry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	return &SessionDetail{Session: *rec, Runs: runs, Telemetry: events}, nil
}
