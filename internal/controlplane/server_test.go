package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/session"
	"github.com/fentz26/orange/internal/speech"
	"github.com/fentz26/orange/internal/store"
)

// fakeSession walks the happy path without a planner.
type fakeSession struct {
	snap     session.Snapshot
	stopErr  error
	commands []string
}

func (f *fakeSession) Snapshot() session.Snapshot { return f.snap }

func (f *fakeSession) BeginRecording(context.Context) error {
	f.snap = session.Snapshot{ID: "s-new", State: models.StateListening}
	return nil
}

func (f *fakeSession) StopRecordingAndPlan(context.Context) error {
	if f.stopErr != nil {
		f.snap.State = models.StateFailed
		return f.stopErr
	}
	if f.snap.State != models.StateListening {
		return session.ErrNotListening
	}
	f.snap.State = models.StateConfirming
	return nil
}

func (f *fakeSession) SubmitTranscript(_ context.Context, text string) error {
	f.commands = append(f.commands, text)
	f.snap.Transcript = text
	f.snap.State = models.StateDone
	return nil
}

func (f *fakeSession) ConfirmAndExecute(context.Context) error {
	if f.snap.State != models.StateConfirming {
		return session.ErrNoPendingPlan
	}
	f.snap.State = models.StateDone
	return nil
}

func (f *fakeSession) Cancel() { f.snap.State = models.StateCanceled }

func (f *fakeSession) Reset() { f.snap = session.Snapshot{ID: "s-reset", State: models.StateIdle} }

func newTestServer(t *testing.T) (*Server, *fakeSession, *speech.Relay, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sess := &fakeSession{snap: session.Snapshot{ID: "s1", State: models.StateIdle}}
	relay := speech.NewRelay()
	relay.FlushGrace = 10 * time.Millisecond
	return NewServer(NewService(sess, relay, st, nil), "127.0.0.1:0"), sess, relay, st
}

func do(t *testing.T, s *Server, method, path, body string) *http.Response {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w.Result()
}

func TestHealthEndpoint_OK(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	resp := do(t, s, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !health.OK || health.DB != "ok" {
		t.Errorf("health = %+v", health)
	}
	if health.Version == "" || health.Time == "" {
		t.Error("Expected version and time to be set")
	}
	if health.State != models.StateIdle {
		t.Errorf("state = %s", health.State)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	if resp := do(t, s, http.MethodPost, "/health", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestSessionFlow(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	steps := []struct {
		path  string
		state models.SessionState
	}{
		{"/session/begin", models.StateListening},
		{"/session/stop", models.StateConfirming},
		{"/session/confirm", models.StateDone},
	}
	for _, step := range steps {
		resp := do(t, s, http.MethodPost, step.path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", step.path, resp.StatusCode)
		}
		var snap session.Snapshot
		json.NewDecoder(resp.Body).Decode(&snap)
		if snap.State != step.state {
			t.Errorf("%s: state = %s, want %s", step.path, snap.State, step.state)
		}
	}

	resp := do(t, s, http.MethodGet, "/session", "")
	var snap session.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.ID != "s-new" || snap.State != models.StateDone {
		t.Errorf("GET /session = %+v", snap)
	}
}

func TestSessionErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		stopErr  error
		wantCode int
		wantErr  string
	}{
		{"confirm without plan", "/session/confirm", nil, http.StatusConflict, CodeConflict},
		{"stop when idle", "/session/stop", nil, http.StatusConflict, CodeConflict},
		{"credential", "/session/stop", session.ErrCredentialRequired, http.StatusPreconditionRequired, CodeCredentialRequired},
		{"empty transcript", "/session/stop", speech.ErrEmptyTranscript, http.StatusUnprocessableEntity, CodeEmptyTranscript},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sess, _, _ := newTestServer(t)
			sess.stopErr = tt.stopErr

			resp := do(t, s, http.MethodPost, tt.path, "")
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			var body ErrorResponse
			json.NewDecoder(resp.Body).Decode(&body)
			if body.Code != tt.wantErr || body.Session == nil {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestCancelAndReset(t *testing.T) {
	s, sess, _, _ := newTestServer(t)
	sess.snap.State = models.StatePlanning

	resp := do(t, s, http.MethodPost, "/session/cancel", "")
	var snap session.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.State != models.StateCanceled {
		t.Errorf("cancel state = %s", snap.State)
	}

	resp = do(t, s, http.MethodPost, "/session/reset", "")
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.State != models.StateIdle || snap.ID != "s-reset" {
		t.Errorf("reset = %+v", snap)
	}

	if resp := do(t, s, http.MethodGet, "/session/cancel", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /session/cancel = %d", resp.StatusCode)
	}
	if resp := do(t, s, http.MethodPost, "/session/fly", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown action = %d", resp.StatusCode)
	}
}

func TestCommand(t *testing.T) {
	s, sess, _, _ := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/session/command", `{"text":"open Safari"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(sess.commands) != 1 || sess.commands[0] != "open Safari" {
		t.Errorf("commands = %v", sess.commands)
	}

	if resp := do(t, s, http.MethodPost, "/session/command", `{`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json = %d", resp.StatusCode)
	}
}

func TestTranscriptRelay(t *testing.T) {
	s, _, relay, _ := newTestServer(t)

	if resp := do(t, s, http.MethodPost, "/session/transcript", `{"text":"hi"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("push while not recording = %d, want 409", resp.StatusCode)
	}

	if err := relay.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp := do(t, s, http.MethodPost, "/session/transcript", `{"text":"open Saf"}`); resp.StatusCode != http.StatusAccepted {
		t.Errorf("partial = %d", resp.StatusCode)
	}
	if resp := do(t, s, http.MethodPost, "/session/transcript", `{"text":"open Safari","final":true}`); resp.StatusCode != http.StatusAccepted {
		t.Errorf("final = %d", resp.StatusCode)
	}

	text, err := relay.Stop(context.Background())
	if err != nil || text != "open Safari" {
		t.Errorf("Stop = %q, %v", text, err)
	}
}

func TestDecisionsAndHistory(t *testing.T) {
	s, _, _, st := newTestServer(t)
	ctx := context.Background()

	st.SaveSession(ctx, models.SessionRecord{ID: "s1", Transcript: "beep", State: models.StateDone})
	st.AppendDecision(ctx, models.SafetyDecisionRecord{
		ID: "d1", SessionID: "s1", Category: models.CategoryScript, Decision: models.DecisionApproved,
		ApprovalMode: models.ApprovalOneTime, InputsHash: "h", Timestamp: time.Now().UTC(),
	})
	st.RecordActionRun(ctx, models.ActionRun{SessionID: "s1", ActionID: "a1", Kind: models.KindRunScript, Status: models.ExecutionSuccess})
	st.RecordTelemetry(ctx, models.TelemetryEvent{SessionID: "s1", Stage: "planning", Status: "error", ErrorCode: "planning_failed"})
	st.RecordTelemetry(ctx, models.TelemetryEvent{SessionID: "s1", Stage: "failed", Status: "failed"})

	resp := do(t, s, http.MethodGet, "/decisions?session_id=s1", "")
	var decisions []models.SafetyDecisionRecord
	json.NewDecoder(resp.Body).Decode(&decisions)
	if len(decisions) != 1 || decisions[0].Category != models.CategoryScript {
		t.Errorf("decisions = %+v", decisions)
	}

	resp = do(t, s, http.MethodGet, "/decisions?session_id=other", "")
	var empty []models.SafetyDecisionRecord
	json.NewDecoder(resp.Body).Decode(&empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty JSON array, got %v", empty)
	}

	resp = do(t, s, http.MethodGet, "/sessions?limit=5", "")
	var sessions []models.SessionRecord
	json.NewDecoder(resp.Body).Decode(&sessions)
	if len(sessions) != 1 || sessions[0].Transcript != "beep" {
		t.Errorf("sessions = %+v", sessions)
	}

	resp = do(t, s, http.MethodGet, "/sessions/s1", "")
	var detail SessionDetail
	json.NewDecoder(resp.Body).Decode(&detail)
	if detail.Session.ID != "s1" || len(detail.Runs) != 1 {
		t.Errorf("detail = %+v", detail)
	}
	if len(detail.Telemetry) != 2 || detail.Telemetry[0].Stage != "planning" || detail.Telemetry[1].Stage != "failed" {
		t.Errorf("telemetry = %+v", detail.Telemetry)
	}

	if resp := do(t, s, http.MethodGet, "/sessions/missing", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing session = %d", resp.StatusCode)
	}
}
