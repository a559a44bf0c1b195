package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/orange/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		s.Close()
	}
}

func TestSessionSaveAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Now().UTC().Add(-time.Minute)
	rec := models.SessionRecord{ID: "s1", State: models.StateListening, CreatedAt: created, UpdatedAt: created}
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	rec.State = models.StateDone
	rec.Transcript = "open Safari"
	rec.RiskLevel = models.RiskLow
	rec.UpdatedAt = time.Now().UTC()
	if err := s.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession update failed: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.State != models.StateDone || got.Transcript != "open Safari" || got.RiskLevel != models.RiskLow {
		t.Errorf("session = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v != %v", got.CreatedAt, created)
	}

	missing, err := s.GetSession(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetSession(missing) = %+v, %v", missing, err)
	}

	s.SaveSession(ctx, models.SessionRecord{ID: "s2", State: models.StateFailed, Reason: "boom"})
	list, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "s2" {
		t.Errorf("sessions = %+v", list)
	}
}

func TestDecisionsAreAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, d := range []models.Decision{models.DecisionApproved, models.DecisionDenied} {
		err := s.AppendDecision(ctx, models.SafetyDecisionRecord{
			ID:           fmt.Sprintf("d%d", i),
			SessionID:    "s1",
			Category:     models.CategoryScript,
			Decision:     d,
			ApprovalMode: models.ApprovalOneTime,
			InputsHash:   "hash",
			Timestamp:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendDecision failed: %v", err)
		}
	}

	if _, err := s.db.Exec(`UPDATE safety_decisions SET decision = 'approved'`); err == nil {
		t.Error("UPDATE on safety_decisions should be rejected")
	}
	if _, err := s.db.Exec(`DELETE FROM safety_decisions`); err == nil {
		t.Error("DELETE on safety_decisions should be rejected")
	}

	got, err := s.ListDecisions(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(got) != 2 || got[0].Decision != models.DecisionApproved || got[1].Decision != models.DecisionDenied {
		t.Errorf("decisions = %+v", got)
	}

	all, _ := s.ListDecisions(ctx, "", 1)
	if len(all) != 1 {
		t.Errorf("limit not applied: %d", len(all))
	}
}

func TestListDecisions_NewestWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 60; i++ {
		err := s.AppendDecision(ctx, models.SafetyDecisionRecord{
			ID:           fmt.Sprintf("d%d", i),
			SessionID:    "s1",
			Category:     models.CategoryScript,
			Decision:     models.DecisionApproved,
			ApprovalMode: models.ApprovalOneTime,
			InputsHash:   "hash",
			Timestamp:    base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendDecision failed: %v", err)
		}
	}

	for _, sessionID := range []string{"", "s1"} {
		got, err := s.ListDecisions(ctx, sessionID, 50)
		if err != nil {
			t.Fatalf("ListDecisions failed: %v", err)
		}
		if len(got) != 50 {
			t.Fatalf("len = %d, want 50", len(got))
		}
		if got[0].ID != "d10" || got[49].ID != "d59" {
			t.Errorf("session %q: window = %s..%s, want d10..d59", sessionID, got[0].ID, got[49].ID)
		}
	}
}

func TestActionRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runs := []models.ActionRun{
		{SessionID: "s1", ActionID: "a1", Kind: models.KindOpenApp, Status: models.ExecutionSuccess, LatencyMs: 120},
		{SessionID: "s1", ActionID: "a2", Kind: models.KindClick, Status: models.ExecutionFailure, LatencyMs: 40, ErrorCode: "element_not_found"},
		{SessionID: "s2", ActionID: "b1", Kind: models.KindWait, Status: models.ExecutionSuccess},
	}
	for _, r := range runs {
		if err := s.RecordActionRun(ctx, r); err != nil {
			t.Fatalf("RecordActionRun failed: %v", err)
		}
	}

	got, err := s.ListActionRuns(ctx, "s1")
	if err != nil {
		t.Fatalf("ListActionRuns failed: %v", err)
	}
	if len(got) != 2 || got[0].ActionID != "a1" || got[1].ErrorCode != "element_not_found" {
		t.Errorf("runs = %+v", got)
	}
	if got[0].ID == "" {
		t.Error("run ID should be generated")
	}
}

func TestTelemetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	latency := int64(42)
	s.RecordTelemetry(ctx, models.TelemetryEvent{SessionID: "s1", Stage: "planning", Status: "ok", LatencyMs: &latency})
	s.RecordTelemetry(ctx, models.TelemetryEvent{SessionID: "s1", Stage: "failed", Status: "error", ErrorCode: "missing_api_key"})

	got, err := s.ListTelemetry(ctx, "s1")
	if err != nil {
		t.Fatalf("ListTelemetry failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %+v", got)
	}
	if got[0].LatencyMs == nil || *got[0].LatencyMs != 42 || got[0].Timestamp == "" {
		t.Errorf("event 0 = %+v", got[0])
	}
	if got[1].LatencyMs != nil || got[1].ErrorCode != "missing_api_key" {
		t.Errorf("event 1 = %+v", got[1])
	}
}
