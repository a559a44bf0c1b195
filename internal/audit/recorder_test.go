package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/store"
)

func TestRecord_PersistsToStore(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	r := NewRecorder(s)
	ctx := context.Background()
	prompt := models.SafetyPrompt{Category: models.CategoryScript, ApprovalMode: models.ApprovalOneTime}
	plan := models.ActionPlan{SessionID: "s1", Actions: []models.AgentAction{{ID: "a1", Kind: models.KindRunScript, Text: "beep"}}}

	rec, err := r.Record(ctx, "s1", prompt, models.DecisionApproved, plan)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID == "" || rec.InputsHash == "" || rec.Timestamp.IsZero() {
		t.Errorf("record = %+v", rec)
	}

	got, err := s.ListDecisions(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(got) != 1 || got[0].ID != rec.ID || got[0].Decision != models.DecisionApproved {
		t.Errorf("stored = %+v", got)
	}
}

type failingStore struct{}

func (failingStore) AppendDecision(context.Context, models.SafetyDecisionRecord) error {
	return errors.New("disk full")
}

func TestRecord_TrailKeptWhenStoreFails(t *testing.T) {
	r := NewRecorder(failingStore{})
	_, err := r.Record(context.Background(), "s1", models.SafetyPrompt{Category: models.CategoryRisk}, models.DecisionDenied, nil)
	if err == nil {
		t.Fatal("expected store error")
	}
	if trail := r.Trail(); len(trail) != 1 || trail[0].Decision != models.DecisionDenied {
		t.Errorf("trail = %+v", trail)
	}
}

func TestHashInputs(t *testing.T) {
	a := hashInputs(map[string]string{"k": "v"})
	b := hashInputs(map[string]string{"k": "v"})
	c := hashInputs(map[string]string{"k": "w"})
	if a != b || a == c || len(a) != 64 {
		t.Errorf("hashes: %s %s %s", a, b, c)
	}
	if hashInputs(make(chan int)) != "hash_error" {
		t.Error("unmarshalable input should hash to hash_error")
	}
}
