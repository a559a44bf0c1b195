// Package audit records safety decisions as append-only audit entries.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
	"github.com/google/uuid"
)

// DecisionStore persists decision records. Implementations must never
// update or delete a record once appended.
type DecisionStore interface {
	AppendDecision(ctx context.Context, rec models.SafetyDecisionRecord) error
}

// Recorder writes safety decision records and keeps the process-lifetime
// trail in memory.
type Recorder struct {
	store DecisionStore

	mu    sync.Mutex
	trail []models.SafetyDecisionRecord
}

// NewRecorder creates a recorder. A nil store keeps records in memory only.
func NewRecorder(s DecisionStore) *Recorder {
	return &Recorder{store: s}
}

// Record appends a decision for prompt. inputs is hashed so the entry can
// be matched to the plan it gated without storing the plan itself.
func (r *Recorder) Record(ctx context.Context, sessionID string, prompt models.SafetyPrompt, decision models.Decision, inputs interface{}) (models.SafetyDecisionRecord, error) {
	rec := models.SafetyDecisionRecord{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		Category:     prompt.Category,
		Decision:     decision,
		ApprovalMode: prompt.ApprovalMode,
		InputsHash:   hashInputs(inputs),
		Timestamp:    time.Now().UTC(),
	}

	r.mu.Lock()
	r.trail = append(r.trail, rec)
	r.mu.Unlock()

	logging.Info("safety decision",
		"session_id", sessionID,
		"category", string(rec.Category),
		"decision", string(decision),
		"approval_mode", string(rec.ApprovalMode))

	if r.store == nil {
		return rec, nil
	}
	return rec, r.store.AppendDecision(ctx, rec)
}

// Trail returns a copy of every decision recorded by this process.
func (r *Recorder) Trail() []models.SafetyDecisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SafetyDecisionRecord, len(r.trail))
	copy(out, r.trail)
	return out
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
