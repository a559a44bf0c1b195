package session

import (
	"time"

	"github.com/fentz26/orange/internal/models"
)

// MaxPlannerEvents caps the planner stream events kept per session.
const MaxPlannerEvents = 50

// Snapshot is a read-only copy of the session record.
type Snapshot struct {
	ID                string                        `json:"id"`
	State             models.SessionState           `json:"state"`
	Transcript        string                        `json:"transcript"`
	PartialTranscript string                        `json:"partial_transcript,omitempty"`
	StatusText        string                        `json:"status_text"`
	Plan              *models.ActionPlan            `json:"plan,omitempty"`
	Prompts           []models.SafetyPrompt         `json:"prompts"`
	Result            *models.ExecutionResult       `json:"result,omitempty"`
	Verification      *models.VerifyResponse        `json:"verification,omitempty"`
	AuditTrail        []models.SafetyDecisionRecord `json:"audit_trail"`
	PlannerEvents     []models.StreamEvent          `json:"planner_events"`
	NeedsCredential   bool                          `json:"needs_credential"`
	Reason            string                        `json:"reason,omitempty"`
	CreatedAt         time.Time                     `json:"created_at"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Plan != nil {
		p := *s.Plan
		p.Actions = append([]models.AgentAction(nil), s.Plan.Actions...)
		out.Plan = &p
	}
	if s.Result != nil {
		r := *s.Result
		r.CompletedActions = append([]string(nil), s.Result.CompletedActions...)
		r.ActionResults = append([]models.ActionResult(nil), s.Result.ActionResults...)
		out.Result = &r
	}
	if s.Verification != nil {
		v := *s.Verification
		out.Verification = &v
	}
	out.Prompts = append([]models.SafetyPrompt{}, s.Prompts...)
	out.AuditTrail = append([]models.SafetyDecisionRecord{}, s.AuditTrail...)
	out.PlannerEvents = append([]models.StreamEvent{}, s.PlannerEvents...)
	return out
}

func (s Snapshot) record() models.SessionRecord {
	rec := models.SessionRecord{
		ID:         s.ID,
		Transcript: s.Transcript,
		State:      s.State,
		Reason:     s.Reason,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.Plan != nil {
		rec.RiskLevel = s.Plan.RiskLevel
	}
	return rec
}
