// Package models defines the core domain types for orange.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SchemaVersion is the planner wire schema version this client speaks.
const SchemaVersion = 1

// SessionState represents the current stage of a voice session.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateListening    SessionState = "listening"
	StateTranscribing SessionState = "transcribing"
	StatePlanning     SessionState = "planning"
	StateConfirming   SessionState = "confirming"
	StateExecuting    SessionState = "executing"
	StateVerifying    SessionState = "verifying"
	StateDone         SessionState = "done"
	StateFailed       SessionState = "failed"
	StateCanceled     SessionState = "canceled"
)

// IsTerminal reports whether no further transitions happen without a new session.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateDone, StateFailed, StateCanceled:
		return true
	}
	return false
}

// RiskLevel is the planner's assessment of a plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ActionPlan is the ordered list of actions produced for one spoken command.
// It is never mutated after it is received, only replaced.
type ActionPlan struct {
	SchemaVersion        int           `json:"schema_version"`
	SessionID            string        `json:"session_id"`
	Actions              []AgentAction `json:"actions"`
	Confidence           float64       `json:"confidence"`
	RiskLevel            RiskLevel     `json:"risk_level"`
	RequiresConfirmation bool          `json:"requires_confirmation"`
	Summary              string        `json:"summary,omitempty"`
}

// ErrInvalidPlan is wrapped by every failure from ActionPlan.Validate.
var ErrInvalidPlan = errors.New("invalid action plan")

// Validate rejects plans whose risk level or confidence is out of range.
// Actions are checked individually by AgentAction.Typed.
func (p ActionPlan) Validate() error {
	if !p.RiskLevel.Valid() {
		return fmt.Errorf("%w: unknown risk_level %q", ErrInvalidPlan, p.RiskLevel)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside 0..1", ErrInvalidPlan, p.Confidence)
	}
	return nil
}

// ExecutionStatus is the outcome of executing a plan.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailure ExecutionStatus = "failure"
	ExecutionPartial ExecutionStatus = "partial"
)

// ActionResult records the outcome of a single action.
type ActionResult struct {
	ActionID  string          `json:"action_id"`
	Kind      ActionKind      `json:"kind"`
	Status    ExecutionStatus `json:"status"`
	LatencyMs int64           `json:"latency_ms"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// ExecutionResult is returned by the executor for a whole plan.
type ExecutionResult struct {
	Status             ExecutionStatus `json:"status"`
	CompletedActions   []string        `json:"completed_actions"`
	FailedActionID     string          `json:"failed_action_id,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	RecoverySuggestion string          `json:"recovery_suggestion,omitempty"`
	ActionResults      []ActionResult  `json:"action_results,omitempty"`
}

// SafetyCategory groups safety prompts so approvals can be cached per category.
type SafetyCategory string

const (
	CategorySend        SafetyCategory = "send"
	CategoryDestructive SafetyCategory = "destructive"
	CategoryScript      SafetyCategory = "script"
	CategoryRisk        SafetyCategory = "risk"
)

// ApprovalMode determines how long an approval stays valid.
type ApprovalMode string

const (
	ApprovalOneTime    ApprovalMode = "one_time"
	ApprovalPerSession ApprovalMode = "per_session"
	ApprovalAlwaysAsk  ApprovalMode = "always_ask"
)

// Valid reports whether m is a known approval mode.
func (m ApprovalMode) Valid() bool {
	switch m {
	case ApprovalOneTime, ApprovalPerSession, ApprovalAlwaysAsk:
		return true
	}
	return false
}

// SafetyPrompt is a confirmation required before a plan may execute.
type SafetyPrompt struct {
	Category     SafetyCategory `json:"category"`
	ApprovalMode ApprovalMode   `json:"approval_mode"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
}

// Decision is the user's answer to a safety prompt.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
)

// SafetyDecisionRecord is an append-only audit entry for a safety decision.
type SafetyDecisionRecord struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id"`
	Category     SafetyCategory `json:"category"`
	Decision     Decision       `json:"decision"`
	ApprovalMode ApprovalMode   `json:"approval_mode"`
	InputsHash   string         `json:"inputs_hash"`
	Timestamp    time.Time      `json:"timestamp"`
}

// AppMetadata describes the frontmost application.
type AppMetadata struct {
	Name        string `json:"name,omitempty"`
	BundleID    string `json:"bundle_id,omitempty"`
	WindowTitle string `json:"window_title,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ScreenContext is a point-in-time description of the desktop.
type ScreenContext struct {
	ScreenshotBase64 string      `json:"screenshot_base64,omitempty"`
	AXTreeSummary    string      `json:"ax_tree_summary,omitempty"`
	App              AppMetadata `json:"app"`
}

// SessionRecord is the persisted summary of a finished or abandoned session.
type SessionRecord struct {
	ID         string       `json:"id"`
	Transcript string       `json:"transcript"`
	State      SessionState `json:"state"`
	Reason     string       `json:"reason,omitempty"`
	RiskLevel  RiskLevel    `json:"risk_level,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ActionRun is the persisted form of one executed action.
type ActionRun struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	ActionID  string          `json:"action_id"`
	Kind      ActionKind      `json:"kind"`
	Status    ExecutionStatus `json:"status"`
	LatencyMs int64           `json:"latency_ms"`
	ErrorCode string          `json:"error_code,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
