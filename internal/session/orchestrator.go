// Package session drives one voice command from recording to verification.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/planner"
	"github.com/fentz26/orange/internal/safety"
	"github.com/fentz26/orange/internal/screen"
	"github.com/fentz26/orange/internal/speech"
	"github.com/fentz26/orange/internal/telemetry"
	"github.com/google/uuid"
)

// Executor runs an approved plan.
type Executor interface {
	Execute(ctx context.Context, plan models.ActionPlan) models.ExecutionResult
}

// DecisionRecorder appends safety decisions to the audit trail.
type DecisionRecorder interface {
	Record(ctx context.Context, sessionID string, prompt models.SafetyPrompt, decision models.Decision, inputs interface{}) (models.SafetyDecisionRecord, error)
}

// Store persists session summaries.
type Store interface {
	SaveSession(ctx context.Context, rec models.SessionRecord) error
}

// Deps are the collaborators an Orchestrator drives. Speech, Screen,
// Planner and Executor are required.
type Deps struct {
	Speech    speech.Capture
	Screen    screen.Provider
	Planner   planner.Service
	Policy    safety.Policy
	Executor  Executor
	Audit     DecisionRecorder
	Telemetry telemetry.Emitter
	Store     Store

	// ApprovalMode maps plan risk to the approval mode of policy prompts.
	ApprovalMode func(models.RiskLevel) models.ApprovalMode
	Preferences  *models.PlannerPreferences
}

// Orchestrator owns the single active session. All methods are safe for
// concurrent use; observers read it through Snapshot or Subscribe.
type Orchestrator struct {
	deps Deps

	mu        sync.Mutex
	cur       Snapshot
	approvals *safety.Approvals
	tok       *token
	stopFeed  context.CancelFunc
	subs      map[int]chan Snapshot
	nextSub   int
}

// New creates an orchestrator in the idle state.
func New(deps Deps) *Orchestrator {
	if deps.Policy == nil {
		deps.Policy = safety.DefaultPolicy{}
	}
	if deps.ApprovalMode == nil {
		deps.ApprovalMode = defaultApprovalMode
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	o := &Orchestrator{
		deps:      deps,
		cur:       Snapshot{ID: id, State: models.StateIdle, CreatedAt: now, UpdatedAt: now},
		approvals: safety.NewApprovals(id),
		tok:       newToken(context.Background()),
		subs:      make(map[int]chan Snapshot),
	}
	deps.Speech.SetPartialHandler(o.onPartial)
	return o
}

func defaultApprovalMode(risk models.RiskLevel) models.ApprovalMode {
	switch risk {
	case models.RiskLow:
		return models.ApprovalPerSession
	case models.RiskHigh:
		return models.ApprovalAlwaysAsk
	default:
		return models.ApprovalOneTime
	}
}

// Snapshot returns a copy of the current session.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cur.clone()
}

// Subscribe returns a channel that always holds the latest snapshot. Slow
// readers skip intermediate states. Call the returned func to unsubscribe.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- o.cur.clone()
	o.subs[id] = ch

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

// publish must be called with o.mu held.
func (o *Orchestrator) publish() {
	o.cur.UpdatedAt = time.Now().UTC()
	snap := o.cur.clone()
	for _, ch := range o.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// update applies fn to the session if tok is still current. It reports
// false when tok is stale, in which case nothing is written.
func (o *Orchestrator) update(tok *token, fn func(s *Snapshot)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tok != tok || tok.done() {
		return false
	}
	fn(&o.cur)
	o.publish()
	return true
}

// BeginRecording abandons the previous session and starts listening under
// a new session id.
func (o *Orchestrator) BeginRecording(ctx context.Context) error {
	o.mu.Lock()
	o.tok.stop()
	o.endFeedLocked()
	tok := newToken(ctx)
	o.tok = tok
	o.resetLocked(uuid.New().String())
	o.cur.State = models.StateListening
	o.cur.StatusText = "Listening"
	id := o.cur.ID
	o.publish()
	o.startFeedLocked(tok, id)
	o.mu.Unlock()

	logging.Info("recording started", "session_id", id)
	o.emit(id, models.StateListening, "started", nil, "")
	o.save(tok)

	if err := o.deps.Speech.Start(tok.ctx); err != nil {
		if tok.done() {
			return nil
		}
		o.fail(tok, models.StateListening, err.Error(), "capture_failed")
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

// StopRecordingAndPlan ends capture and plans the final transcript.
func (o *Orchestrator) StopRecordingAndPlan(ctx context.Context) error {
	o.mu.Lock()
	if o.cur.State != models.StateListening {
		o.mu.Unlock()
		return ErrNotListening
	}
	tok := o.tok
	o.cur.State = models.StateTranscribing
	o.cur.StatusText = "Transcribing"
	id := o.cur.ID
	o.publish()
	o.mu.Unlock()

	o.emit(id, models.StateTranscribing, "started", nil, "")

	text, err := o.deps.Speech.Stop(tok.ctx)
	if tok.done() {
		return nil
	}
	if err != nil {
		o.fail(tok, models.StateTranscribing, err.Error(), "capture_failed")
		return fmt.Errorf("stop capture: %w", err)
	}
	return o.plan(tok, text)
}

// SubmitTranscript plans a typed command inside the current session id.
// From idle it opens a session first.
func (o *Orchestrator) SubmitTranscript(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return speech.ErrEmptyTranscript
	}

	o.mu.Lock()
	switch o.cur.State {
	case models.StateIdle, models.StateDone, models.StateFailed, models.StateCanceled:
	default:
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, o.cur.State)
	}
	o.tok.stop()
	o.endFeedLocked()
	tok := newToken(ctx)
	o.tok = tok
	if o.cur.State == models.StateIdle {
		o.resetLocked(o.cur.ID)
	} else {
		o.clearCommandLocked()
	}
	id := o.cur.ID
	o.startFeedLocked(tok, id)
	o.mu.Unlock()

	return o.plan(tok, text)
}

// ConfirmAndExecute approves every shown prompt and runs the pending plan.
func (o *Orchestrator) ConfirmAndExecute(ctx context.Context) error {
	o.mu.Lock()
	if o.cur.State != models.StateConfirming || o.cur.Plan == nil {
		o.mu.Unlock()
		return ErrNoPendingPlan
	}
	tok := o.tok
	plan := *o.cur.Plan
	prompts := o.cur.Prompts
	id := o.cur.ID
	o.approvals.Promote(prompts)
	o.cur.Prompts = nil
	o.cur.State = models.StateExecuting
	o.cur.StatusText = "Executing"
	o.startFeedLocked(tok, id)
	o.publish()
	o.mu.Unlock()

	o.recordDecisions(id, prompts, models.DecisionApproved, plan)
	return o.execute(tok, plan)
}

// Cancel stops all in-flight work and leaves the session canceled. Shown
// prompts are recorded as denied. Canceling a finished or idle session
// does nothing.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	prev := o.cur.State
	if prev == models.StateIdle || prev.IsTerminal() {
		o.mu.Unlock()
		return
	}
	tok := o.tok
	tok.stop()
	o.endFeedLocked()

	var plan models.ActionPlan
	if o.cur.Plan != nil {
		plan = *o.cur.Plan
	}
	prompts := o.cur.Prompts
	id := o.cur.ID
	o.cur.Plan = nil
	o.cur.Prompts = nil
	o.cur.State = models.StateCanceled
	o.cur.StatusText = "Canceled"
	o.publish()
	rec := o.cur.record()
	o.mu.Unlock()

	if prev == models.StateListening {
		if _, err := o.deps.Speech.Stop(tok.ctx); err != nil {
			logging.Debug("capture stopped by cancel", "session_id", id, "error", err)
		}
	}
	o.recordDecisions(id, prompts, models.DecisionDenied, plan)

	logging.Info("session canceled", "session_id", id, "from", string(prev))
	o.emit(id, models.StateCanceled, "canceled", nil, "")
	if o.deps.Store != nil {
		if err := o.deps.Store.SaveSession(context.Background(), rec); err != nil {
			logging.Warn("failed to save session", "session_id", id, "error", err)
		}
	}
}

// Reset cancels in-flight work and returns to idle under a fresh session id.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tok.stop()
	o.endFeedLocked()
	o.tok = newToken(context.Background())
	o.resetLocked(uuid.New().String())
	o.publish()
}

func (o *Orchestrator) onPartial(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur.State != models.StateListening {
		return
	}
	o.cur.PartialTranscript = text
	o.publish()
}

// resetLocked discards every field of the session and binds it to id.
func (o *Orchestrator) resetLocked(id string) {
	now := time.Now().UTC()
	o.cur = Snapshot{ID: id, State: models.StateIdle, CreatedAt: now, UpdatedAt: now}
	o.approvals.Reset(id)
}

// clearCommandLocked drops the previous command's output but keeps the
// session id, its approvals and its audit trail.
func (o *Orchestrator) clearCommandLocked() {
	o.cur.Transcript = ""
	o.cur.PartialTranscript = ""
	o.cur.Plan = nil
	o.cur.Prompts = nil
	o.cur.Result = nil
	o.cur.Verification = nil
	o.cur.PlannerEvents = nil
	o.cur.NeedsCredential = false
	o.cur.Reason = ""
}

func (o *Orchestrator) plan(tok *token, text string) error {
	var id string
	ok := o.update(tok, func(s *Snapshot) {
		s.Transcript = text
		s.PartialTranscript = ""
		s.State = models.StatePlanning
		s.StatusText = "Planning"
		id = s.ID
	})
	if !ok {
		return nil
	}
	o.emit(id, models.StatePlanning, "started", nil, "")

	sc := o.deps.Screen.Capture(tok.ctx)
	if tok.done() {
		return nil
	}

	start := time.Now()
	plan, err := o.deps.Planner.Plan(tok.ctx, models.PlanRequest{
		SchemaVersion:    models.SchemaVersion,
		SessionID:        id,
		Transcript:       text,
		ScreenshotBase64: sc.ScreenshotBase64,
		AXTreeSummary:    sc.AXTreeSummary,
		App:              sc.App,
		Preferences:      o.deps.Preferences,
	})
	if tok.done() {
		return nil
	}
	if err != nil {
		if planner.IsCredentialError(err) {
			o.emit(id, models.StatePlanning, "error", since(start), credentialCode(err))
			o.finish(tok, models.StateFailed, err.Error(), func(s *Snapshot) { s.NeedsCredential = true })
			return fmt.Errorf("%w: %w", ErrCredentialRequired, err)
		}
		o.fail(tok, models.StatePlanning, err.Error(), "planning_failed")
		return fmt.Errorf("plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		logging.Warn("rejected plan", "session_id", id, "error", err)
		o.fail(tok, models.StatePlanning, err.Error(), "planning_failed")
		return fmt.Errorf("plan: %w", err)
	}
	o.emit(id, models.StatePlanning, "ok", since(start), "")

	var prompts []models.SafetyPrompt
	ok = o.update(tok, func(s *Snapshot) {
		s.Plan = &plan
		prompts = o.gateLocked(plan)
		if len(prompts) > 0 {
			s.Prompts = prompts
			s.State = models.StateConfirming
			s.StatusText = "Waiting for confirmation"
			o.endFeedLocked()
		}
	})
	if !ok {
		return nil
	}
	if len(prompts) > 0 {
		logging.Info("plan awaiting confirmation", "session_id", id, "prompts", len(prompts), "risk", string(plan.RiskLevel))
		o.emit(id, models.StateConfirming, "started", nil, "")
		o.save(tok)
		return nil
	}
	return o.execute(tok, plan)
}

// gateLocked returns the prompts plan must clear before it runs.
func (o *Orchestrator) gateLocked(plan models.ActionPlan) []models.SafetyPrompt {
	prompts := safety.WithMode(o.deps.Policy.Evaluate(plan.Actions), o.deps.ApprovalMode(plan.RiskLevel))
	if p, ok := safety.RiskPrompt(plan); ok {
		prompts = append(prompts, p)
	}
	return o.approvals.Filter(prompts)
}

func (o *Orchestrator) execute(tok *token, plan models.ActionPlan) error {
	var id string
	ok := o.update(tok, func(s *Snapshot) {
		s.State = models.StateExecuting
		s.StatusText = "Executing"
		id = s.ID
	})
	if !ok {
		return nil
	}
	o.emit(id, models.StateExecuting, "started", nil, "")

	before := o.deps.Screen.Capture(tok.ctx)
	if tok.done() {
		return nil
	}

	start := time.Now()
	result := o.deps.Executor.Execute(tok.ctx, plan)
	if tok.done() {
		return nil
	}
	o.emit(id, models.StateExecuting, string(result.Status), since(start), failedCode(result))

	ok = o.update(tok, func(s *Snapshot) {
		s.Result = &result
		s.State = models.StateVerifying
		s.StatusText = "Verifying"
	})
	if !ok {
		return nil
	}
	o.emit(id, models.StateVerifying, "started", nil, "")

	after := o.deps.Screen.Capture(tok.ctx)
	if tok.done() {
		return nil
	}

	start = time.Now()
	verdict, err := o.deps.Planner.Verify(tok.ctx, models.VerifyRequest{
		SchemaVersion:   models.SchemaVersion,
		SessionID:       id,
		ActionPlan:      plan,
		ExecutionResult: result.Status,
		Reason:          result.Reason,
		BeforeContext:   screen.Digest(before),
		AfterContext:    screen.Digest(after),
	})
	if tok.done() {
		return nil
	}
	if err != nil {
		logging.Warn("verifier unreachable", "session_id", id, "error", err)
		verdict = models.VerifyResponse{SessionID: id, Status: models.VerifyUnreachable, Reason: err.Error()}
		o.emit(id, models.StateVerifying, "error", since(start), "verify_unreachable")
	} else {
		o.emit(id, models.StateVerifying, string(verdict.Status), since(start), "")
	}

	state, reason := disposition(result, verdict)
	o.finish(tok, state, reason, func(s *Snapshot) { s.Verification = &verdict })
	return nil
}

// disposition decides the terminal state. Only an explicit failure verdict
// downgrades a successful execution.
func disposition(result models.ExecutionResult, verdict models.VerifyResponse) (models.SessionState, string) {
	if result.Status == models.ExecutionSuccess && verdict.Status != models.VerifyFailure {
		return models.StateDone, ""
	}
	switch {
	case verdict.Status == models.VerifyFailure && verdict.Reason != "":
		return models.StateFailed, verdict.Reason
	case result.Reason != "":
		return models.StateFailed, result.Reason
	default:
		return models.StateFailed, "Command did not complete"
	}
}

// fail emits the stage error, then moves the session to failed.
func (o *Orchestrator) fail(tok *token, stage models.SessionState, reason, code string) {
	o.mu.Lock()
	id := o.cur.ID
	current := o.tok == tok && !tok.done()
	o.mu.Unlock()
	if !current {
		return
	}
	o.emit(id, stage, "error", nil, code)
	o.finish(tok, models.StateFailed, reason, nil)
}

// finish moves the session to a terminal state. It returns the session id,
// or "" if tok was stale.
func (o *Orchestrator) finish(tok *token, state models.SessionState, reason string, fn func(s *Snapshot)) string {
	var id string
	ok := o.update(tok, func(s *Snapshot) {
		if fn != nil {
			fn(s)
		}
		s.State = state
		s.Reason = reason
		s.StatusText = reason
		if state == models.StateDone {
			s.StatusText = "Done"
			if s.Plan != nil && s.Plan.Summary != "" {
				s.StatusText = s.Plan.Summary
			}
		}
		id = s.ID
		o.endFeedLocked()
	})
	if !ok {
		return ""
	}
	logging.Info("session finished", "session_id", id, "state", string(state), "reason", reason)
	o.emit(id, state, string(state), nil, "")
	o.save(tok)
	return id
}

func (o *Orchestrator) recordDecisions(id string, prompts []models.SafetyPrompt, decision models.Decision, plan models.ActionPlan) {
	if o.deps.Audit == nil || len(prompts) == 0 {
		return
	}
	var recs []models.SafetyDecisionRecord
	for _, p := range prompts {
		rec, err := o.deps.Audit.Record(context.Background(), id, p, decision, plan)
		if err != nil {
			logging.Warn("failed to persist safety decision", "session_id", id, "category", string(p.Category), "error", err)
		}
		recs = append(recs, rec)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur.ID != id {
		return
	}
	o.cur.AuditTrail = append(o.cur.AuditTrail, recs...)
	o.publish()
}

func (o *Orchestrator) save(tok *token) {
	if o.deps.Store == nil {
		return
	}
	o.mu.Lock()
	if o.tok != tok {
		o.mu.Unlock()
		return
	}
	rec := o.cur.record()
	o.mu.Unlock()

	if err := o.deps.Store.SaveSession(context.Background(), rec); err != nil {
		logging.Warn("failed to save session", "session_id", rec.ID, "error", err)
	}
}

func (o *Orchestrator) emit(id string, stage models.SessionState, status string, latency *int64, code string) {
	if o.deps.Telemetry == nil {
		return
	}
	o.deps.Telemetry.Emit(models.TelemetryEvent{
		SessionID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Stage:     string(stage),
		Status:    status,
		LatencyMs: latency,
		ErrorCode: code,
	})
}

func since(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}

func failedCode(r models.ExecutionResult) string {
	for _, ar := range r.ActionResults {
		if ar.ErrorCode != "" {
			return ar.ErrorCode
		}
	}
	return ""
}

func credentialCode(err error) string {
	var se *planner.ServiceError
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	return "unauthorized"
}
