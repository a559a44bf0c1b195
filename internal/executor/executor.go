// Package executor runs action plans against the live desktop.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/fentz26/orange/internal/axtree"
	"github.com/fentz26/orange/internal/connectors"
	"github.com/fentz26/orange/internal/input"
	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
	"github.com/google/uuid"
)

const minWait = 50 * time.Millisecond

// PermissionProbe gates accessibility-based actions.
type PermissionProbe interface {
	AutomationAllowed(ctx context.Context) bool
}

// ElementSource snapshots the focused UI and presses elements in it.
type ElementSource interface {
	Snapshot(ctx context.Context, lim axtree.Limits) (*axtree.Tree, error)
	Press(ctx context.Context, t *axtree.Tree, n *axtree.Node) error
}

// RunRecorder persists per-action outcomes.
type RunRecorder interface {
	RecordActionRun(ctx context.Context, run models.ActionRun) error
}

// Config tunes an Executor.
type Config struct {
	// OpenAppTimeout bounds open_app launches that carry no timeout_ms.
	OpenAppTimeout time.Duration
	SearchLimits   axtree.Limits
}

// DefaultConfig returns the stock executor settings.
func DefaultConfig() Config {
	return Config{
		OpenAppTimeout: 5 * time.Second,
		SearchLimits:   axtree.SearchLimits,
	}
}

// Executor runs plans one action at a time, stopping at the first failure.
type Executor struct {
	cfg      Config
	input    input.Dispatcher
	elements ElementSource
	probe    PermissionProbe
	recorder RunRecorder
}

// New creates an Executor.
func New(cfg Config, in input.Dispatcher, elements ElementSource, probe PermissionProbe) *Executor {
	if cfg.OpenAppTimeout <= 0 {
		cfg.OpenAppTimeout = DefaultConfig().OpenAppTimeout
	}
	if cfg.SearchLimits.MaxNodes <= 0 {
		cfg.SearchLimits = axtree.SearchLimits
	}
	return &Executor{cfg: cfg, input: in, elements: elements, probe: probe}
}

// SetRecorder wires a recorder for action runs. Nil disables recording.
func (e *Executor) SetRecorder(r RunRecorder) {
	e.recorder = r
}

// Execute runs plan.Actions strictly in order. ctx cancellation is only
// observed between actions and during waits; an action that touches the
// desktop always runs to completion once started.
func (e *Executor) Execute(ctx context.Context, plan models.ActionPlan) models.ExecutionResult {
	result := models.ExecutionResult{
		Status:           models.ExecutionSuccess,
		CompletedActions: []string{},
	}

	for _, wire := range plan.Actions {
		if ctx.Err() != nil {
			result.Status = models.ExecutionPartial
			result.Reason = "execution canceled"
			return result
		}

		start := time.Now()
		err := e.runOne(ctx, wire)
		ar := models.ActionResult{
			ActionID:  wire.ID,
			Kind:      wire.Kind.Normalize(),
			Status:    models.ExecutionSuccess,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			ar.Status = models.ExecutionFailure
			ar.ErrorCode = string(CodeOf(err))
		}
		result.ActionResults = append(result.ActionResults, ar)
		e.record(ctx, plan.SessionID, ar)

		if err != nil {
			if CodeOf(err) == CodeCanceled {
				result.Status = models.ExecutionPartial
			} else {
				result.Status = models.ExecutionFailure
			}
			result.FailedActionID = wire.ID
			result.Reason = err.Error()
			result.RecoverySuggestion = RecoverySuggestion
			logging.Warn("action failed",
				"session_id", plan.SessionID,
				"action_id", wire.ID,
				"kind", string(ar.Kind),
				"error_code", ar.ErrorCode,
				"reason", err.Error())
			return result
		}

		result.CompletedActions = append(result.CompletedActions, wire.ID)
		logging.Info("executed action", "session_id", plan.SessionID, "action_id", wire.ID, "kind", string(ar.Kind))
	}

	return result
}

func (e *Executor) runOne(ctx context.Context, wire models.AgentAction) error {
	action, err := wire.Typed()
	if err != nil {
		return newError(CodeInvalidPayload, err, "%s", err.Error())
	}
	return action.Accept(&runner{e: e, ctx: ctx, desktop: context.WithoutCancel(ctx)})
}

func (e *Executor) record(ctx context.Context, sessionID string, ar models.ActionResult) {
	if e.recorder == nil {
		return
	}
	run := models.ActionRun{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		ActionID:  ar.ActionID,
		Kind:      ar.Kind,
		Status:    ar.Status,
		LatencyMs: ar.LatencyMs,
		ErrorCode: ar.ErrorCode,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.recorder.RecordActionRun(context.WithoutCancel(ctx), run); err != nil {
		logging.Warn("failed to record action run", "action_id", ar.ActionID, "error", err)
	}
}

// runner handles each action kind. ctx carries cancellation; desktop is
// the same context detached from it, used for anything with side effects.
type runner struct {
	e       *Executor
	ctx     context.Context
	desktop context.Context
}

var _ models.ActionVisitor = (*runner)(nil)

func (r *runner) VisitOpenApp(a models.OpenAppAction) error {
	if a.BundleID == "" {
		if err := r.e.input.ActivateApp(r.desktop, a.Name); err != nil {
			return scriptError(err)
		}
		return nil
	}

	timeout := r.e.cfg.OpenAppTimeout
	if a.TimeoutMs > 0 {
		timeout = time.Duration(a.TimeoutMs) * time.Millisecond
	}
	err := r.e.input.OpenBundle(r.desktop, a.BundleID, timeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, input.ErrAppNotFound):
		return newError(CodeInvalidPayload, err, "Could not resolve bundle id: %s", a.BundleID)
	case errors.Is(err, input.ErrLaunchTimeout):
		return newError(CodeInteractionFailed, err, "Timed out launching app bundle id %s", a.BundleID)
	default:
		return newError(CodeInteractionFailed, err, "Launch failed: %v", err)
	}
}

func (r *runner) VisitType(a models.TypeAction) error {
	if err := r.e.input.TypeText(r.desktop, a.Text); err != nil {
		return scriptError(err)
	}
	return nil
}

func (r *runner) VisitKeyCombo(a models.KeyComboAction) error {
	kc, err := input.ParseKeyCombo(a.Combo)
	if err != nil {
		return newError(CodeInvalidPayload, err, "Invalid key_combo %q: %v", a.Combo, err)
	}
	if err := r.e.input.PostKeyCombo(r.desktop, kc); err != nil {
		return eventError(err)
	}
	return nil
}

func (r *runner) VisitRunScript(a models.RunScriptAction) error {
	if err := r.e.input.RunScript(r.desktop, a.Script); err != nil {
		return scriptError(err)
	}
	return nil
}

func (r *runner) VisitWait(a models.WaitAction) error {
	d := time.Duration(a.TimeoutMs) * time.Millisecond
	if d < minWait {
		d = minWait
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-r.ctx.Done():
		return newError(CodeCanceled, r.ctx.Err(), "execution canceled during wait")
	}
}

func (r *runner) VisitClick(a models.ClickAction) error {
	if r.e.probe == nil || !r.e.probe.AutomationAllowed(r.desktop) {
		return newError(CodePermissionDenied, nil, "Accessibility permission is required for click actions")
	}
	if r.e.elements == nil {
		return newError(CodePermissionDenied, nil, "Accessibility is unavailable")
	}

	tree, err := r.e.elements.Snapshot(r.desktop, r.e.cfg.SearchLimits)
	if err != nil {
		return newError(CodeElementNotFound, err, "Focused app unavailable: %v", err)
	}
	node, ok := axtree.Find(tree.Root, a.Target, r.e.cfg.SearchLimits)
	if !ok {
		return newError(CodeElementNotFound, nil, "Could not find element matching target '%s'", a.Target)
	}
	if err := r.e.elements.Press(r.desktop, tree, node); err != nil {
		return newError(CodeInteractionFailed, err, "Press action failed: %v", err)
	}
	return nil
}

func (r *runner) VisitScroll(a models.ScrollAction) error {
	if err := r.e.input.PostScroll(r.desktop, input.ParseScroll(a.Target)); err != nil {
		return eventError(err)
	}
	return nil
}

func (r *runner) VisitSelectMenuItem(a models.SelectMenuItemAction) error {
	app, err := r.e.input.FrontmostAppName(r.desktop)
	if err != nil || app == "" {
		return newError(CodeInvalidPayload, err, "Unable to detect frontmost app for menu selection")
	}
	if err := r.e.input.ClickMenuItem(r.desktop, app, a.Menu, a.Item); err != nil {
		return scriptError(err)
	}
	return nil
}

// scriptError surfaces the script engine's own message.
func scriptError(err error) error {
	var se *connectors.ScriptError
	if errors.As(err, &se) {
		return newError(CodeScriptFailed, err, "AppleScript failed: %s", se.Message)
	}
	return newError(CodeScriptFailed, err, "AppleScript failed: %v", err)
}

func eventError(err error) error {
	if errors.Is(err, input.ErrEventCreation) {
		return newError(CodeEventCreation, err, "Failed to create system input event")
	}
	return newError(CodeInteractionFailed, err, "Input event failed: %v", err)
}
