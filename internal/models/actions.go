package models

import (
	"errors"
	"fmt"
	"strings"
)

// ActionKind identifies what an AgentAction does.
type ActionKind string

const (
	KindClick          ActionKind = "click"
	KindType           ActionKind = "type"
	KindKeyCombo       ActionKind = "key_combo"
	KindOpenApp        ActionKind = "open_app"
	KindRunScript      ActionKind = "run_script"
	KindWait           ActionKind = "wait"
	KindScroll         ActionKind = "scroll"
	KindSelectMenuItem ActionKind = "select_menu_item"

	// kindRunAppleScript is the older wire name for run_script.
	kindRunAppleScript ActionKind = "run_applescript"
)

// DefaultTimeoutMs is applied when the planner omits timeout_ms.
const DefaultTimeoutMs = 3000

// MaxTimeoutMs caps timeout_ms so it always converts to a positive duration.
const MaxTimeoutMs = 10 * 60 * 1000

// Normalize maps wire aliases to their canonical kind.
func (k ActionKind) Normalize() ActionKind {
	if k == kindRunAppleScript {
		return KindRunScript
	}
	return k
}

// AgentAction is the wire form of a single planned action.
type AgentAction struct {
	ID              string     `json:"id"`
	Kind            ActionKind `json:"kind"`
	Target          string     `json:"target,omitempty"`
	Text            string     `json:"text,omitempty"`
	KeyCombo        string     `json:"key_combo,omitempty"`
	AppBundleID     string     `json:"app_bundle_id,omitempty"`
	TimeoutMs       int        `json:"timeout_ms,omitempty"`
	Destructive     bool       `json:"destructive"`
	ExpectedOutcome string     `json:"expected_outcome,omitempty"`
}

// ErrInvalidAction is wrapped by every validation failure from Typed.
var ErrInvalidAction = errors.New("invalid action payload")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAction, fmt.Sprintf(format, args...))
}

// Action is the validated, typed form of an AgentAction.
// The set of implementations is closed; see ActionVisitor.
type Action interface {
	ActionID() string
	Kind() ActionKind
	Accept(v ActionVisitor) error
	sealed()
}

// ActionVisitor has one method per action kind. Anything that handles
// actions implements it, so a new kind fails to compile until every
// handler covers it.
type ActionVisitor interface {
	VisitClick(ClickAction) error
	VisitType(TypeAction) error
	VisitKeyCombo(KeyComboAction) error
	VisitOpenApp(OpenAppAction) error
	VisitRunScript(RunScriptAction) error
	VisitWait(WaitAction) error
	VisitScroll(ScrollAction) error
	VisitSelectMenuItem(SelectMenuItemAction) error
}

type base struct{ id string }

func (b base) ActionID() string { return b.id }
func (base) sealed()            {}

// ClickAction presses the first accessibility element matching Target.
type ClickAction struct {
	base
	Target string
}

// TypeAction types Text as keystrokes.
type TypeAction struct {
	base
	Text string
}

// KeyComboAction presses a "+"-delimited combination such as "cmd+shift+t".
type KeyComboAction struct {
	base
	Combo string
}

// OpenAppAction launches BundleID, or activates Name when no bundle id is given.
type OpenAppAction struct {
	base
	BundleID  string
	Name      string
	TimeoutMs int
}

// RunScriptAction runs Script verbatim in the automation engine.
type RunScriptAction struct {
	base
	Script string
}

// WaitAction sleeps for TimeoutMs.
type WaitAction struct {
	base
	TimeoutMs int
}

// ScrollAction scrolls according to a direction/magnitude description.
type ScrollAction struct {
	base
	Target string
}

// SelectMenuItemAction clicks Item inside Menu of the frontmost app.
type SelectMenuItemAction struct {
	base
	Menu string
	Item string
}

func (ClickAction) Kind() ActionKind          { return KindClick }
func (TypeAction) Kind() ActionKind           { return KindType }
func (KeyComboAction) Kind() ActionKind       { return KindKeyCombo }
func (OpenAppAction) Kind() ActionKind        { return KindOpenApp }
func (RunScriptAction) Kind() ActionKind      { return KindRunScript }
func (WaitAction) Kind() ActionKind           { return KindWait }
func (ScrollAction) Kind() ActionKind         { return KindScroll }
func (SelectMenuItemAction) Kind() ActionKind { return KindSelectMenuItem }

func (a ClickAction) Accept(v ActionVisitor) error          { return v.VisitClick(a) }
func (a TypeAction) Accept(v ActionVisitor) error           { return v.VisitType(a) }
func (a KeyComboAction) Accept(v ActionVisitor) error       { return v.VisitKeyCombo(a) }
func (a OpenAppAction) Accept(v ActionVisitor) error        { return v.VisitOpenApp(a) }
func (a RunScriptAction) Accept(v ActionVisitor) error      { return v.VisitRunScript(a) }
func (a WaitAction) Accept(v ActionVisitor) error           { return v.VisitWait(a) }
func (a ScrollAction) Accept(v ActionVisitor) error         { return v.VisitScroll(a) }
func (a SelectMenuItemAction) Accept(v ActionVisitor) error { return v.VisitSelectMenuItem(a) }

// Typed validates the action and returns its typed variant. Required
// fields are enforced per kind; nothing is filled in on a best-effort basis.
func (a AgentAction) Typed() (Action, error) {
	if strings.TrimSpace(a.ID) == "" {
		return nil, invalid("missing action id")
	}
	b := base{id: a.ID}
	timeout := min(a.TimeoutMs, MaxTimeoutMs)
	if timeout <= 0 {
		timeout = DefaultTimeoutMs
	}

	switch a.Kind.Normalize() {
	case KindClick:
		if strings.TrimSpace(a.Target) == "" {
			return nil, invalid("missing target for click action")
		}
		return ClickAction{base: b, Target: a.Target}, nil

	case KindType:
		if a.Text == "" {
			return nil, invalid("missing text for type action")
		}
		return TypeAction{base: b, Text: a.Text}, nil

	case KindKeyCombo:
		if strings.TrimSpace(a.KeyCombo) == "" {
			return nil, invalid("missing key_combo value")
		}
		return KeyComboAction{base: b, Combo: a.KeyCombo}, nil

	case KindOpenApp:
		bundle := strings.TrimSpace(a.AppBundleID)
		name := strings.TrimSpace(a.Target)
		if bundle == "" && name == "" {
			return nil, invalid("missing app name for open_app")
		}
		return OpenAppAction{base: b, BundleID: bundle, Name: name, TimeoutMs: min(a.TimeoutMs, MaxTimeoutMs)}, nil

	case KindRunScript:
		script := a.Text
		if script == "" {
			script = a.Target
		}
		if strings.TrimSpace(script) == "" {
			return nil, invalid("script payload is empty")
		}
		return RunScriptAction{base: b, Script: script}, nil

	case KindWait:
		return WaitAction{base: b, TimeoutMs: timeout}, nil

	case KindScroll:
		return ScrollAction{base: b, Target: a.Target}, nil

	case KindSelectMenuItem:
		if strings.TrimSpace(a.Target) == "" {
			return nil, invalid("missing target for select_menu_item action")
		}
		parts := SplitMenuPath(a.Target)
		if len(parts) < 2 {
			return nil, invalid("menu path must be like 'File > New Window' (received: %s)", a.Target)
		}
		return SelectMenuItemAction{base: b, Menu: parts[0], Item: parts[1]}, nil

	default:
		return nil, invalid("unsupported action kind %q", a.Kind)
	}
}

// menuDelimiters are tried longest first so "->" is not split on ">".
var menuDelimiters = []string{" > ", "->", ">", "/"}

// SplitMenuPath splits "File > New Window" style paths into trimmed segments.
func SplitMenuPath(target string) []string {
	working := target
	for _, d := range menuDelimiters {
		working = strings.ReplaceAll(working, d, "|")
	}
	var parts []string
	for _, p := range strings.Split(working, "|") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
