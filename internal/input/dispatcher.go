package input

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/orange/internal/connectors"
)

// Dispatcher posts synthetic input and runs automation scripts.
type Dispatcher interface {
	TypeText(ctx context.Context, text string) error
	PostKeyCombo(ctx context.Context, kc KeyCombo) error
	PostScroll(ctx context.Context, s Scroll) error
	// RunScript runs AppleScript source verbatim.
	RunScript(ctx context.Context, source string) error
	OpenBundle(ctx context.Context, bundleID string, timeout time.Duration) error
	ActivateApp(ctx context.Context, name string) error
	FrontmostAppName(ctx context.Context) (string, error)
	ClickMenuItem(ctx context.Context, app, menu, item string) error
}

// ScriptDispatcher implements Dispatcher with osascript and open.
type ScriptDispatcher struct {
	conn connectors.Connector
}

// NewScriptDispatcher creates a dispatcher that runs through conn.
func NewScriptDispatcher(conn connectors.Connector) *ScriptDispatcher {
	return &ScriptDispatcher{conn: conn}
}

// eventFailure is thrown by the event scripts when CoreGraphics returns null.
const eventFailure = "orange: event creation failed"

const keyEventScript = `ObjC.import("CoreGraphics");
function run() {
  var src = $.CGEventSourceCreate($.kCGEventSourceStateHIDSystemState);
  var down = $.CGEventCreateKeyboardEvent(src, %d, true);
  var up = $.CGEventCreateKeyboardEvent(src, %d, false);
  if (!src || !down || !up) throw new Error(%q);
  $.CGEventSetFlags(down, %d);
  $.CGEventSetFlags(up, %d);
  $.CGEventPost($.kCGHIDEventTap, down);
  $.CGEventPost($.kCGHIDEventTap, up);
  return "ok";
}`

const scrollEventScript = `ObjC.import("CoreGraphics");
function run() {
  var src = $.CGEventSourceCreate($.kCGEventSourceStateHIDSystemState);
  if (!src) throw new Error(%q);
  var ev = $.CGEventCreateScrollWheelEvent2(src, $.kCGScrollEventUnitLine, 2, %d, %d, 0);
  if (!ev) throw new Error(%q);
  $.CGEventPost($.kCGHIDEventTap, ev);
  return "ok";
}`

func (d *ScriptDispatcher) TypeText(ctx context.Context, text string) error {
	script := fmt.Sprintf("tell application \"System Events\"\n\tkeystroke \"%s\"\nend tell",
		connectors.EscapeAppleScript(text))
	return d.RunScript(ctx, script)
}

func (d *ScriptDispatcher) PostKeyCombo(ctx context.Context, kc KeyCombo) error {
	script := fmt.Sprintf(keyEventScript, kc.KeyCode, kc.KeyCode, eventFailure, kc.Flags, kc.Flags)
	return d.runEvent(ctx, script)
}

func (d *ScriptDispatcher) PostScroll(ctx context.Context, s Scroll) error {
	script := fmt.Sprintf(scrollEventScript, eventFailure, s.Vertical, s.Horizontal, eventFailure)
	return d.runEvent(ctx, script)
}

func (d *ScriptDispatcher) runEvent(ctx context.Context, script string) error {
	_, err := connectors.RunScript(ctx, d.conn, connectors.JavaScript, script)
	var scriptErr *connectors.ScriptError
	if errors.As(err, &scriptErr) && strings.Contains(scriptErr.Message, eventFailure) {
		return ErrEventCreation
	}
	return err
}

func (d *ScriptDispatcher) RunScript(ctx context.Context, source string) error {
	_, err := connectors.RunScript(ctx, d.conn, connectors.AppleScript, source)
	return err
}

// OpenBundle launches bundleID and waits up to timeout for open to return.
func (d *ScriptDispatcher) OpenBundle(ctx context.Context, bundleID string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := d.conn.Execute(ctx, "open", []string{"-b", bundleID})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: bundle id %s", ErrLaunchTimeout, bundleID)
		}
		return fmt.Errorf("launch failed: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: %s", ErrAppNotFound, bundleID)
	}
	return nil
}

func (d *ScriptDispatcher) ActivateApp(ctx context.Context, name string) error {
	script := fmt.Sprintf("tell application \"%s\"\n\tactivate\nend tell", connectors.EscapeAppleScript(name))
	return d.RunScript(ctx, script)
}

func (d *ScriptDispatcher) FrontmostAppName(ctx context.Context) (string, error) {
	out, err := connectors.RunScript(ctx, d.conn, connectors.AppleScript,
		`tell application "System Events" to get name of first application process whose frontmost is true`)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoFrontmostApp, err)
	}
	if out == "" {
		return "", ErrNoFrontmostApp
	}
	return out, nil
}

func (d *ScriptDispatcher) ClickMenuItem(ctx context.Context, app, menu, item string) error {
	script := fmt.Sprintf(`tell application "System Events"
	tell process "%s"
		click menu item "%s" of menu "%s" of menu bar 1
	end tell
end tell`,
		connectors.EscapeAppleScript(app),
		connectors.EscapeAppleScript(item),
		connectors.EscapeAppleScript(menu))
	return d.RunScript(ctx, script)
}
