package screen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fentz26/orange/internal/connectors"
	"github.com/fentz26/orange/internal/models"
)

const frontAppScript = `function run() {
  var procs = Application("System Events").applicationProcesses.whose({frontmost: true})();
  if (procs.length === 0) return JSON.stringify({});
  var p = procs[0], out = {};
  try { out.name = p.name(); } catch (e) {}
  try { out.bundle_id = p.bundleIdentifier(); } catch (e) {}
  try { if (p.windows.length > 0) out.window_title = p.windows[0].name(); } catch (e) {}
  return JSON.stringify(out);
}`

// browserURLScripts read the active tab URL of supported browsers.
var browserURLScripts = map[string]string{
	"com.apple.Safari": `tell application "Safari"
	if (count of documents) > 0 then
		return URL of front document
	end if
end tell`,
	"com.google.Chrome": `tell application "Google Chrome"
	if (count of windows) > 0 then
		return URL of active tab of front window
	end if
end tell`,
}

// ScriptAppDetector reads frontmost app metadata through System Events.
type ScriptAppDetector struct {
	conn connectors.Connector
}

// NewScriptAppDetector creates a detector that runs through conn.
func NewScriptAppDetector(conn connectors.Connector) *ScriptAppDetector {
	return &ScriptAppDetector{conn: conn}
}

// CurrentApp implements AppDetector. Browser URL lookups are best effort.
func (d *ScriptAppDetector) CurrentApp(ctx context.Context) (models.AppMetadata, error) {
	out, err := connectors.RunScript(ctx, d.conn, connectors.JavaScript, frontAppScript)
	if err != nil {
		return models.AppMetadata{}, fmt.Errorf("detecting frontmost app: %w", err)
	}
	var app models.AppMetadata
	if err := json.Unmarshal([]byte(out), &app); err != nil {
		return models.AppMetadata{}, fmt.Errorf("decoding frontmost app: %w", err)
	}

	if script, ok := browserURLScripts[app.BundleID]; ok {
		if url, err := connectors.RunScript(ctx, d.conn, connectors.AppleScript, script); err == nil {
			app.URL = url
		}
	}
	return app, nil
}
