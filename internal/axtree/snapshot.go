package axtree

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fentz26/orange/internal/connectors"
)

// Scope names the root a snapshot was taken from.
type Scope string

const (
	ScopeWindow  Scope = "window"
	ScopeProcess Scope = "process"
)

// Tree is an in-memory copy of the frontmost application's element tree.
type Tree struct {
	App   string
	Scope Scope
	Root  *Node
}

// Contains reports whether n was produced by this snapshot.
func (t *Tree) Contains(n *Node) bool {
	found := false
	Walk(t.Root, Limits{MaxDepth: 1 << 20, MaxNodes: 1 << 20}, func(cur *Node, _ int) bool {
		if cur == n {
			found = true
			return false
		}
		return true
	})
	return found
}

// Snapshotter reads element trees through System Events using JXA.
type Snapshotter struct {
	conn connectors.Connector
}

// NewSnapshotter creates a Snapshotter that runs scripts through conn.
func NewSnapshotter(conn connectors.Connector) *Snapshotter {
	return &Snapshotter{conn: conn}
}

const dumpScript = `function run() {
  function str(v) { if (v === null || v === undefined) return ""; try { return String(v); } catch (e) { return ""; } }
  function attr(el, name) { try { return el[name](); } catch (e) { return null; } }
  var procs = Application("System Events").applicationProcesses.whose({frontmost: true})();
  if (procs.length === 0) return JSON.stringify({scope: "", app: "", nodes: []});
  var proc = procs[0];
  var root = proc, scope = "process";
  try { if (proc.windows.length > 0) { root = proc.windows[0]; scope = "window"; } } catch (e) {}
  var nodes = [], queue = [{el: root, path: [], depth: 0}];
  while (queue.length > 0 && nodes.length < %d) {
    var cur = queue.shift();
    nodes.push({
      path: cur.path,
      role: str(attr(cur.el, "role")),
      title: str(attr(cur.el, "title")),
      value: str(attr(cur.el, "value")),
      description: str(attr(cur.el, "description")),
      role_description: str(attr(cur.el, "roleDescription")),
      enabled: attr(cur.el, "enabled") === true
    });
    if (cur.depth >= %d) continue;
    var kids = [];
    try { kids = cur.el.uiElements(); } catch (e) {}
    for (var i = 0; i < kids.length; i++) queue.push({el: kids[i], path: cur.path.concat([i]), depth: cur.depth + 1});
  }
  return JSON.stringify({scope: scope, app: str(attr(proc, "name")), nodes: nodes});
}`

const pressScript = `function run() {
  var procs = Application("System Events").applicationProcesses.whose({frontmost: true})();
  if (procs.length === 0) throw new Error("no frontmost application");
  var el = %q === "window" ? procs[0].windows[0] : procs[0];
  var path = %s;
  for (var i = 0; i < path.length; i++) el = el.uiElements[path[i]];
  el.actions.byName("AXPress").perform();
  return "ok";
}`

const trustedScript = `ObjC.import("ApplicationServices"); function run() { return String($.AXIsProcessTrusted()); }`

type dump struct {
	Scope Scope   `json:"scope"`
	App   string  `json:"app"`
	Nodes []*Node `json:"nodes"`
}

// Snapshot copies the focused window of the frontmost app, or the app
// itself when it has no window, within lim.
func (s *Snapshotter) Snapshot(ctx context.Context, lim Limits) (*Tree, error) {
	out, err := connectors.RunScript(ctx, s.conn, connectors.JavaScript,
		fmt.Sprintf(dumpScript, lim.MaxNodes, lim.MaxDepth))
	if err != nil {
		return nil, fmt.Errorf("reading accessibility tree: %w", err)
	}
	return parseDump([]byte(out))
}

func parseDump(data []byte) (*Tree, error) {
	var d dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
	}
	if d.Scope == "" || len(d.Nodes) == 0 {
		return nil, ErrNoFrontmostApp
	}

	// Nodes arrive breadth first, so a parent is always indexed before its children.
	byPath := make(map[string]*Node, len(d.Nodes))
	for i, n := range d.Nodes {
		if n == nil {
			return nil, fmt.Errorf("%w: null node at %d", ErrMalformedDump, i)
		}
		if n.Path == nil {
			n.Path = []int{}
		}
		if i == 0 {
			if len(n.Path) != 0 {
				return nil, fmt.Errorf("%w: first node is not the root", ErrMalformedDump)
			}
			byPath[pathKey(n.Path)] = n
			continue
		}
		if len(n.Path) == 0 {
			return nil, fmt.Errorf("%w: second root at %d", ErrMalformedDump, i)
		}
		parent, ok := byPath[pathKey(n.Path[:len(n.Path)-1])]
		if !ok {
			return nil, fmt.Errorf("%w: orphan node %v", ErrMalformedDump, n.Path)
		}
		parent.Children = append(parent.Children, n)
		byPath[pathKey(n.Path)] = n
	}

	return &Tree{App: d.App, Scope: d.Scope, Root: d.Nodes[0]}, nil
}

func pathKey(path []int) string {
	var b strings.Builder
	for _, p := range path {
		fmt.Fprintf(&b, "%d.", p)
	}
	return b.String()
}

// Press performs AXPress on n, which must come from t.
func (s *Snapshotter) Press(ctx context.Context, t *Tree, n *Node) error {
	if t == nil || n == nil || !t.Contains(n) {
		return ErrDetachedNode
	}
	path, err := json.Marshal(n.Path)
	if err != nil {
		return err
	}
	_, err = connectors.RunScript(ctx, s.conn, connectors.JavaScript,
		fmt.Sprintf(pressScript, string(t.Scope), path))
	return err
}

// AutomationAllowed reports whether this process is trusted for accessibility.
func (s *Snapshotter) AutomationAllowed(ctx context.Context) bool {
	out, err := connectors.RunScript(ctx, s.conn, connectors.JavaScript, trustedScript)
	return err == nil && strings.TrimSpace(out) == "true"
}
