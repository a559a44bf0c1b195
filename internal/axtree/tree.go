// Package axtree walks accessibility element trees within a fixed budget.
package axtree

import (
	"fmt"
	"strings"
)

// Limits bounds a traversal. Nodes deeper than MaxDepth are never visited
// and no more than MaxNodes nodes are visited in total.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

var (
	// SummaryLimits is the budget for context summaries.
	SummaryLimits = Limits{MaxDepth: 5, MaxNodes: 140}
	// SearchLimits is the budget for click-target resolution.
	SearchLimits = Limits{MaxDepth: 8, MaxNodes: 500}
)

const unknownRole = "UnknownRole"

// Node is one accessibility element. Path holds the child indexes that lead
// from the snapshot root to this node and is what Press replays.
type Node struct {
	Role            string  `json:"role"`
	Title           string  `json:"title"`
	Value           string  `json:"value"`
	Description     string  `json:"description"`
	RoleDescription string  `json:"role_description"`
	Enabled         bool    `json:"enabled"`
	Path            []int   `json:"path"`
	Children        []*Node `json:"-"`
}

// Matches reports whether needle occurs in the node's title, description,
// value, role or role description, ignoring case.
func (n *Node) Matches(needle string) bool {
	needle = strings.ToLower(needle)
	for _, field := range []string{n.Title, n.Description, n.Value, n.Role, n.RoleDescription} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Walk visits root and its descendants breadth first. fn receives each
// node with its depth and returns false to stop. Walk returns the number
// of nodes visited. Running out of budget is not an error.
func Walk(root *Node, lim Limits, fn func(n *Node, depth int) bool) int {
	if root == nil || lim.MaxNodes <= 0 || lim.MaxDepth < 0 {
		return 0
	}

	type entry struct {
		node  *Node
		depth int
	}
	queue := []entry{{root, 0}}
	visited := 0

	for len(queue) > 0 && visited < lim.MaxNodes {
		cur := queue[0]
		queue = queue[1:]
		visited++

		if !fn(cur.node, cur.depth) {
			break
		}
		if cur.depth >= lim.MaxDepth {
			continue
		}
		for _, child := range cur.node.Children {
			if child != nil {
				queue = append(queue, entry{child, cur.depth + 1})
			}
		}
	}
	return visited
}

// Summarize renders one line per visited node.
func Summarize(root *Node, lim Limits) string {
	var b strings.Builder
	count := 0
	Walk(root, lim, func(n *Node, depth int) bool {
		count++
		if count > 1 {
			b.WriteByte('\n')
		}
		role := n.Role
		if role == "" {
			role = unknownRole
		}
		fmt.Fprintf(&b, "[%d] depth=%d role=%s title=%q value=%q enabled=%t description=%q",
			count, depth, role, n.Title, n.Value, n.Enabled, n.Description)
		return true
	})
	return b.String()
}

// Find returns the first node, in breadth-first order, that matches target.
func Find(root *Node, target string, lim Limits) (*Node, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, false
	}
	var found *Node
	Walk(root, lim, func(n *Node, _ int) bool {
		if n.Matches(target) {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}
