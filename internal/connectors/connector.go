// Package connectors defines how orange reaches OS automation tools.
package connectors

import "context"

// ExecResult is the captured outcome of one tool invocation.
type ExecResult struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Connector runs OS automation commands.
type Connector interface {
	Name() string

	// Execute runs a command and returns the result. A non-zero exit code
	// is reported in the result, not as an error.
	Execute(ctx context.Context, cmd string, args []string) (*ExecResult, error)

	// IsAllowed reports whether cmd with args may run. Execute refuses
	// anything it rejects.
	IsAllowed(cmd string, args []string) bool
}
