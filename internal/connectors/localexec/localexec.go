// Package localexec runs allowlisted macOS automation tools.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/fentz26/orange/internal/connectors"
	"github.com/fentz26/orange/internal/logging"
)

// maxOutput caps captured stdout and stderr. JXA accessibility dumps are the
// largest output and stay well under it.
const maxOutput = 4 << 20

// allowedCommands maps each executable to the flags its first argument may use.
var allowedCommands = map[string][]string{
	"osascript":     {"-e", "-l"},
	"open":          {"-b", "-g", "-a"},
	"screencapture": {"-x"},
}

// LocalExec runs automation tools as child processes of the daemon, so
// they inherit its accessibility and screen recording grants.
type LocalExec struct {
	workDir string
}

// New creates a new LocalExec connector.
func New(workDir string) *LocalExec {
	return &LocalExec{workDir: workDir}
}

// Name returns the connector identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// IsAllowed checks if a command is in the allowlist.
func (l *LocalExec) IsAllowed(cmd string, args []string) bool {
	allowedFlags, ok := allowedCommands[cmd]
	if !ok {
		return false
	}

	if len(args) == 0 {
		return false
	}

	first := args[0]
	for _, allowed := range allowedFlags {
		if first == allowed {
			return true
		}
	}
	return false
}

// Execute runs a command if it's in the allowlist.
func (l *LocalExec) Execute(ctx context.Context, cmd string, args []string) (*connectors.ExecResult, error) {
	if !l.IsAllowed(cmd, args) {
		return nil, fmt.Errorf("command not allowed: %s %s", cmd, strings.Join(args, " "))
	}

	execCmd := exec.CommandContext(ctx, cmd, args...)
	if l.workDir != "" {
		execCmd.Dir = l.workDir
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &capped{buf: &stdout}
	execCmd.Stderr = &capped{buf: &stderr}

	start := time.Now()
	err := execCmd.Run()
	logging.Debug("exec", "cmd", cmd, "flag", args[0], "elapsed_ms", time.Since(start).Milliseconds(), "error", err)

	exitCode := 0
	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return nil, fmt.Errorf("exec error: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("exec interrupted: %w", ctxErr)
		}
		exitCode = exitError.ExitCode()
	}

	return &connectors.ExecResult{
		Command:  cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// capped discards writes past maxOutput while reporting them as written,
// so a chatty child never blocks on a full pipe.
type capped struct {
	buf *bytes.Buffer
}

func (c *capped) Write(p []byte) (int, error) {
	if room := maxOutput - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}
