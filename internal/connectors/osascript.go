package connectors

import (
	"context"
	"fmt"
	"strings"
)

// Script languages understood by osascript.
const (
	AppleScript = "AppleScript"
	JavaScript  = "JavaScript"
)

// ScriptError carries the script engine's own error text.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// RunScript executes source with osascript in the given language and returns
// trimmed stdout. A non-zero exit becomes a *ScriptError with the engine's stderr.
func RunScript(ctx context.Context, c Connector, language, source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("script payload is empty")
	}

	args := []string{"-e", source}
	if language != "" && language != AppleScript {
		args = []string{"-l", language, "-e", source}
	}

	res, err := c.Execute(ctx, "osascript", args)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("osascript exited with code %d", res.ExitCode)
		}
		return "", &ScriptError{Message: msg}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// EscapeAppleScript makes s safe inside an AppleScript string literal.
func EscapeAppleScript(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ", "\r", " ")
	return r.Replace(s)
}
