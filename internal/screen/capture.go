package screen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/fentz26/orange/internal/connectors"
)

// ScreencaptureShot takes screenshots with the screencapture tool.
type ScreencaptureShot struct {
	conn connectors.Connector
	// TempDir receives the intermediate file. Empty uses os.TempDir.
	TempDir string
}

// NewScreencaptureShot creates a Screenshotter that runs through conn.
func NewScreencaptureShot(conn connectors.Connector) *ScreencaptureShot {
	return &ScreencaptureShot{conn: conn}
}

// CaptureBase64 implements Screenshotter.
func (s *ScreencaptureShot) CaptureBase64(ctx context.Context) (string, error) {
	f, err := os.CreateTemp(s.TempDir, "orange-shot-*.jpg")
	if err != nil {
		return "", fmt.Errorf("creating screenshot file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	res, err := s.conn.Execute(ctx, "screencapture", []string{"-x", "-t", "jpg", path})
	if err != nil {
		return "", fmt.Errorf("running screencapture: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("screencapture exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading screenshot: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("screencapture produced an empty image")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
