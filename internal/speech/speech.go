// Package speech defines speech capture and a capture fed by an external
// dictation helper.
package speech

import (
	"context"
	"errors"
)

var (
	ErrEmptyTranscript   = errors.New("no speech was detected")
	ErrNotAuthorized     = errors.New("speech recognition is not authorized")
	ErrDeviceUnavailable = errors.New("speech input device is unavailable")
	ErrNotRecording      = errors.New("not recording")
)

// Capture records one utterance at a time.
type Capture interface {
	Start(ctx context.Context) error
	// Stop ends recording and returns the final transcript.
	Stop(ctx context.Context) (string, error)
	// SetPartialHandler registers fn to receive partial transcripts.
	// fn may be called from any goroutine.
	SetPartialHandler(fn func(text string))
}
