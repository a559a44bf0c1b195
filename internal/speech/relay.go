package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/orange/internal/logging"
)

// DefaultFlushGrace is how long Stop waits for a final transcript.
const DefaultFlushGrace = 250 * time.Millisecond

// Relay is a Capture whose text is pushed in by a recognizer running
// elsewhere, such as the dictation helper behind the control API or the
// TUI command line.
type Relay struct {
	// FlushGrace bounds how long Stop waits for a final transcript after
	// recording ends.
	FlushGrace time.Duration

	mu         sync.Mutex
	authorized bool
	available  bool
	recording  bool
	latest     string
	final      bool
	finalCh    chan struct{}
	partials   []string
	onPartial  func(string)
	startedAt  time.Time
}

// NewRelay returns an authorized, available relay.
func NewRelay() *Relay {
	return &Relay{FlushGrace: DefaultFlushGrace, authorized: true, available: true}
}

// SetAuthorized records whether the recognizer has speech permission.
func (r *Relay) SetAuthorized(ok bool) {
	r.mu.Lock()
	r.authorized = ok
	r.mu.Unlock()
}

// SetAvailable records whether an input device is present.
func (r *Relay) SetAvailable(ok bool) {
	r.mu.Lock()
	r.available = ok
	r.mu.Unlock()
}

func (r *Relay) SetPartialHandler(fn func(string)) {
	r.mu.Lock()
	r.onPartial = fn
	r.mu.Unlock()
}

func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.authorized {
		return ErrNotAuthorized
	}
	if !r.available {
		return ErrDeviceUnavailable
	}
	r.recording = true
	r.latest = ""
	r.final = false
	r.finalCh = make(chan struct{})
	r.partials = nil
	r.startedAt = time.Now()
	return nil
}

// Push delivers recognized text. Partial text replaces the previous
// partial; final text completes the utterance.
func (r *Relay) Push(text string, final bool) error {
	r.mu.Lock()
	if r.finalCh == nil || r.final {
		r.mu.Unlock()
		return ErrNotRecording
	}
	r.latest = text
	if n := len(r.partials); n == 0 || r.partials[n-1] != text {
		r.partials = append(r.partials, text)
	}
	if final {
		r.final = true
		close(r.finalCh)
	}
	fn := r.onPartial
	r.mu.Unlock()

	if fn != nil && !final {
		fn(text)
	}
	return nil
}

func (r *Relay) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.finalCh == nil {
		r.mu.Unlock()
		return "", ErrNotRecording
	}
	r.recording = false
	finalCh, started := r.finalCh, r.startedAt
	r.mu.Unlock()

	t := time.NewTimer(r.FlushGrace)
	defer t.Stop()
	select {
	case <-finalCh:
	case <-t.C:
	case <-ctx.Done():
		r.mu.Lock()
		if r.finalCh == finalCh {
			r.final = true
			r.finalCh = nil
		}
		r.mu.Unlock()
		return "", ctx.Err()
	}

	r.mu.Lock()
	text := strings.TrimSpace(r.latest)
	partials := len(r.partials)
	r.final = true
	r.finalCh = nil
	r.mu.Unlock()

	logging.Info("speech capture stopped", "elapsed", time.Since(started).String(), "partials", partials)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// Recording reports whether Start has been called without a matching Stop.
func (r *Relay) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
