package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRelay_FinalTranscript(t *testing.T) {
	r := NewRelay()
	var mu sync.Mutex
	var partials []string
	r.SetPartialHandler(func(s string) {
		mu.Lock()
		partials = append(partials, s)
		mu.Unlock()
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.Push("open", false)
	r.Push("open Saf", false)
	r.Push(" open Safari ", true)

	text, err := r.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if text != "open Safari" {
		t.Errorf("text = %q", text)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(partials) != 2 {
		t.Errorf("partials = %v, final text must not be reported as partial", partials)
	}
}

func TestRelay_StopUsesLatestPartialAfterGrace(t *testing.T) {
	r := NewRelay()
	r.FlushGrace = 10 * time.Millisecond
	r.Start(context.Background())
	r.Push("scroll down", false)

	text, err := r.Stop(context.Background())
	if err != nil || text != "scroll down" {
		t.Errorf("Stop() = %q, %v", text, err)
	}
}

func TestRelay_FinalDuringGrace(t *testing.T) {
	r := NewRelay()
	r.FlushGrace = 2 * time.Second
	r.Start(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Push("new tab", true)
	}()

	start := time.Now()
	text, err := r.Stop(context.Background())
	if err != nil || text != "new tab" {
		t.Errorf("Stop() = %q, %v", text, err)
	}
	if time.Since(start) > time.Second {
		t.Error("Stop should return as soon as the final transcript arrives")
	}
}

func TestRelay_Errors(t *testing.T) {
	r := NewRelay()
	r.FlushGrace = time.Millisecond

	if _, err := r.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop before Start = %v", err)
	}
	if err := r.Push("x", false); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Push before Start = %v", err)
	}

	r.Start(context.Background())
	if _, err := r.Stop(context.Background()); !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("blank transcript = %v", err)
	}

	r.SetAuthorized(false)
	if err := r.Start(context.Background()); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("unauthorized Start = %v", err)
	}
	r.SetAuthorized(true)
	r.SetAvailable(false)
	if err := r.Start(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("unavailable Start = %v", err)
	}
}

func TestRelay_StopCanceled(t *testing.T) {
	r := NewRelay()
	r.FlushGrace = time.Minute
	r.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Stop(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Stop() = %v, want context.Canceled", err)
	}
	if err := r.Push("late words", true); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Push after canceled Stop = %v, want ErrNotRecording", err)
	}
	if r.Recording() {
		t.Error("relay should not be recording after a canceled Stop")
	}
}
