package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/orange/internal/models"
)

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []models.TelemetryEvent
	err    error
	block  chan struct{}
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(ctx context.Context, ev models.TelemetryEvent) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a := &recordingSink{}
	var mu sync.Mutex
	var stages []string
	b := FuncSink("func", func(_ context.Context, ev models.TelemetryEvent) error {
		mu.Lock()
		stages = append(stages, ev.Stage)
		mu.Unlock()
		return nil
	})

	d := New(DefaultConfig(), a, b)
	d.Start()
	defer d.Stop()

	for _, stage := range []string{"listening", "planning", "executing"} {
		if !d.Emit(models.TelemetryEvent{SessionID: "s1", Stage: stage, Status: "ok"}) {
			t.Fatalf("Emit(%s) dropped", stage)
		}
	}

	waitFor(t, func() bool { return d.GetStats().Delivered == 3 })
	if a.count() != 3 {
		t.Errorf("sink a got %d events", a.count())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(stages) != 3 {
		t.Errorf("sink b got %v", stages)
	}
}

func TestDispatcher_EmitNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	sink := &recordingSink{block: block}
	d := New(&Config{QueueSize: 2, Workers: 1, SinkTimeout: time.Minute}, sink)
	d.Start()
	defer func() {
		close(block)
		d.Stop()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Emit(models.TelemetryEvent{Stage: "executing"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
	if d.GetStats().Dropped == 0 {
		t.Error("expected drops with a stalled sink and a tiny queue")
	}
}

func TestDispatcher_SinkFailureCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("offline")}
	d := New(nil, sink)
	d.Start()
	defer d.Stop()

	d.Emit(models.TelemetryEvent{Stage: "planning"})
	waitFor(t, func() bool { return d.GetStats().Failed["recording"] == 1 })
}

func TestDispatcher_EmitWhenStopped(t *testing.T) {
	d := New(nil)
	if d.Emit(models.TelemetryEvent{Stage: "idle"}) {
		t.Error("Emit before Start should drop")
	}
	d.Start()
	d.Stop()
	if d.Emit(models.TelemetryEvent{Stage: "idle"}) {
		t.Error("Emit after Stop should drop")
	}
	if got := d.GetStats().Dropped; got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
}
