// Package telemetry delivers session stage events to sinks without ever
// blocking the caller.
package telemetry

import (
	"context"
	"sync"

	"github.com/fentz26/orange/internal/logging"
	"github.com/fentz26/orange/internal/models"
)

// Sink receives telemetry events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev models.TelemetryEvent) error
}

type funcSink struct {
	name string
	fn   func(context.Context, models.TelemetryEvent) error
}

func (s funcSink) Name() string { return s.name }

func (s funcSink) Deliver(ctx context.Context, ev models.TelemetryEvent) error { return s.fn(ctx, ev) }

// FuncSink adapts fn into a Sink called name.
func FuncSink(name string, fn func(context.Context, models.TelemetryEvent) error) Sink {
	return funcSink{name: name, fn: fn}
}

// Emitter accepts telemetry events.
type Emitter interface {
	Emit(ev models.TelemetryEvent) bool
}

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	Queued    int            `json:"queued"`
	Delivered int            `json:"delivered"`
	Dropped   int            `json:"dropped"`
	Failed    map[string]int `json:"failed"`
	Workers   int            `json:"workers"`
}

// Dispatcher fans events out to sinks from a bounded queue.
type Dispatcher struct {
	config *Config
	sinks  []Sink
	queue  chan models.TelemetryEvent

	mu        sync.Mutex
	running   bool
	delivered int
	dropped   int
	failed    map[string]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher. Call Start before emitting.
func New(cfg *Config, sinks ...Sink) *Dispatcher {
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		config: cfg,
		sinks:  sinks,
		queue:  make(chan models.TelemetryEvent, cfg.QueueSize),
		failed: make(map[string]int),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	logging.Debug("telemetry dispatcher started", "workers", d.config.Workers, "sinks", len(d.sinks))
}

// Stop halts the workers. Events still queued are discarded.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	logging.Debug("telemetry dispatcher stopped")
}

// Emit queues ev and returns immediately. It reports false when the event
// was dropped because the dispatcher is stopped or the queue is full.
func (d *Dispatcher) Emit(ev models.TelemetryEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		d.dropped++
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped++
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-d.queue:
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) deliver(ev models.TelemetryEvent) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(d.ctx, d.config.SinkTimeout)
		err := sink.Deliver(ctx, ev)
		cancel()
		if err != nil {
			d.mu.Lock()
			d.failed[sink.Name()]++
			d.mu.Unlock()
			logging.Debug("telemetry delivery failed", "sink", sink.Name(), "stage", ev.Stage, "error", err)
		}
	}
	d.mu.Lock()
	d.delivered++
	d.mu.Unlock()
}

// GetStats returns current dispatcher statistics.
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	failed := make(map[string]int, len(d.failed))
	for k, v := range d.failed {
		failed[k] = v
	}
	return Stats{
		Queued:    len(d.queue),
		Delivered: d.delivered,
		Dropped:   d.dropped,
		Failed:    failed,
		Workers:   d.config.Workers,
	}
}
