package session

import (
	"context"

	"github.com/fentz26/orange/internal/logging"
)

// startFeedLocked listens to the planner's event stream for the current
// step, replacing any previous listener. Events only update the status
// line and the event log. Must be called with o.mu held.
func (o *Orchestrator) startFeedLocked(tok *token, sessionID string) {
	o.endFeedLocked()
	ctx, cancel := context.WithCancel(tok.ctx)
	o.stopFeed = cancel

	go func() {
		events, err := o.deps.Planner.StreamEvents(ctx, sessionID)
		if err != nil {
			if ctx.Err() == nil {
				logging.Debug("planner event stream unavailable", "session_id", sessionID, "error", err)
			}
			return
		}
		for ev := range events {
			o.mu.Lock()
			if o.tok != tok || ctx.Err() != nil {
				o.mu.Unlock()
				continue
			}
			o.cur.PlannerEvents = append(o.cur.PlannerEvents, ev)
			if n := len(o.cur.PlannerEvents); n > MaxPlannerEvents {
				o.cur.PlannerEvents = o.cur.PlannerEvents[n-MaxPlannerEvents:]
			}
			if ev.Message != "" {
				o.cur.StatusText = ev.Message
			}
			o.publish()
			o.mu.Unlock()
		}
	}()
}

// endFeedLocked stops the running listener, if any. Must be called with
// o.mu held.
func (o *Orchestrator) endFeedLocked() {
	if o.stopFeed != nil {
		o.stopFeed()
		o.stopFeed = nil
	}
}
