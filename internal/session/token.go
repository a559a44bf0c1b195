package session

import (
	"context"
	"sync/atomic"
)

// token is the cancellation handle of one pipeline run. The context stops
// suspended calls; the flag is re-checked after each of them so a result
// that arrives after cancellation is dropped.
type token struct {
	ctx      context.Context
	cancel   context.CancelFunc
	canceled atomic.Bool
}

// newToken derives a token from parent's values but not its deadline, so a
// run outlives the request that started it.
func newToken(parent context.Context) *token {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &token{ctx: ctx, cancel: cancel}
}

func (t *token) stop() {
	t.canceled.Store(true)
	t.cancel()
}

func (t *token) done() bool {
	return t.canceled.Load()
}
