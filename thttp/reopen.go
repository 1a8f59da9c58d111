package thttp

import (
	"context"
	"time"
)

// reopen returns a context that keeps the values of ctx but is not tied to
// its lifespan and has no deadline. It works on an already closed context
// too.
func reopen(ctx context.Context) context.Context {
	return reopened{Context: ctx}
}

type reopened struct {
	context.Context //nolint:containedctx // wraps a context
}

func (reopened) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (reopened) Done() <-chan struct{} {
	return nil
}

func (reopened) Err() error {
	return nil
}
