// Package test contains helpers shared by the tests of other packages
package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridge/parallel"
	"github.com/ridge/travertine/tlog"
	"github.com/stretchr/testify/require"
)

// Timeout bounds every wait performed by these helpers
const Timeout = 3 * time.Second

// Context returns a new testing context carrying a test logger
func Context(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*Timeout)
	t.Cleanup(cancel)
	return tlog.WithLogger(ctx, tlog.NewForTesting(t))
}

// Group returns a parallel.Group with a testing context.
//
// The group is shut down when the test ends. If it finishes with an error
// other than context.Canceled, the test is failed.
func Group(t *testing.T) *parallel.Group {
	group := parallel.NewGroup(Context(t))
	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	})
	return group
}

// Receive waits for a value on the channel and fails the test on timeout or
// if the channel is closed
func Receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(Timeout):
		require.FailNow(t, "timeout waiting for a value")
		panic("unreachable")
	}
}
