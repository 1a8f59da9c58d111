package thttp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func assertOpen(t *testing.T, ctx context.Context) {
	assert.Nil(t, ctx.Err())
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	select {
	case <-ctx.Done():
		assert.Fail(t, "context closed")
	default:
	}
}

func TestReopen(t *testing.T) {
	var key struct{}
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), &key, 42), time.Hour)

	ctx := reopen(parent)
	assert.Equal(t, 42, ctx.Value(&key))
	assertOpen(t, ctx)

	cancel()
	assert.Equal(t, 42, ctx.Value(&key))
	assertOpen(t, ctx)

	closed := reopen(parent)
	assert.Equal(t, 42, closed.Value(&key))
	assertOpen(t, closed)
}
