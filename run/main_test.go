package run

import (
	"context"
	"errors"
	"testing"

	"github.com/ridge/travertine/test"
	"github.com/ridge/travertine/tlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogConfig(t *testing.T) {
	config, err := logConfig([]string{"--log-format=json", "--log-color=no", "-v", "--unknown=1"})
	require.NoError(t, err)
	assert.Equal(t, tlog.Config{Format: tlog.FormatJSON, Color: tlog.ColorNo, Verbose: true}, config)

	_, err = logConfig([]string{"--log-format=xml"})
	require.Error(t, err)
	var wec WithExitCode
	require.True(t, errors.As(err, &wec))
	assert.Equal(t, 2, wec.ExitCode())

	_, err = logConfig([]string{"--log-format=text", "--log-color=sometimes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--log-color")
}

func TestHandleSignalsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(test.Context(t))
	cancel()
	assert.ErrorIs(t, handleSignals(ctx), context.Canceled)
}
