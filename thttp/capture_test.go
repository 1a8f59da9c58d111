package thttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureResponse(t *testing.T) {
	var captured Captured
	w := CaptureResponse(httptest.NewRecorder(), &captured)
	w.WriteHeader(http.StatusCreated)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = w.Write([]byte(", world"))
	require.NoError(t, err)
	assert.Equal(t, Captured{Status: http.StatusCreated, Bytes: 12}, captured)
}

func TestCaptureResponseImplicitStatus(t *testing.T) {
	var captured Captured
	w := CaptureResponse(httptest.NewRecorder(), &captured)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, captured.Status)
}
