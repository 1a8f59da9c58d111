package thttp

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/travertine/request"
	"github.com/ridge/travertine/test"
	"github.com/ridge/travertine/tnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	group := test.Group(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, ok := ConnFromContext(r.Context())
		if !assert.True(t, ok) {
			return
		}
		_, err := fmt.Fprintf(w, "hello from %d", conn.ID)
		assert.NoError(t, err)
	})

	s := NewServer(tnet.ListenOnRandomPort(), StandardMiddleware(handler))
	group.Spawn("server", parallel.Fail, s.Run)

	res, err := http.DefaultClient.Do(must.OK1(http.NewRequestWithContext(group.Context(), http.MethodGet, "http://"+s.ListenAddr().String(), nil)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello from 1"), body)
	res.Body.Close()
}

func TestServerHandler(t *testing.T) {
	group := test.Group(t)

	handler := NewHandler(DefaultConfig, nil, func(w *ResponseWriter, r *request.Request) {
		assert.EqualValues(t, 1, r.Conn().ID)
		assert.NotNil(t, r.PeerAddr())
		_, err := fmt.Fprintf(w, "hello, %s", r.ParamOr("name", "world"))
		assert.NoError(t, err)
	})

	s := NewServer(tnet.ListenOnRandomPort(), StandardMiddleware(handler))
	group.Spawn("server", parallel.Fail, s.Run)

	// the default transport asks for gzip and transparently decompresses
	res, err := http.DefaultClient.Do(must.OK1(http.NewRequestWithContext(group.Context(), http.MethodGet, "http://"+s.ListenAddr().String()+"/?name=travertine", nil)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, res.Uncompressed)
	body, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Equal(t, "hello, travertine", string(body))
	res.Body.Close()
}
