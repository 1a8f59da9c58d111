package request

import (
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/ridge/travertine/mpfd"
	"github.com/ridge/travertine/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type released struct {
	mu    *sync.Mutex
	count *int
}

func (r released) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.count++
}

func newStore(t *testing.T) *session.MemStore {
	s := session.NewMemStore(session.DefaultConfig)
	t.Cleanup(s.Close)
	return s
}

func TestNew(t *testing.T) {
	subject := "CN=client"
	conn := &Conn{
		ID:          7,
		Addr:        &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242},
		Compression: CompressionGzip,
		PeerSubject: &subject,
	}
	r, err := New(Params{
		Method:     MethodPost,
		URL:        "/api/items",
		RawParams:  "b=2&a=1&c",
		RawCookies: "theme=dark; lang=en",
		Origin:     "https://example.com",
		Username:   "alice",
		Conn:       conn,
		JSON:       `{"x":1}`,
	})
	require.NoError(t, err)

	assert.Equal(t, MethodPost, r.Method())
	assert.Equal(t, "/api/items", r.URL())
	assert.Equal(t, "https://example.com", r.Origin())

	v, ok := r.Param("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = r.Param("missing")
	assert.False(t, ok)
	assert.Equal(t, "", r.ParamOr("c", "def"))
	assert.Equal(t, "def", r.ParamOr("missing", "def"))
	assert.True(t, r.HasParam("c"))
	assert.Equal(t, []string{"a", "b", "c"}, r.ParamNames())

	v, ok = r.Cookie("theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
	assert.False(t, r.HasCookie("SID"))
	assert.Equal(t, []string{"lang", "theme"}, r.CookieNames())

	assert.Equal(t, `{"x":1}`, r.JSON())
	assert.False(t, r.IsMultipart())
	assert.Nil(t, r.Multipart())
	assert.Same(t, conn, r.Conn())
	assert.Equal(t, "127.0.0.1:4242", r.PeerAddr().String())
	assert.Equal(t, "alice", r.Username())
	assert.True(t, r.IsX509Auth())
	peer, ok := r.PeerSubject()
	assert.True(t, ok)
	assert.Equal(t, "CN=client", peer)
	assert.Equal(t, CompressionGzip, r.Compression())
	assert.False(t, r.IsSessionValid())
}

func TestNewNoConn(t *testing.T) {
	r, err := New(Params{Method: MethodGet})
	require.NoError(t, err)
	assert.Nil(t, r.PeerAddr())
	assert.False(t, r.IsX509Auth())
	_, ok := r.PeerSubject()
	assert.False(t, ok)
	assert.Equal(t, CompressionNone, r.Compression())
	assert.Empty(t, r.ParamNames())
	assert.Empty(t, r.CookieNames())
}

func TestNewBadParams(t *testing.T) {
	_, err := New(Params{RawParams: "a=%zz"})
	assert.ErrorIs(t, err, ErrBadEscape)
}

func TestMultipart(t *testing.T) {
	d, err := mpfd.NewDecoder("b", mpfd.Options{})
	require.NoError(t, err)
	r, err := New(Params{Method: MethodPost, Multipart: d})
	require.NoError(t, err)
	assert.True(t, r.IsMultipart())
	assert.Same(t, d, r.Multipart())
}

func TestSessionBinding(t *testing.T) {
	store := newStore(t)
	id, err := store.Create()
	require.NoError(t, err)

	r, err := New(Params{RawCookies: "SID=" + id, Store: store})
	require.NoError(t, err)
	assert.True(t, r.IsSessionValid())
	assert.Equal(t, id, r.SessionID())

	r, err = New(Params{RawCookies: "SID=unknown", Store: store})
	require.NoError(t, err)
	assert.False(t, r.IsSessionValid())
	assert.Empty(t, r.SessionID())

	r, err = New(Params{RawCookies: "SID=" + id})
	require.NoError(t, err)
	assert.False(t, r.IsSessionValid())
}

func TestSessionAutoCreate(t *testing.T) {
	store := newStore(t)
	r, err := New(Params{Store: store})
	require.NoError(t, err)

	_, ok := r.SessionAttribute("user")
	assert.False(t, ok)
	assert.Nil(t, r.SessionAttributeNames())

	require.NoError(t, r.SetSessionAttribute("user", "alice"))
	assert.True(t, r.IsSessionValid())
	assert.True(t, r.SessionCreated())
	assert.True(t, store.Find(r.SessionID()))

	v, ok := r.SessionAttribute("user")
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	// a later request carrying the cookie sees the same session
	r2, err := New(Params{RawCookies: "SID=" + r.SessionID(), Store: store})
	require.NoError(t, err)
	assert.False(t, r2.SessionCreated())
	v, ok = r2.SessionAttribute("user")
	require.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestSessionObjects(t *testing.T) {
	store := newStore(t)
	r, err := New(Params{Store: store})
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	obj := released{mu: &mu, count: &count}

	require.NoError(t, r.SetSessionObject("cart", obj))
	require.NoError(t, r.SetSessionAttribute("user", "alice"))
	assert.Equal(t, []string{"cart", "user"}, r.SessionAttributeNames())

	got, ok := r.SessionObject("cart")
	require.True(t, ok)
	assert.Equal(t, obj, got)

	// kinds do not collide
	_, ok = r.SessionAttribute("cart")
	assert.False(t, ok)
	_, ok = r.SessionObject("user")
	assert.False(t, ok)

	r.RemoveSessionAttribute("cart")
	_, ok = r.SessionObject("cart")
	assert.False(t, ok)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"user"}, r.SessionAttributeNames())
}

func TestRemoveSession(t *testing.T) {
	store := newStore(t)
	id, err := store.Create()
	require.NoError(t, err)

	r, err := New(Params{RawCookies: "SID=" + id, Store: store})
	require.NoError(t, err)
	require.NoError(t, r.SetSessionAttribute("user", "alice"))

	r.RemoveSession()
	assert.False(t, r.IsSessionValid())
	assert.True(t, r.SessionRemoved())
	assert.False(t, r.SessionCreated())
	assert.False(t, store.Find(id))
	_, ok := r.SessionAttribute("user")
	assert.False(t, ok)

	// removing again is a no-op
	r.RemoveSession()
	r.RemoveSessionAttribute("user")

	// a write after removal starts a fresh session
	require.NoError(t, r.SetSessionAttribute("user", "bob"))
	assert.True(t, r.IsSessionValid())
	assert.NotEqual(t, id, r.SessionID())
}

func TestSessionExpiredDuringRequest(t *testing.T) {
	store := newStore(t)
	id, err := store.Create()
	require.NoError(t, err)
	r, err := New(Params{RawCookies: "SID=" + id, Store: store})
	require.NoError(t, err)

	store.Remove(id)
	require.NoError(t, r.SetSessionAttribute("user", "alice"))
	assert.NotEqual(t, id, r.SessionID())
	assert.True(t, r.SessionCreated())
}

func TestNoStore(t *testing.T) {
	r, err := New(Params{})
	require.NoError(t, err)
	assert.ErrorIs(t, r.SetSessionAttribute("user", "alice"), ErrNoSession)
	assert.ErrorIs(t, r.CreateSession(), ErrNoSession)
	r.RemoveSession()
	assert.False(t, r.IsSessionValid())
}

func TestSessionTokensAreOpaque(t *testing.T) {
	store := newStore(t)
	r, err := New(Params{Store: store})
	require.NoError(t, err)
	require.NoError(t, r.CreateSession())
	first := r.SessionID()
	require.NoError(t, r.CreateSession())
	assert.NotEqual(t, first, r.SessionID())
	assert.False(t, strings.ContainsAny(r.SessionID(), "; ="))
}
