// Package request turns what arrived on a client connection into an
// application-facing request: method, URL, decoded parameters and cookies,
// the session bound through the SID cookie, and the multipart or JSON body.
package request

import (
	"errors"
	"fmt"
	"net"

	"github.com/ridge/travertine/mpfd"
	"github.com/ridge/travertine/session"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrNoSession is returned when an operation needs a session store and the
// request has none
var ErrNoSession = errors.New("no session store")

// Params is what the connection layer knows about a request
type Params struct {
	Method     Method
	URL        string
	RawParams  string // query string and urlencoded body, not decoded
	RawCookies string // Cookie header value
	Origin     string
	Username   string // HTTP authentication user, empty if none
	Conn       *Conn
	JSON       string        // raw JSON payload, empty if none
	Multipart  *mpfd.Decoder // nil unless the body is multipart
	Store      session.Store // nil disables sessions
}

// Request is a decoded client request.
//
// Request is not safe for concurrent use.
type Request struct {
	method    Method
	url       string
	origin    string
	username  string
	conn      *Conn
	json      string
	multipart *mpfd.Decoder
	store     session.Store

	params  map[string]string
	cookies map[string]string

	sessionID      string
	sessionCreated bool
	sessionRemoved bool
}

// New decodes parameters and cookies and binds the session named by the SID
// cookie, if it is live
func New(p Params) (*Request, error) {
	params, err := DecodeParams(p.RawParams)
	if err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	r := &Request{
		method:    p.Method,
		url:       p.URL,
		origin:    p.Origin,
		username:  p.Username,
		conn:      p.Conn,
		json:      p.JSON,
		multipart: p.Multipart,
		store:     p.Store,
		params:    params,
		cookies:   DecodeCookies(p.RawCookies),
	}
	if sid := r.cookies[session.CookieName]; sid != "" && r.store != nil && r.store.Find(sid) {
		r.sessionID = sid
	}
	return r, nil
}

// Method returns the request method
func (r *Request) Method() Method {
	return r.method
}

// URL returns the requested path
func (r *Request) URL() string {
	return r.url
}

// Origin returns the Origin header
func (r *Request) Origin() string {
	return r.origin
}

// Param returns a parameter
func (r *Request) Param(name string) (string, bool) {
	v, ok := r.params[name]
	return v, ok
}

// ParamOr returns a parameter or def if it is absent
func (r *Request) ParamOr(name, def string) string {
	if v, ok := r.params[name]; ok {
		return v
	}
	return def
}

// HasParam reports whether a parameter is present
func (r *Request) HasParam(name string) bool {
	_, ok := r.params[name]
	return ok
}

// ParamNames returns the sorted parameter names
func (r *Request) ParamNames() []string {
	return sortedKeys(r.params)
}

// Cookie returns a cookie
func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

// HasCookie reports whether a cookie is present
func (r *Request) HasCookie(name string) bool {
	_, ok := r.cookies[name]
	return ok
}

// CookieNames returns the sorted cookie names
func (r *Request) CookieNames() []string {
	return sortedKeys(r.cookies)
}

func sortedKeys(m map[string]string) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// SessionID returns the session token, empty if there is no valid session
func (r *Request) SessionID() string {
	return r.sessionID
}

// IsSessionValid reports whether the request is bound to a session
func (r *Request) IsSessionValid() bool {
	return r.sessionID != ""
}

// SessionCreated reports whether a session was created while serving the
// request and is still bound to it
func (r *Request) SessionCreated() bool {
	return r.sessionCreated && r.sessionID != ""
}

// SessionRemoved reports whether the session the client presented was
// removed while serving the request
func (r *Request) SessionRemoved() bool {
	return r.sessionRemoved
}

// CreateSession starts a new session and binds the request to it
func (r *Request) CreateSession() error {
	if r.store == nil {
		return ErrNoSession
	}
	id, err := r.store.Create()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	r.sessionID = id
	r.sessionCreated = true
	return nil
}

// RemoveSession removes the bound session, if any
func (r *Request) RemoveSession() {
	if r.sessionID == "" {
		return
	}
	r.store.Remove(r.sessionID)
	r.sessionID = ""
	if !r.sessionCreated {
		r.sessionRemoved = true
	}
	r.sessionCreated = false
}

func (r *Request) setAttribute(name string, attr session.Attribute) error {
	if r.sessionID == "" {
		if err := r.CreateSession(); err != nil {
			return err
		}
	}
	err := r.store.SetAttribute(r.sessionID, name, attr)
	if errors.Is(err, session.ErrNotFound) {
		// expired since the request was bound
		if err := r.CreateSession(); err != nil {
			return err
		}
		err = r.store.SetAttribute(r.sessionID, name, attr)
	}
	if err != nil {
		return fmt.Errorf("failed to set session attribute %q: %w", name, err)
	}
	return nil
}

func (r *Request) attribute(name string) (session.Attribute, bool) {
	if r.sessionID == "" {
		return session.Attribute{}, false
	}
	return r.store.Attribute(r.sessionID, name)
}

// SetSessionAttribute stores an opaque value in the session, creating the
// session if needed. The store does not manage the value's lifetime.
func (r *Request) SetSessionAttribute(name string, value any) error {
	return r.setAttribute(name, session.Value(value))
}

// SessionAttribute returns an opaque value stored in the session
func (r *Request) SessionAttribute(name string) (any, bool) {
	attr, ok := r.attribute(name)
	if !ok {
		return nil, false
	}
	return attr.Value()
}

// SetSessionObject stores an object in the session, creating the session if
// needed. The store releases the object when it is replaced or removed.
func (r *Request) SetSessionObject(name string, obj session.Object) error {
	return r.setAttribute(name, session.ObjectOf(obj))
}

// SessionObject returns an object stored in the session
func (r *Request) SessionObject(name string) (session.Object, bool) {
	attr, ok := r.attribute(name)
	if !ok {
		return nil, false
	}
	return attr.Object()
}

// RemoveSessionAttribute removes a session attribute if it exists
func (r *Request) RemoveSessionAttribute(name string) {
	if r.sessionID == "" {
		return
	}
	r.store.RemoveAttribute(r.sessionID, name)
}

// SessionAttributeNames returns the sorted attribute names of the session
func (r *Request) SessionAttributeNames() []string {
	if r.sessionID == "" {
		return nil
	}
	return r.store.AttributeNames(r.sessionID)
}

// IsMultipart reports whether the body is multipart/form-data
func (r *Request) IsMultipart() bool {
	return r.multipart != nil
}

// Multipart returns the decoder holding the multipart fields, nil if the
// body is not multipart
func (r *Request) Multipart() *mpfd.Decoder {
	return r.multipart
}

// JSON returns the raw JSON payload, empty if there is none
func (r *Request) JSON() string {
	return r.json
}

// Conn returns the client connection
func (r *Request) Conn() *Conn {
	return r.conn
}

// PeerAddr returns the client address
func (r *Request) PeerAddr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.Addr
}

// Username returns the HTTP authentication user name
func (r *Request) Username() string {
	return r.username
}

// PeerSubject returns the subject of the client certificate
func (r *Request) PeerSubject() (string, bool) {
	if r.conn == nil || r.conn.PeerSubject == nil {
		return "", false
	}
	return *r.conn.PeerSubject, true
}

// IsX509Auth reports whether the client authenticated with a certificate
func (r *Request) IsX509Auth() bool {
	return r.conn != nil && r.conn.PeerSubject != nil
}

// Compression returns the response compression negotiated for the
// connection
func (r *Request) Compression() Compression {
	if r.conn == nil {
		return CompressionNone
	}
	return r.conn.Compression
}
