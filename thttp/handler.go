package thttp

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/ridge/travertine/mpfd"
	"github.com/ridge/travertine/request"
	"github.com/ridge/travertine/session"
	"github.com/ridge/travertine/tlog"
	"github.com/ridge/travertine/tzip"
	"go.uber.org/zap"
)

// Config configures how requests are decoded and responses encoded
type Config struct {
	// Storage of uploaded files
	Storage mpfd.Storage

	// TempDir receives uploaded files with StoreInFilesystem; the system
	// temporary directory if empty
	TempDir string

	// TempPrefix is the file name prefix of uploaded files
	TempPrefix string

	// ProbeTempNames names uploaded files after the first free
	// <prefix>_<n> found on disk instead of a per-handler counter
	ProbeTempNames bool

	// MaxBodySize limits urlencoded and JSON bodies, 0 for no limit
	MaxBodySize int64

	// MaxFieldSize and MaxFields limit multipart bodies, 0 for no limit
	MaxFieldSize int64
	MaxFields    int

	// Compression enables compressed responses for clients that accept them
	Compression bool

	// CookiePath is the Path of the session cookie
	CookiePath string
}

// DefaultConfig is the default Config value
var DefaultConfig = Config{
	Storage:     mpfd.StoreInMemory,
	TempPrefix:  mpfd.DefaultPrefix,
	MaxBodySize: 10 << 20,
	Compression: true,
	CookiePath:  "/",
}

// HandlerFunc serves a decoded request
type HandlerFunc func(w *ResponseWriter, r *request.Request)

// Handler is an http.Handler that decodes requests into request.Request,
// binds sessions through the session cookie and compresses responses
type Handler struct {
	config Config
	store  session.Store
	namer  mpfd.Namer
	fn     HandlerFunc
}

// NewHandler creates a Handler. A nil store disables sessions.
func NewHandler(config Config, store session.Store, fn HandlerFunc) *Handler {
	tempDir := config.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	var namer mpfd.Namer
	if config.ProbeTempNames {
		namer = mpfd.ProbeNamer{Dir: tempDir, Prefix: config.TempPrefix}
	} else {
		namer = mpfd.NewTempDir(tempDir, config.TempPrefix)
	}
	return &Handler{
		config: config,
		store:  store,
		namer:  namer,
		fn:     fn,
	}
}

// httpError is a request decoding failure reported to the client
type httpError struct {
	status int
	err    error
}

func (e httpError) Error() string {
	return e.err.Error()
}

func (e httpError) Unwrap() error {
	return e.err
}

func badRequest(err error) error {
	return httpError{status: http.StatusBadRequest, err: err}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := tlog.Get(r.Context())

	req, err := h.decode(r)
	if err != nil {
		status := http.StatusInternalServerError
		var he httpError
		if errors.As(err, &he) {
			status = he.status
		}
		logger.Debug("Failed to decode request", zap.Int("statusCode", status), zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}
	if d := req.Multipart(); d != nil {
		defer func() {
			if err := d.Release(); err != nil {
				logger.Warn("Failed to release uploaded files", zap.Error(err))
			}
		}()
	}

	rw := newResponseWriter(w, req.Compression())
	h.fn(rw, req)
	h.setSessionCookie(w, r, req)
	if err := rw.flush(); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (h *Handler) decode(r *http.Request) (*request.Request, error) {
	username, err := Username(r)
	if err != nil {
		return nil, badRequest(err)
	}
	p := request.Params{
		Method:     request.ParseMethod(r.Method),
		URL:        r.URL.Path,
		RawParams:  r.URL.RawQuery,
		RawCookies: cookieHeader(r),
		Origin:     r.Header.Get("Origin"),
		Username:   username,
		Conn:       h.conn(r),
		Store:      h.store,
	}

	if r.Body != nil && r.Body != http.NoBody {
		if err := h.decodeBody(r, &p); err != nil {
			return nil, err
		}
	}

	req, err := request.New(p)
	if err != nil {
		if p.Multipart != nil {
			_ = p.Multipart.Release()
		}
		return nil, badRequest(err)
	}
	return req, nil
}

func (h *Handler) decodeBody(r *http.Request, p *request.Params) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return badRequest(fmt.Errorf("bad content type %q: %w", ct, err))
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		body, err := h.readBody(r)
		if err != nil {
			return err
		}
		switch {
		case len(body) == 0:
		case p.RawParams == "":
			p.RawParams = string(body)
		default:
			p.RawParams += "&" + string(body)
		}
	case "application/json":
		body, err := h.readBody(r)
		if err != nil {
			return err
		}
		p.JSON = string(body)
	case "multipart/form-data":
		d, err := h.decodeMultipart(r, ct)
		if err != nil {
			return err
		}
		p.Multipart = d
	}
	return nil
}

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	var body io.Reader = r.Body
	if h.config.MaxBodySize > 0 {
		body = io.LimitReader(r.Body, h.config.MaxBodySize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, badRequest(fmt.Errorf("failed to read request body: %w", err))
	}
	if h.config.MaxBodySize > 0 && int64(len(data)) > h.config.MaxBodySize {
		return nil, httpError{status: http.StatusRequestEntityTooLarge, err: fmt.Errorf("request body is larger than %d bytes", h.config.MaxBodySize)}
	}
	return data, nil
}

func (h *Handler) decodeMultipart(r *http.Request, ct string) (*mpfd.Decoder, error) {
	boundary, err := mpfd.BoundaryFromContentType(ct)
	if err != nil {
		return nil, badRequest(err)
	}
	d, err := mpfd.NewDecoder(boundary, mpfd.Options{
		Storage:      h.config.Storage,
		Namer:        h.namer,
		MaxFieldSize: h.config.MaxFieldSize,
		MaxFields:    h.config.MaxFields,
	})
	if err != nil {
		return nil, badRequest(err)
	}

	buf := make([]byte, tzip.ChunkSize)
	_, err = io.CopyBuffer(d, struct{ io.Reader }{r.Body}, buf)
	if err == nil {
		err = d.Close()
	}
	if err != nil {
		// the decoder has released its fields already if it failed itself
		_ = d.Release()
		switch {
		case errors.Is(err, mpfd.ErrTooLarge):
			return nil, httpError{status: http.StatusRequestEntityTooLarge, err: err}
		case errors.Is(err, mpfd.ErrMalformed), errors.Is(err, mpfd.ErrIncomplete), errors.Is(err, mpfd.ErrDuplicateField):
			return nil, badRequest(err)
		default:
			return nil, fmt.Errorf("failed to decode multipart body: %w", err)
		}
	}
	return d, nil
}

func cookieHeader(r *http.Request) string {
	return strings.Join(r.Header.Values("Cookie"), "; ")
}

func (h *Handler) conn(r *http.Request) *request.Conn {
	var conn request.Conn
	if base, ok := ConnFromContext(r.Context()); ok {
		conn = *base
	}
	if conn.Addr == nil {
		if addr, err := net.ResolveTCPAddr("tcp", r.RemoteAddr); err == nil {
			conn.Addr = addr
		}
	}
	conn.TLS = r.TLS
	if subject, ok := PeerSubject(r); ok {
		conn.PeerSubject = &subject
	}
	if h.config.Compression {
		conn.Compression = NegotiateCompression(r)
	}
	return &conn
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, req *request.Request) {
	scheme, _ := Scheme(r)
	cookie := &http.Cookie{
		Name:     session.CookieName,
		Path:     h.config.CookiePath,
		HttpOnly: true,
		Secure:   scheme == "https",
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case req.SessionCreated():
		cookie.Value = req.SessionID()
	case req.SessionRemoved():
		cookie.MaxAge = -1
	default:
		return
	}
	http.SetCookie(w, cookie)
}
