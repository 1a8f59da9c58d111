package thttp

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedAuthHeader is returned by Username if the Authorization header
// announces Basic authentication but cannot be decoded
type ErrMalformedAuthHeader struct {
	header string
}

func (e ErrMalformedAuthHeader) Error() string {
	return fmt.Sprintf("malformed authentication header: %q", e.header)
}

// Username returns the user name of HTTP Basic authentication, empty if the
// request does not use it. Credentials are not checked here.
func Username(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", nil
	}
	scheme, _, _ := strings.Cut(h, " ")
	if !strings.EqualFold(scheme, "Basic") {
		return "", nil
	}
	user, _, ok := r.BasicAuth()
	if !ok {
		return "", ErrMalformedAuthHeader{h}
	}
	return user, nil
}

// PeerSubject returns the subject of the verified client certificate
func PeerSubject(r *http.Request) (string, bool) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return "", false
	}
	return r.TLS.PeerCertificates[0].Subject.String(), true
}
