package thttp

import (
	"fmt"
	"net/http"
)

// Scheme returns the scheme the client used, honouring X-Forwarded-Proto set
// by a reverse proxy
func Scheme(r *http.Request) (string, error) {
	p := r.Header.Get("X-Forwarded-Proto")
	switch p {
	case "":
		if r.TLS != nil {
			return "https", nil
		}
		return "http", nil
	case "http", "https":
		return p, nil
	default:
		return "", fmt.Errorf("unexpected X-Forwarded-Proto %q", p)
	}
}
