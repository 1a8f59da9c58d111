package thttp

import (
	"net/http"

	"github.com/gorilla/handlers"
)

var (
	allowedMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
		http.MethodPut,
		http.MethodDelete,
	}
	allowedHeaders = []string{
		"Authorization",
		"Cache-Control",
		"Content-Type",
		"If-Modified-Since",
		"Range",
		"X-Requested-With",
	}
	exposedHeaders = []string{
		"Content-Encoding",
		"Content-Length",
		"Content-Range",
	}
)

// NewCORS returns a middleware that allows cross-origin requests from the
// given origins. With explicit origins, credentials (the session cookie) are
// allowed too.
func NewCORS(origins []string) func(http.Handler) http.Handler {
	opts := []handlers.CORSOption{
		handlers.AllowedMethods(allowedMethods),
		handlers.AllowedHeaders(allowedHeaders),
		handlers.ExposedHeaders(exposedHeaders),
		handlers.AllowedOrigins(origins),
	}
	for _, o := range origins {
		if o == "*" {
			return handlers.CORS(opts...)
		}
	}
	return handlers.CORS(append(opts, handlers.AllowCredentials())...)
}

// CORS is a middleware that allows cross-origin requests from anywhere
var CORS = NewCORS([]string{"*"})
