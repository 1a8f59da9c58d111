package thttp

import (
	"net/http"
	"time"

	"github.com/ridge/travertine/tlog"
	"go.uber.org/zap"
)

// Log is a middleware that logs before and after handling of each request.
// Does not include logging of request and response bodies.
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := tlog.With(r.Context(),
			zap.String("method", r.Method),
			zap.String("hostname", r.Host),
			zap.String("url", r.URL.String()),
		)
		logger := tlog.Get(ctx)
		logger.Debug("HTTP request handling started")
		var captured Captured
		next.ServeHTTP(CaptureResponse(w, &captured), r.WithContext(ctx))
		logger.Debug("HTTP request handling ended",
			zap.Int("statusCode", captured.Status),
			zap.Int64("bytes", captured.Bytes),
			zap.String("contentEncoding", w.Header().Get("Content-Encoding")),
			zap.Duration("elapsed", time.Since(started)))
	})
}
