package thttp

import "net/http"

// Captured is what CaptureResponse records about a response
type Captured struct {
	Status int
	Bytes  int64
}

// CaptureResponse wraps a http.ResponseWriter to record the response status
// code and the number of body bytes written into *captured.
//
// The returned ResponseWriter works the same way as the original one, including
// the http.Hijacker functionality, if available.
func CaptureResponse(w http.ResponseWriter, captured *Captured) http.ResponseWriter {
	cr := captureResponse{ResponseWriter: w, captured: captured}
	if h, ok := w.(http.Hijacker); ok {
		cr.Hijacker = h
	}
	return cr
}

type captureResponse struct {
	http.ResponseWriter
	http.Hijacker
	captured *Captured
}

func (cr captureResponse) Write(b []byte) (int, error) {
	if cr.captured.Status == 0 {
		cr.captured.Status = http.StatusOK
	}
	n, err := cr.ResponseWriter.Write(b)
	cr.captured.Bytes += int64(n)
	return n, err
}

func (cr captureResponse) WriteHeader(statusCode int) {
	if cr.captured.Status == 0 {
		cr.captured.Status = statusCode
	}
	cr.ResponseWriter.WriteHeader(statusCode)
}
